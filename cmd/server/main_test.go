package main

import (
	"testing"

	"alcyxob/neuralfit/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger := newLogger(config.LogConfig{Level: tc.level})
			assert.Equal(t, tc.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerPretty(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "error", Pretty: true})
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}
