package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata" // tracker.timezone must resolve in minimal containers

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	S3          S3Config          `mapstructure:"s3"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Generator   GeneratorConfig   `mapstructure:"generator"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// S3Config configures plan archiving. Archiving is skipped when disabled.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// GeneratorConfig points at the text-generation endpoints. FallbackURL is
// tried when the primary fails; leave it empty to disable.
type GeneratorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	FallbackURL string        `mapstructure:"fallback_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type ProgressionConfig struct {
	TaskAward           int     `mapstructure:"task_award"`
	WorkoutLogAward     int     `mapstructure:"workout_log_award"`
	DefaultBurnCalories float64 `mapstructure:"default_burn_calories"`
}

type TrackerConfig struct {
	Timezone       string        `mapstructure:"timezone"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	WriteQueueSize int           `mapstructure:"write_queue_size"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"` // 0 keeps sessions until shutdown
}

// Location resolves Timezone, defaulting to UTC.
func (t TrackerConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(t.Timezone)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Use replacer for nested keys e.g., server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Config file not found; rely on defaults and env vars.
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings ("60m", "1h") decode straight into time.Duration fields.
	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "neuralfit")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "neuralfit-plans")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("generator.base_url", "https://text.pollinations.ai")
	v.SetDefault("generator.fallback_url", "")
	v.SetDefault("generator.model", "openai")
	v.SetDefault("generator.timeout", "90s")
	v.SetDefault("generator.max_attempts", 3)
	v.SetDefault("generator.base_delay", "500ms")
	v.SetDefault("progression.task_award", 10)
	v.SetDefault("progression.workout_log_award", 50)
	v.SetDefault("progression.default_burn_calories", 400)
	v.SetDefault("tracker.timezone", "UTC")
	v.SetDefault("tracker.poll_interval", "5s")
	v.SetDefault("tracker.write_queue_size", 64)
	v.SetDefault("tracker.idle_timeout", "30m")
}
