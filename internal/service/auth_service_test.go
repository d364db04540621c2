package service

import (
	"context"
	"testing"
	"time"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/repository"
	"alcyxob/neuralfit/internal/repository/memory"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuth() AuthService {
	return NewAuthService(memory.NewUserRepository(), testSecret, time.Hour, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()

	user, err := auth.Register(ctx, "Ann", "Ann@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, domain.DefaultProfile("Ann"), user.Profile)

	_, err = auth.Register(ctx, "Other", "ann@example.com", "another-pass")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, loggedIn, err := auth.Login(ctx, "ann@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, TokenIssuer, claims.Issuer)

	_, _, err = auth.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUser(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()
	user, err := auth.Register(ctx, "", "bob@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "New User", user.Profile.Name)

	got, err := auth.GetUser(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Email)
	assert.Empty(t, got.PasswordHash)

	_, err = auth.GetUser(ctx, "xyz")
	assert.ErrorIs(t, err, repository.ErrInvalidID)
	_, err = auth.GetUser(ctx, testUserID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignTokenExpiry(t *testing.T) {
	token, err := SignToken(testSecret, testUserID, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
