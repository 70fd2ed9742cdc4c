package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!!", time.Hour, "payloom")

	operatorID := uuid.New()
	token, expiry, err := svc.Generate(operatorID, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, operatorID, claims.OperatorID)
	assert.Equal(t, "admin", claims.Username)
}

func TestJWTTokenService_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-one-aaaaaaaaaaaaaaaaaaaaaaaaa", time.Hour, "payloom")
	other := NewJWTTokenService("secret-two-bbbbbbbbbbbbbbbbbbbbbbbbb", time.Hour, "payloom")

	token, _, err := svc.Generate(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!!", -time.Minute, "payloom")

	token, _, err := svc.Generate(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret-at-least-32-bytes-long!!", time.Hour, "payloom")
	_, err := svc.Validate("not.a.token")
	assert.Error(t, err)
}
