package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "flowpay-ledger")
	userID := uuid.New()

	token, expiresAt, err := svc.Generate(userID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.False(t, claims.Admin)
}

func TestJWTTokenService_AdminClaim(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "flowpay-ledger")

	token, _, err := svc.Generate(uuid.New(), true)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.Admin)
}

func TestJWTTokenService_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-a", time.Hour, "flowpay-ledger")
	other := NewJWTTokenService("secret-b", time.Hour, "flowpay-ledger")

	token, _, err := svc.Generate(uuid.New(), false)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret", -time.Minute, "flowpay-ledger")

	token, _, err := svc.Generate(uuid.New(), false)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "flowpay-ledger")
	_, err := svc.Validate("not-a-token")
	assert.Error(t, err)
}
