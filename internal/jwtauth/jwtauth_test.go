package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fixdesk/pkg/domain-errors"
)

var service = New("test-signing-key", "test-issuer", "test-audience")

func Test_GenerateToken(t *testing.T) {
	token, err := service.GenerateToken("oncall", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "oncall", claims.Operator)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := service.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := service.GenerateToken("oncall", -time.Hour)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := New("another-key", "test-issuer", "test-audience")
	token, err := other.GenerateToken("oncall", time.Hour)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}
