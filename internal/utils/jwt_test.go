package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "holder-1", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "holder-1", claims.Subject)
}

func TestNewAccessToken_RejectsBadInput(t *testing.T) {
	_, err := NewAccessToken("", "holder-1", time.Hour)
	assert.Error(t, err)
	_, err = NewAccessToken("s3cret", "", time.Hour)
	assert.Error(t, err)
	_, err = NewAccessToken("s3cret", "holder-1", 0)
	assert.Error(t, err)
}
