package auth_test

import (
	"testing"

	"github.com/glyzier/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidatorFunc(t *testing.T) {
	claims := &auth.JWTClaims{UID: "user-1"}

	validator := auth.TokenValidatorFunc(func(token string) (auth.AuthClaims, error) {
		if token == "good" {
			return claims, nil
		}
		return nil, auth.ErrTokenMalformed
	})

	got, err := validator.Validate("good")
	assert.NoError(t, err)
	assert.Equal(t, claims, got)

	_, err = validator.Validate("bad")
	assert.Error(t, err)

	var nilValidator auth.TokenValidatorFunc
	_, err = nilValidator.Validate("anything")
	assert.Equal(t, auth.ErrUnableToDecodeSession, err)
}

func TestMultiTokenValidator(t *testing.T) {
	claims := &auth.JWTClaims{UID: "user-1"}

	accept := auth.TokenValidatorFunc(func(string) (auth.AuthClaims, error) {
		return claims, nil
	})
	malformed := auth.TokenValidatorFunc(func(string) (auth.AuthClaims, error) {
		return nil, auth.ErrTokenMalformed
	})
	expired := auth.TokenValidatorFunc(func(string) (auth.AuthClaims, error) {
		return nil, auth.ErrTokenExpired
	})

	t.Run("first validator wins", func(t *testing.T) {
		v := auth.NewMultiTokenValidator(accept, malformed)
		got, err := v.Validate("token")
		require.NoError(t, err)
		assert.Equal(t, claims, got)
	})

	t.Run("malformed falls through to the next validator", func(t *testing.T) {
		v := auth.NewMultiTokenValidator(malformed, accept)
		got, err := v.Validate("token")
		require.NoError(t, err)
		assert.Equal(t, claims, got)
	})

	t.Run("expired stops the chain", func(t *testing.T) {
		v := auth.NewMultiTokenValidator(expired, accept)
		_, err := v.Validate("token")
		assert.Equal(t, auth.ErrTokenExpired, err)
	})

	t.Run("all malformed returns the last error", func(t *testing.T) {
		v := auth.NewMultiTokenValidator(malformed, malformed)
		_, err := v.Validate("token")
		assert.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("empty chain", func(t *testing.T) {
		v := auth.NewMultiTokenValidator(nil)
		_, err := v.Validate("token")
		assert.Equal(t, auth.ErrTokenMalformed, err)
	})
}
