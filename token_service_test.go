package auth_test

import (
	"testing"
	"time"

	"github.com/glyzier/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(ttl time.Duration) auth.TokenService {
	return auth.NewTokenService(
		[]byte("test-signing-key"),
		ttl,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	identity := TestIdentity{
		id:       uuid.New().String(),
		username: "testuser",
		email:    "test@example.com",
		role:     auth.RoleAdmin,
	}

	token, err := svc.Generate(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, identity.ID(), claims.Subject())
	assert.Equal(t, identity.ID(), claims.UserID())
	assert.Equal(t, auth.RoleAdmin, claims.Role())
	assert.True(t, claims.HasRole(auth.RoleAdmin))
	assert.True(t, claims.IsAtLeast(auth.RoleUser))

	jwtClaims, ok := claims.(*auth.JWTClaims)
	require.True(t, ok)
	assert.Equal(t, "test-issuer", jwtClaims.RegisteredClaims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"test:audience"}, jwtClaims.RegisteredClaims.Audience)
	assert.NotEmpty(t, jwtClaims.RegisteredClaims.ID)

	// expiry lands one TTL away from issuance
	assert.WithinDuration(t, claims.IssuedAt().Add(time.Hour), claims.Expires(), time.Second)
}

func TestTokenServiceUniqueTokenIDs(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	identity := TestIdentity{id: uuid.New().String(), role: auth.RoleUser}

	first, err := svc.Generate(identity)
	require.NoError(t, err)
	second, err := svc.Generate(identity)
	require.NoError(t, err)

	firstClaims, err := svc.Validate(first)
	require.NoError(t, err)
	secondClaims, err := svc.Validate(second)
	require.NoError(t, err)

	assert.NotEqual(t,
		firstClaims.(*auth.JWTClaims).RegisteredClaims.ID,
		secondClaims.(*auth.JWTClaims).RegisteredClaims.ID,
	)
}

func TestTokenServiceValidateExpired(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	now := time.Now()
	token, err := svc.SignClaims(&auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"test:audience"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
		UID:      "user-1",
		UserRole: auth.RoleUser,
	})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	assert.Nil(t, claims)
	assert.Equal(t, auth.ErrTokenExpired, err)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenServiceValidateTampered(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	otherSvc := auth.NewTokenService(
		[]byte("a-different-signing-key"),
		time.Hour,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)

	identity := TestIdentity{id: uuid.New().String(), role: auth.RoleUser}
	token, err := otherSvc.Generate(identity)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	assert.Nil(t, claims)
	assert.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenServiceValidateGarbage(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	claims, err := svc.Validate("not.a.token")
	assert.Nil(t, claims)
	assert.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenServiceValidateWrongAudience(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	foreignSvc := auth.NewTokenService(
		[]byte("test-signing-key"),
		time.Hour,
		"test-issuer",
		jwt.ClaimStrings{"some:other:audience"},
		nil,
	)

	token, err := foreignSvc.Generate(TestIdentity{id: "user-1", role: auth.RoleUser})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	assert.Nil(t, claims)
	assert.Error(t, err)
}

func TestTokenServiceIsExpired(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	fresh, err := svc.Generate(TestIdentity{id: "user-1", role: auth.RoleUser})
	require.NoError(t, err)
	assert.False(t, svc.IsExpired(fresh))

	now := time.Now()
	stale, err := svc.SignClaims(&auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"test:audience"},
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})
	require.NoError(t, err)
	assert.True(t, svc.IsExpired(stale))

	assert.True(t, svc.IsExpired("garbage"))
}

// A token signed with the wrong key is unusable whatever its exp claim
// says, so IsExpired reports it as expired.
func TestTokenServiceIsExpiredUnverifiable(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	otherSvc := auth.NewTokenService(
		[]byte("a-different-signing-key"),
		time.Hour,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)

	foreign, err := otherSvc.Generate(TestIdentity{id: "user-1", role: auth.RoleUser})
	require.NoError(t, err)

	assert.True(t, svc.IsExpired(foreign))
}

// Expiry cuts over exactly at exp: a token just behind now is dead, a token
// just ahead of now is alive. NumericDate truncates to whole seconds, so
// the margins stay above one second to keep the check deterministic.
func TestTokenServiceExpiryBoundary(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	signAt := func(t *testing.T, exp time.Time) string {
		t.Helper()
		token, err := svc.SignClaims(&auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "user-1",
				Audience:  jwt.ClaimStrings{"test:audience"},
				ExpiresAt: jwt.NewNumericDate(exp),
			},
			UID:      "user-1",
			UserRole: auth.RoleUser,
		})
		require.NoError(t, err)
		return token
	}

	t.Run("Just behind now is expired", func(t *testing.T) {
		token := signAt(t, time.Now().Add(-2*time.Second))

		claims, err := svc.Validate(token)
		assert.Nil(t, claims)
		assert.Equal(t, auth.ErrTokenExpired, err)
		assert.True(t, svc.IsExpired(token))
	})

	t.Run("Just ahead of now is valid", func(t *testing.T) {
		token := signAt(t, time.Now().Add(3*time.Second))

		claims, err := svc.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject())
		assert.False(t, svc.IsExpired(token))
	})
}

func TestTokenServiceValidateForSubject(t *testing.T) {
	svc := newTestTokenService(time.Hour)

	subject := uuid.New().String()
	token, err := svc.Generate(TestIdentity{id: subject, role: auth.RoleUser})
	require.NoError(t, err)

	assert.True(t, svc.ValidateForSubject(token, subject))
	assert.False(t, svc.ValidateForSubject(token, "someone-else"))
	assert.False(t, svc.ValidateForSubject("garbage", subject))
}
