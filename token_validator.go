package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenValidator turns a raw token string into claims. Implementations
// decide the key material and algorithm; callers only see AuthClaims.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a bare function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// NewKeyfuncTokenValidator builds a validator around an externally supplied
// jwt.Keyfunc, typically one backed by a remote JWK set. Error mapping
// matches the token service: expired tokens surface ErrTokenExpired,
// everything else unverifiable surfaces as malformed.
func NewKeyfuncTokenValidator(kf jwt.Keyfunc, parserOptions ...jwt.ParserOption) TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (AuthClaims, error) {
		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, kf, parserOptions...)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
		}
		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			return nil, ErrUnableToDecodeSession
		}
		return claims, nil
	})
}

// MultiTokenValidator runs a chain of validators against the same token.
// A malformed result means "wrong issuer for this one, keep going"; any
// other failure (expired, inactive) is authoritative and stops the chain.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator drops nil entries and composes the rest in order.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	chain := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			chain = append(chain, v)
		}
	}
	return &MultiTokenValidator{validators: chain}
}

func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		switch {
		case err == nil:
			return claims, nil
		case IsMalformedError(err):
			lastErr = err
		default:
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
