package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenExpired is attached to expired token errors
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed is attached to structurally invalid or badly signed tokens
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeBadCredentials is the uniform credential failure code
	TextCodeBadCredentials = "BAD_CREDENTIALS"
	// TextCodeAccountBanned marks authentication blocked by a ban
	TextCodeAccountBanned = "ACCOUNT_BANNED"
)

// ErrIdentityNotFound is the error we return for non found identities.
// It is never surfaced to external callers as-is; the HTTP boundary folds it
// into the generic credential failure to avoid account enumeration.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryAuth).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the uniform bad-credentials failure
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeBadCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountBanned means the account exists but is banned; authentication
// fails before the credential check. Internal logging only, the user facing
// message must stay indistinguishable from bad credentials.
var ErrAccountBanned = errors.New("account is banned", errors.CategoryAuth).
	WithTextCode(TextCodeAccountBanned).
	WithCode(errors.CodeUnauthorized)

// ErrAccountArchived means the account reached its terminal lifecycle state
var ErrAccountArchived = errors.New("account is archived", errors.CategoryAuth).
	WithTextCode("ACCOUNT_ARCHIVED").
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the cool-down window is active
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when claim exp is behind current time
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers structural corruption and signature mismatch
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithTextCode("EMPTY_VALUE")

// ErrUnableToFindSession is the error when our request carries no session
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsAccountInactiveError reports whether err is one of the lifecycle gating
// failures (banned or archived).
func IsAccountInactiveError(err error) bool {
	return errors.Is(err, ErrAccountBanned) || errors.Is(err, ErrAccountArchived)
}
