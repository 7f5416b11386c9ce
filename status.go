package auth

// UserStatus is the lifecycle state of an account
type UserStatus = string

const (
	// UserStatusActive accounts may authenticate
	UserStatusActive UserStatus = "active"
	// UserStatusBanned accounts exist but never authenticate
	UserStatusBanned UserStatus = "banned"
	// UserStatusArchived is the terminal state, no transitions leave it
	UserStatusArchived UserStatus = "archived"
)

// IsValidStatus checks the status against the known lifecycle states
func IsValidStatus(s UserStatus) bool {
	switch s {
	case UserStatusActive, UserStatusBanned, UserStatusArchived:
		return true
	default:
		return false
	}
}

// statusAuthError maps a lifecycle state to the authentication failure it
// implies, or nil when the state permits authentication.
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusBanned:
		return ErrAccountBanned
	case UserStatusArchived:
		return ErrAccountArchived
	default:
		return nil
	}
}
