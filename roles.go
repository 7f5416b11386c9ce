package auth

import "sort"

// UserRole is the user's role flag. Glyzier has exactly two: regular users
// and marketplace admins.
type UserRole = string

const (
	// RoleUser is a regular marketplace account
	RoleUser UserRole = "user"
	// RoleAdmin can manage accounts and listings
	RoleAdmin UserRole = "admin"
)

// Authority is a single granted authority, the ROLE_* convention the SPA
// already understands.
type Authority = string

const (
	AuthorityUser  Authority = "ROLE_USER"
	AuthorityAdmin Authority = "ROLE_ADMIN"
)

// AuthoritySet is the explicit authority collection carried by a principal.
// Accounts map to exactly one set, derived deterministically from the role
// flag; there is no multi-role composition.
type AuthoritySet map[Authority]struct{}

// NewAuthoritySet builds a set from the given authorities
func NewAuthoritySet(authorities ...Authority) AuthoritySet {
	set := make(AuthoritySet, len(authorities))
	for _, a := range authorities {
		set[a] = struct{}{}
	}
	return set
}

// Has reports membership
func (s AuthoritySet) Has(a Authority) bool {
	_, ok := s[a]
	return ok
}

// Values returns the authorities in stable order
func (s AuthoritySet) Values() []Authority {
	out := make([]Authority, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AuthoritiesForRole derives the authority set for a role flag. Unknown
// roles fall back to the regular user set.
func AuthoritiesForRole(role UserRole) AuthoritySet {
	if role == RoleAdmin {
		return NewAuthoritySet(AuthorityAdmin)
	}
	return NewAuthoritySet(AuthorityUser)
}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast checks if role meets the minimum required level
func RoleIsAtLeast(r, minRole UserRole) bool {
	hierarchy := map[UserRole]int{
		RoleUser:  0,
		RoleAdmin: 1,
	}

	current, ok := hierarchy[r]
	if !ok {
		return false
	}

	min, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return current >= min
}

// ParseRole safely parses a string into a UserRole
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
