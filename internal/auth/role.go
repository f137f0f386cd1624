package auth

import "fmt"

// Role discriminates the kind of principal behind a request.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a claim value into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Owns reports whether p may act on something owned by ownerID.
// Admins own everything.
func (p Principal) Owns(ownerID string) bool {
	return p.IsAdmin() || (p.UserID != "" && p.UserID == ownerID)
}
