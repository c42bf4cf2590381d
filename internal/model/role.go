package model

import "strings"

// Role is one of a fixed enumerated set. There is no hierarchy between
// roles; gating is always an explicit membership check.
type Role string

const (
	RoleCustomer  Role = "Customer"
	RolePublisher Role = "Publisher"
	RoleAdmin     Role = "Admin"
)

// ParseRole maps a user-supplied role name onto the enum, case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer":
		return RoleCustomer, true
	case "publisher":
		return RolePublisher, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// SelfRegistrable reports whether public registration may request this role.
// Admin is only assignable through a separate non-public workflow.
func (r Role) SelfRegistrable() bool {
	return r == RoleCustomer || r == RolePublisher
}

func (r Role) String() string {
	return string(r)
}

// RoleNames converts a role set to plain strings for token claims.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return names
}
