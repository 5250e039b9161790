package models

import (
	"fmt"
	"strings"
)

// UserRole is ordered by privilege: a lower value grants more.
type UserRole int

const (
	UserRoleSuperAdmin UserRole = iota
	UserRoleAdmin
	UserRoleVisitor
)

func (r UserRole) String() string {
	switch r {
	case UserRoleSuperAdmin:
		return "SUPER_ADMIN"
	case UserRoleAdmin:
		return "ADMIN"
	case UserRoleVisitor:
		return "VISITOR"
	default:
		return fmt.Sprintf("UserRole(%d)", int(r))
	}
}

func (r UserRole) Valid() bool {
	return r >= UserRoleSuperAdmin && r <= UserRoleVisitor
}

// Satisfies reports whether r is at least as privileged as required.
func (r UserRole) Satisfies(required UserRole) bool {
	return r.Valid() && r <= required
}

func ParseUserRole(s string) (UserRole, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUPER_ADMIN", "SUPERADMIN":
		return UserRoleSuperAdmin, nil
	case "ADMIN":
		return UserRoleAdmin, nil
	case "VISITOR":
		return UserRoleVisitor, nil
	}
	return UserRoleVisitor, fmt.Errorf("unknown role %q", s)
}

type User struct {
	ID    string   `json:"id" mapstructure:"id"`
	Email string   `json:"email" mapstructure:"email"`
	Name  string   `json:"name" mapstructure:"name"`
	Role  UserRole `json:"role" mapstructure:"role"`
}

// EmptyUser is the identity carried by a signed-out session.
func EmptyUser() User {
	return User{Role: UserRoleVisitor}
}
