package domain

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleStudent  Role = "Student"
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// DefaultRole is assigned when registration doesn't name one.
const DefaultRole = RoleStudent

// ErrUnknownRole is returned by ParseRole for anything outside the four roles.
var ErrUnknownRole = errors.New("domain: unknown role")

// Roles lists every role in ascending order of privilege.
func Roles() []Role {
	return []Role{RoleStudent, RoleEmployee, RoleManager, RoleAdmin}
}

// ParseRole accepts a role name case-insensitively. An empty string yields
// DefaultRole.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultRole, nil
	}
	for _, r := range Roles() {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil && r != ""
}

func (r Role) String() string { return string(r) }

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, x := range roles {
		if r == x {
			return true
		}
	}
	return false
}
