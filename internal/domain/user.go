package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEnum is wrapped by every Parse* function when the input is outside the closed set.
var ErrInvalidEnum = errors.New("invalid enum value")

// Role enumerates user roles.
type Role string

const (
	RoleEndUser      Role = "end_user"
	RoleSupportAgent Role = "support_agent"
	RoleAdmin        Role = "admin"
)

// Roles lists every role in ascending privilege order.
var Roles = []Role{RoleEndUser, RoleSupportAgent, RoleAdmin}

// ParseRole converts the wire representation into a Role.
func ParseRole(value string) (Role, error) {
	for _, role := range Roles {
		if string(role) == value {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalidEnum, value)
}

// IsStaff reports whether the role is support_agent or admin.
func (r Role) IsStaff() bool {
	return r == RoleSupportAgent || r == RoleAdmin
}

// User is a helpdesk account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// IsStaff reports whether the user may work tickets.
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// NormalizeEmail lower-cases and trims an address before it is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStats aggregates account counts for the admin dashboard.
type UserStats struct {
	TotalUsers    int64
	ActiveUsers   int64
	InactiveUsers int64
	EndUsers      int64
	SupportAgents int64
	Admins        int64
}
