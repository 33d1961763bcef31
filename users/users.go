package users

import (
	"fmt"
	"strings"
	"unicode"
)

// RoleName is one of the closed set of marketplace roles
type RoleName string

const (
	RoleStudent RoleName = "student" // Books sessions and rates teachers
	RoleTeacher RoleName = "teacher" // Offers subjects and accepts bookings
	RoleAdmin   RoleName = "admin"   // Approves or rejects bookings, manages users
)

// Roles lists every valid role
var Roles = []RoleName{RoleStudent, RoleTeacher, RoleAdmin}

// ParseRole matches name case-insensitively against the known roles
func ParseRole(name string) (RoleName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, r := range Roles {
		if string(r) == normalized {
			return r, true
		}
	}
	return "", false
}

// Role is the role object as returned by the API ({"name": "teacher"})
type Role struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type User struct {
	ID     int64  `json:"id"`              // Unique identifier for the user
	Name   string `json:"name"`            // Display name
	Email  string `json:"email,omitempty"` // Login email
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"` // Avatar URL
	Bio    string `json:"bio,omitempty"`
	Role   *Role  `json:"role,omitempty"` // Immutable for the lifetime of a session
}

// RoleName returns the parsed role. ok is false when the role is missing or unknown.
func (u *User) RoleName() (RoleName, bool) {
	if u == nil || u.Role == nil {
		return "", false
	}
	return ParseRole(u.Role.Name)
}

// HasAnyRole reports whether the user's role matches one of roles, case-insensitively.
// A user without a valid role matches nothing.
func (u *User) HasAnyRole(roles ...string) bool {
	own, ok := u.RoleName()
	if !ok {
		return false
	}
	for _, r := range roles {
		if parsed, ok := ParseRole(r); ok && parsed == own {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.HasAnyRole(string(RoleAdmin))
}

// IsStaff returns true for admins and teachers
func (u *User) IsStaff() bool {
	return u.HasAnyRole(string(RoleAdmin), string(RoleTeacher))
}

// Clone returns a copy that shares no pointers with u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Role != nil {
		role := *u.Role
		c.Role = &role
	}
	return &c
}

// ValidatePasswordStrength checks if password meets the registration requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
