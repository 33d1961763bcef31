package users_test

import (
	"testing"

	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, name := range []string{"admin", "Admin", "ADMIN", " admin "} {
		role, ok := users.ParseRole(name)
		require.True(t, ok, name)
		require.Equal(t, users.RoleAdmin, role)
	}

	_, ok := users.ParseRole("superuser")
	require.False(t, ok)
}

func TestUser_HasAnyRole(t *testing.T) {
	teacher := &users.User{ID: 1, Role: &users.Role{Name: "Teacher"}}

	require.True(t, teacher.HasAnyRole("teacher"))
	require.True(t, teacher.HasAnyRole("admin", "TEACHER"))
	require.False(t, teacher.HasAnyRole("admin"))
	require.True(t, teacher.IsStaff())
	require.False(t, teacher.IsAdmin())

	t.Run("missing role matches nothing", func(t *testing.T) {
		u := &users.User{ID: 2}
		require.False(t, u.HasAnyRole("student", "teacher", "admin"))
	})

	t.Run("unknown role matches nothing", func(t *testing.T) {
		u := &users.User{ID: 3, Role: &users.Role{Name: "root"}}
		require.False(t, u.HasAnyRole("root"))
	})

	t.Run("nil user", func(t *testing.T) {
		var u *users.User
		require.False(t, u.HasAnyRole("admin"))
	})
}

func TestUser_Clone(t *testing.T) {
	u := &users.User{ID: 1, Name: "Sara", Role: &users.Role{Name: "student"}}
	c := u.Clone()
	c.Role.Name = "admin"
	require.Equal(t, "student", u.Role.Name)
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password1"))
	require.ErrorContains(t, users.ValidatePasswordStrength("short1A"), "at least 8")
	require.ErrorContains(t, users.ValidatePasswordStrength("password1"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("PASSWORD1"), "lowercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("Password"), "number")
}
