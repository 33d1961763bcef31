package auth_test

import (
	"testing"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/auth"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateLogin(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateLogin("sam@example.com", "anything"))
	})

	t.Run("missing both", func(t *testing.T) {
		err := v.ValidateLogin("", "")
		require.Equal(t, api.KindValidation, api.KindOf(err))
		fields := api.FieldErrors(err)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "password")
	})

	t.Run("malformed email", func(t *testing.T) {
		for _, email := range []string{"sam", "sam@", "Sam <sam@example.com>"} {
			err := v.ValidateLogin(email, "pw")
			require.Contains(t, api.FieldErrors(err), "email", email)
		}
	})
}

func TestValidator_ValidateRegistration(t *testing.T) {
	v := auth.NewValidator()
	valid := api.RegisterRequest{
		Name:                 "Sam",
		Email:                "sam@example.com",
		Password:             "Secret123",
		PasswordConfirmation: "Secret123",
		Role:                 "teacher",
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.ValidateRegistration(valid))
	})

	t.Run("role is case-insensitive", func(t *testing.T) {
		req := valid
		req.Role = " Student "
		require.NoError(t, v.ValidateRegistration(req))
	})

	tests := []struct {
		name   string
		mutate func(*api.RegisterRequest)
		field  string
	}{
		{"missing name", func(r *api.RegisterRequest) { r.Name = " " }, "name"},
		{"weak password", func(r *api.RegisterRequest) { r.Password, r.PasswordConfirmation = "weak", "weak" }, "password"},
		{"confirmation mismatch", func(r *api.RegisterRequest) { r.PasswordConfirmation = "Secret124" }, "password_confirmation"},
		{"admin self-registration", func(r *api.RegisterRequest) { r.Role = "admin" }, "role"},
		{"unknown role", func(r *api.RegisterRequest) { r.Role = "parent" }, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := v.ValidateRegistration(req)
			require.Equal(t, api.KindValidation, api.KindOf(err))
			require.Contains(t, api.FieldErrors(err), tt.field)
		})
	}
}
