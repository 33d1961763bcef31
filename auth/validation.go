package auth

import (
	"net/mail"
	"strings"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/users"
)

const invalidDataMessage = "The given data was invalid."

// Validator checks login and registration forms before they reach the
// backend. Failures are reported as api validation errors so callers map
// client-side and server-side field errors the same way.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &api.Error{Kind: api.KindValidation, Message: invalidDataMessage, Fields: f}
}

// ValidateLogin requires an email-shaped address and a password
func (v *Validator) ValidateLogin(email, password string) error {
	errs := fieldErrors{}
	v.validateEmail(errs, email)
	if password == "" {
		errs.add("password", "The password field is required.")
	}
	return errs.err()
}

// ValidateRegistration checks every field of a registration form
func (v *Validator) ValidateRegistration(req api.RegisterRequest) error {
	errs := fieldErrors{}
	if strings.TrimSpace(req.Name) == "" {
		errs.add("name", "The name field is required.")
	}
	v.validateEmail(errs, req.Email)
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		errs.add("password", err.Error())
	} else if req.Password != req.PasswordConfirmation {
		errs.add("password_confirmation", "The password confirmation does not match.")
	}

	// Admins are created by other admins, never by self-registration
	role, ok := users.ParseRole(req.Role)
	if !ok || role == users.RoleAdmin {
		errs.add("role", "The selected role is invalid.")
	}
	return errs.err()
}

func (v *Validator) validateEmail(errs fieldErrors, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.add("email", "The email field is required.")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs.add("email", "The email must be a valid email address.")
	}
}
