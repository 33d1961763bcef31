package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/auth"
	"github.com/jrsteele09/tutorhub-web/guard"
	"github.com/jrsteele09/tutorhub-web/routes"
)

const invalidCredentialsMessage = "Invalid email or password."

// LoginSubmissionHandler processes the login form and resumes the page the
// visitor was sent to login from (POST /login)
func (s *Server) LoginSubmissionHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		redirect := r.FormValue(guard.RedirectParam)

		_, err := s.tab.Auth().Login(r.Context(), email, password)
		switch {
		case err == nil:
			http.Redirect(w, r, guard.ResumeTarget(redirect), http.StatusSeeOther)
		case errors.Is(err, auth.ErrAlreadyAuthenticated):
			http.Redirect(w, r, guard.HomePath, http.StatusSeeOther)
		default:
			form := formFromError(err, map[string]string{"email": email, guard.RedirectParam: redirect})
			if api.IsAuthentication(err) {
				form.Message = invalidCredentialsMessage
			}
			page := s.newPage(r, route)
			page.Form = form
			s.render(w, statusForError(err), route.View, page)
		}
	}
}

// RegisterSubmissionHandler creates an account (POST /register). Without a
// token from the backend the visitor is sent to the login page.
func (s *Server) RegisterSubmissionHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := api.RegisterRequest{
			Name:                 strings.TrimSpace(r.FormValue("name")),
			Email:                strings.TrimSpace(r.FormValue("email")),
			Phone:                strings.TrimSpace(r.FormValue("phone")),
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("password_confirmation"),
			Role:                 r.FormValue("role"),
		}

		res, err := s.tab.Auth().Register(r.Context(), req)
		switch {
		case err == nil && res.Authenticated:
			http.Redirect(w, r, guard.HomePath, http.StatusSeeOther)
		case err == nil:
			http.Redirect(w, r, guard.LoginPath+"?registered=1", http.StatusSeeOther)
		case errors.Is(err, auth.ErrAlreadyAuthenticated):
			http.Redirect(w, r, guard.HomePath, http.StatusSeeOther)
		default:
			page := s.newPage(r, route)
			page.Form = formFromError(err, map[string]string{
				"name":  req.Name,
				"email": req.Email,
				"phone": req.Phone,
				"role":  req.Role,
			})
			s.render(w, statusForError(err), route.View, page)
		}
	}
}

// LogoutHandler ends the session of this tab and of every other tab (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tab.Auth().Logout(r.Context()); err != nil {
			// the local session is gone either way
			s.log.Warn().Err(err).Msg("[LogoutHandler] remote logout failed")
		}
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
	}
}
