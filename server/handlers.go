package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/guard"
	"github.com/jrsteele09/tutorhub-web/prefs"
	"github.com/jrsteele09/tutorhub-web/routes"
)

const startsAtLayout = "2006-01-02T15:04"

// loader fills the page model of one view
type loader func(r *http.Request, p *Page) error

type SubjectsData struct {
	Filter   prefs.SubjectFilter
	Subjects api.Page[api.Subject]
}

func (s *Server) loaders() map[string]loader {
	return map[string]loader{
		"login":             s.loadLogin,
		"subjects":          s.loadSubjects,
		"bookings":          s.loadBookings,
		"booking_new":       s.loadBookingForm,
		"notifications":     s.loadNotifications,
		"profile":           s.loadProfile,
		"dashboard":         s.loadDashboard,
		"dashboard_student": s.loadBookings,
		"dashboard_teacher": s.loadBookings,
		"dashboard_admin":   s.loadBookings,
		"admin_users":       s.loadUsers,
		"admin_bookings":    s.loadBookings,
		"admin_booking":     s.loadBooking,
	}
}

func (s *Server) loadLogin(r *http.Request, p *Page) error {
	p.Form.Values[guard.RedirectParam] = r.URL.Query().Get(guard.RedirectParam)
	if r.URL.Query().Get("registered") != "" {
		p.Notice = "Your account was created. Please log in."
	}
	return nil
}

// loadSubjects searches with the filter in the query string and remembers
// it. Without one the last remembered filter is used.
func (s *Server) loadSubjects(r *http.Request, p *Page) error {
	ctx := r.Context()
	filter := s.tab.Prefs().SubjectFilter(ctx)
	if q := r.URL.Query(); hasAny(q, "search", "level", "min_price", "max_price", "page") {
		filter = prefs.SubjectFilter{
			Search:   q.Get("search"),
			Level:    q.Get("level"),
			MinPrice: parseFloat(q.Get("min_price")),
			MaxPrice: parseFloat(q.Get("max_price")),
			Page:     pageParam(r),
		}.Normalize()
		if err := s.tab.Prefs().SetSubjectFilter(ctx, filter); err != nil {
			s.log.Warn().Err(err).Msg("[loadSubjects] could not remember filter")
		}
	}

	subjects, _, err := s.tab.Subjects(ctx, filter.Query())
	if err != nil {
		return err
	}
	p.Data = SubjectsData{Filter: filter, Subjects: subjects}
	return nil
}

func (s *Server) loadBookings(r *http.Request, p *Page) error {
	bookings, _, err := s.tab.Bookings(r.Context(), pageParam(r))
	if err != nil {
		return err
	}
	p.Data = bookings
	return nil
}

// loadBookingForm lists the subjects a booking can be made for
func (s *Server) loadBookingForm(r *http.Request, p *Page) error {
	if _, ok := p.Form.Values["subject_id"]; !ok {
		p.Form.Values["subject_id"] = r.URL.Query().Get("subject_id")
	}
	subjects, _, err := s.tab.Subjects(r.Context(), api.SubjectQuery{})
	if err != nil {
		return err
	}
	p.Data = subjects
	return nil
}

func (s *Server) loadNotifications(r *http.Request, p *Page) error {
	notifications, _, err := s.tab.Notifications(r.Context())
	if err != nil {
		return err
	}
	p.Data = notifications
	return nil
}

func (s *Server) loadProfile(r *http.Request, p *Page) error {
	profile, _, err := s.tab.Profile(r.Context())
	if err != nil {
		return err
	}
	p.Data = profile
	return nil
}

// loadDashboard points the visitor at the dashboard of their role
func (s *Server) loadDashboard(_ *http.Request, p *Page) error {
	role, ok := p.User.RoleName()
	if !ok {
		return nil
	}
	href, err := s.table.Href(routes.Dashboard+"."+string(role), nil)
	if err != nil {
		return nil
	}
	p.Data = href
	return nil
}

func (s *Server) loadUsers(r *http.Request, p *Page) error {
	list, _, err := s.tab.Users(r.Context(), pageParam(r))
	if err != nil {
		return err
	}
	p.Data = list
	return nil
}

// loadBooking finds one booking by walking the visible pages
func (s *Server) loadBooking(r *http.Request, p *Page) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return errNotFound
	}
	for page := 1; ; page++ {
		bookings, _, err := s.tab.Bookings(r.Context(), page)
		if err != nil {
			return err
		}
		for _, b := range bookings.Items {
			if b.ID == id {
				p.Data = b
				return nil
			}
		}
		if !bookings.HasNext() {
			return errNotFound
		}
	}
}

// CreateBookingHandler books a session (POST /bookings/new)
func (s *Server) CreateBookingHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		values := map[string]string{
			"subject_id":       r.FormValue("subject_id"),
			"starts_at":        r.FormValue("starts_at"),
			"duration_minutes": r.FormValue("duration_minutes"),
			"note":             r.FormValue("note"),
		}

		req, err := parseBookingForm(values)
		if err == nil {
			_, err = s.tab.CreateBooking(r.Context(), req)
		}
		if err != nil {
			s.formError(w, r, route, err, values)
			return
		}
		http.Redirect(w, r, s.hrefOr(routes.Bookings, guard.HomePath), http.StatusSeeOther)
	}
}

// RateHandler rates the other party of a booking (POST /bookings/{id}/rate)
func (s *Server) RateHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		bookingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		userID, _ := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
		score, _ := strconv.Atoi(r.FormValue("score"))

		_, err = s.tab.RateUser(r.Context(), api.RatingRequest{
			BookingID: bookingID,
			UserID:    userID,
			Score:     score,
			Comment:   strings.TrimSpace(r.FormValue("comment")),
		})
		if err != nil {
			s.viewError(w, r, route, err)
			return
		}
		http.Redirect(w, r, route.Href, http.StatusSeeOther)
	}
}

// MarkReadHandler marks one notification read (POST /notifications/{id}/read)
func (s *Server) MarkReadHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := s.tab.MarkNotificationRead(r.Context(), id); err != nil {
			s.viewError(w, r, route, err)
			return
		}
		http.Redirect(w, r, route.Href, http.StatusSeeOther)
	}
}

// DecideBookingHandler approves or rejects a pending booking
// (POST /dashboard/admin/bookings/{id}/approve|reject)
func (s *Server) DecideBookingHandler(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch chi.URLParam(r, "decision") {
		case "approve":
			_, err = s.tab.ApproveBooking(r.Context(), id)
		case "reject":
			_, err = s.tab.RejectBooking(r.Context(), id)
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.viewError(w, r, route, err)
			return
		}
		http.Redirect(w, r, s.hrefOr(routes.AdminBookings, guard.HomePath), http.StatusSeeOther)
	}
}

// formError re-renders the form of route with the errors of err, or leaves
// for the login page when the session expired.
func (s *Server) formError(w http.ResponseWriter, r *http.Request, route routes.Route, err error, values map[string]string) {
	if api.IsAuthentication(err) {
		s.viewError(w, r, route, err)
		return
	}
	page := s.newPage(r, route)
	page.Form = formFromError(err, values)
	if load := s.loaders()[route.View]; load != nil {
		if loadErr := load(r, page); loadErr != nil {
			s.viewError(w, r, route, loadErr)
			return
		}
	}
	s.render(w, statusForError(err), route.View, page)
}

func (s *Server) hrefOr(name, fallback string) string {
	href, err := s.table.Href(name, nil)
	if err != nil {
		return fallback
	}
	return href
}

// parseBookingForm checks the fields that must parse before the request can
// be sent. Range checks are left to the backend.
func parseBookingForm(values map[string]string) (api.CreateBookingRequest, error) {
	fields := map[string][]string{}
	subjectID, err := strconv.ParseInt(values["subject_id"], 10, 64)
	if err != nil {
		fields["subject_id"] = []string{"Choose a subject."}
	}
	startsAt, err := time.ParseInLocation(startsAtLayout, values["starts_at"], time.Local)
	if err != nil {
		if startsAt, err = time.Parse(time.RFC3339, values["starts_at"]); err != nil {
			fields["starts_at"] = []string{"Enter a valid date and time."}
		}
	}
	duration, err := strconv.Atoi(values["duration_minutes"])
	if err != nil {
		fields["duration_minutes"] = []string{"Enter the duration in minutes."}
	}
	if len(fields) > 0 {
		return api.CreateBookingRequest{}, &api.Error{Kind: api.KindValidation, Message: "invalid booking form", Fields: fields}
	}
	return api.CreateBookingRequest{
		SubjectID:       subjectID,
		StartsAt:        startsAt,
		DurationMinutes: duration,
		Note:            strings.TrimSpace(values["note"]),
	}, nil
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func hasAny(q map[string][]string, keys ...string) bool {
	for _, k := range keys {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}
