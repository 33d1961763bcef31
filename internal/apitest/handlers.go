package apitest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/users"
	"golang.org/x/crypto/bcrypt"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		fail(w, http.StatusBadRequest, "Malformed request body.", nil)
		return false
	}
	return true
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		fail(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[b.byEmail[strings.ToLower(strings.TrimSpace(req.Email))]]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		fail(w, http.StatusUnauthorized, "Invalid credentials.", nil)
		return
	}
	respond(w, http.StatusOK, api.AuthPayload{Token: b.issueLocked(acc.user.ID), User: acc.user.Clone()})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fields := map[string][]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = []string{"The name field is required."}
	}
	if email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		fields["password"] = []string{err.Error()}
	} else if req.Password != req.PasswordConfirmation {
		fields["password_confirmation"] = []string{"The password confirmation does not match."}
	}
	role, ok := users.ParseRole(req.Role)
	if !ok || role == users.RoleAdmin {
		fields["role"] = []string{"The selected role is invalid."}
	}

	b.mu.Lock()
	if _, taken := b.byEmail[email]; taken && email != "" {
		fields["email"] = []string{"The email has already been taken."}
	}
	b.mu.Unlock()
	if len(fields) > 0 {
		fail(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}

	user := b.AddUser(strings.TrimSpace(req.Name), email, req.Password, role)

	b.mu.Lock()
	defer b.mu.Unlock()
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		b.accounts[user.ID].user.Phone = phone
		user.Phone = phone
	}
	out := api.AuthPayload{User: user}
	if !b.noRegisterTok {
		out.Token = b.issueLocked(user.ID)
	}
	respond(w, http.StatusCreated, out)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, raw, ok := b.authenticateLocked(r); ok {
		delete(b.tokens, raw)
	}
	respond(w, http.StatusOK, nil)
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, acc.user.Clone())
}

func (b *Backend) listSubjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	level := q.Get("level")
	minPrice, _ := strconv.ParseFloat(q.Get("min_price"), 64)
	maxPrice, _ := strconv.ParseFloat(q.Get("max_price"), 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	matched := []api.Subject{}
	for _, s := range b.subjects {
		switch {
		case search != "" && !strings.Contains(strings.ToLower(s.Name), search):
		case level != "" && !strings.EqualFold(s.Level, level):
		case minPrice > 0 && s.Price < minPrice:
		case maxPrice > 0 && s.Price > maxPrice:
		default:
			matched = append(matched, s)
		}
	}
	respond(w, http.StatusOK, paginate(matched, pageParam(r), r.URL.Path))
}

func (b *Backend) listBookings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	visible := []api.Booking{}
	for _, bk := range b.bookings {
		if b.canSeeLocked(&acc.user, bk) {
			visible = append(visible, *bk)
		}
	}
	respond(w, http.StatusOK, paginate(visible, pageParam(r), r.URL.Path))
}

func (b *Backend) canSeeLocked(u *users.User, bk *api.Booking) bool {
	switch {
	case u.IsAdmin():
		return true
	case u.HasAnyRole(string(users.RoleTeacher)):
		return bk.Subject != nil && bk.Subject.Teacher != nil && bk.Subject.Teacher.ID == u.ID
	default:
		return bk.Student != nil && bk.Student.ID == u.ID
	}
}

func (b *Backend) createBooking(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	if !acc.user.HasAnyRole(string(users.RoleStudent)) {
		fail(w, http.StatusForbidden, "Only students can book sessions.", nil)
		return
	}
	subject := b.subjectLocked(req.SubjectID)
	fields := map[string][]string{}
	if subject == nil {
		fields["subject_id"] = []string{"The selected subject is invalid."}
	}
	if req.StartsAt.IsZero() || req.StartsAt.Before(b.nowTime()) {
		fields["starts_at"] = []string{"The session must start in the future."}
	}
	if req.DurationMinutes <= 0 {
		fields["duration_minutes"] = []string{"The duration must be positive."}
	}
	if len(fields) > 0 {
		fail(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}

	b.nextID++
	bk := &api.Booking{
		ID:              b.nextID,
		Subject:         subject,
		SubjectID:       subject.ID,
		Student:         acc.user.Clone(),
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Status:          api.BookingPending,
		Note:            req.Note,
	}
	b.bookings = append(b.bookings, bk)
	if subject.Teacher != nil {
		b.notifyLocked(subject.Teacher.ID, "New booking request", acc.user.Name+" booked "+subject.Name)
	}
	respond(w, http.StatusCreated, bk)
}

func (b *Backend) decideBooking(w http.ResponseWriter, r *http.Request) {
	var status api.BookingStatus
	switch chi.URLParam(r, "decision") {
	case "approve":
		status = api.BookingApproved
	case "reject":
		status = api.BookingRejected
	default:
		fail(w, http.StatusNotFound, "Not found.", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	bk := b.bookingLocked(idParam(r))
	if bk == nil {
		fail(w, http.StatusNotFound, "Booking not found.", nil)
		return
	}
	ownsSubject := bk.Subject != nil && bk.Subject.Teacher != nil && bk.Subject.Teacher.ID == acc.user.ID
	if !acc.user.IsAdmin() && !ownsSubject {
		fail(w, http.StatusForbidden, "You cannot decide this booking.", nil)
		return
	}
	if bk.Status != api.BookingPending {
		fail(w, http.StatusConflict, "The booking was already decided.", nil)
		return
	}
	bk.Status = status
	if bk.Student != nil {
		b.notifyLocked(bk.Student.ID, "Booking "+string(status), bk.Subject.Name)
	}
	respond(w, http.StatusOK, bk)
}

func (b *Backend) rate(w http.ResponseWriter, r *http.Request) {
	var req api.RatingRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fields := map[string][]string{}
	if req.Score < 1 || req.Score > 5 {
		fields["score"] = []string{"The score must be between 1 and 5."}
	}
	bk := b.bookingLocked(req.BookingID)
	if bk == nil || bk.Status != api.BookingApproved {
		fields["booking_id"] = []string{"Only approved bookings can be rated."}
	}
	if _, ok := b.accounts[req.UserID]; !ok {
		fields["user_id"] = []string{"The selected user is invalid."}
	}
	if len(fields) > 0 {
		fail(w, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return
	}
	b.nextID++
	rating := api.Rating{
		ID:        b.nextID,
		BookingID: req.BookingID,
		UserID:    req.UserID,
		Score:     req.Score,
		Comment:   req.Comment,
		CreatedAt: b.nowTime().UTC(),
	}
	b.ratings = append(b.ratings, rating)
	respond(w, http.StatusCreated, rating)
}

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	out := []api.Notification{}
	for _, n := range b.notifications[acc.user.ID] {
		out = append(out, *n)
	}
	respond(w, http.StatusOK, out)
}

func (b *Backend) markRead(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	for _, n := range b.notifications[acc.user.ID] {
		if n.ID == id {
			n.Read = true
			respond(w, http.StatusOK, n)
			return
		}
	}
	fail(w, http.StatusNotFound, "Notification not found.", nil)
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.callerLocked(w, r)
	if !ok {
		return
	}
	if !acc.user.IsAdmin() {
		fail(w, http.StatusForbidden, "Admins only.", nil)
		return
	}
	all := make([]users.User, 0, len(b.accounts))
	for id := int64(1); id <= b.nextID; id++ {
		if a, ok := b.accounts[id]; ok {
			all = append(all, *a.user.Clone())
		}
	}
	respond(w, http.StatusOK, paginate(all, pageParam(r), r.URL.Path))
}

// callerLocked answers 401 when the token was revoked after requireAuth let the request through
func (b *Backend) callerLocked(w http.ResponseWriter, r *http.Request) (*account, bool) {
	acc, _, ok := b.authenticateLocked(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Unauthenticated.", nil)
	}
	return acc, ok
}

func (b *Backend) notifyLocked(userID int64, title, body string) {
	b.nextID++
	b.notifications[userID] = append(b.notifications[userID], &api.Notification{
		ID:        b.nextID,
		Title:     title,
		Body:      body,
		CreatedAt: b.nowTime().UTC(),
	})
}

func (b *Backend) subjectLocked(id int64) *api.Subject {
	for i := range b.subjects {
		if b.subjects[i].ID == id {
			s := b.subjects[i]
			return &s
		}
	}
	return nil
}

func (b *Backend) bookingLocked(id int64) *api.Booking {
	for _, bk := range b.bookings {
		if bk.ID == id {
			return bk
		}
	}
	return nil
}

func pageParam(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	return page
}

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
