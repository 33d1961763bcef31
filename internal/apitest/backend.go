// Package apitest runs an in-process tutoring marketplace backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/users"
	"golang.org/x/crypto/bcrypt"
)

const PerPage = 10

type account struct {
	user users.User
	hash []byte
}

type failure struct {
	status int
	left   int
}

// Backend is a fake REST backend. The zero value is not usable, call New.
type Backend struct {
	mu            sync.Mutex
	accounts      map[int64]*account
	byEmail       map[string]int64
	tokens        map[string]int64
	subjects      []api.Subject
	bookings      []*api.Booking
	notifications map[int64][]*api.Notification
	ratings       []api.Rating
	nextID        int64

	secret        []byte
	tokenTTL      time.Duration
	nowTime       func() time.Time
	noRegisterTok bool

	failures   map[string]*failure
	calls      map[string]int
	requestIDs []string

	server *httptest.Server
}

type Option func(*Backend)

// WithTokenTTL sets the exp claim of issued tokens
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) {
		b.tokenTTL = d
	}
}

func WithNowTime(nowTime func() time.Time) Option {
	return func(b *Backend) {
		b.nowTime = nowTime
	}
}

// New starts the backend and stops it when the test ends
func New(t testing.TB, opts ...Option) *Backend {
	t.Helper()
	b := &Backend{
		accounts:      make(map[int64]*account),
		byEmail:       make(map[string]int64),
		tokens:        make(map[string]int64),
		notifications: make(map[int64][]*api.Notification),
		secret:        []byte("apitest-" + uuid.NewString()),
		tokenTTL:      24 * time.Hour,
		nowTime:       time.Now,
		failures:      make(map[string]*failure),
		calls:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL
func (b *Backend) URL() string {
	return b.server.URL
}

// AddUser creates an account that can log in with password
func (b *Backend) AddUser(name, email, password string, role users.RoleName) *users.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("[apitest.AddUser] hash password: %v", err))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	acc := &account{
		user: users.User{ID: b.nextID, Name: name, Email: strings.ToLower(email), Role: &users.Role{Name: string(role)}},
		hash: hash,
	}
	b.accounts[acc.user.ID] = acc
	b.byEmail[acc.user.Email] = acc.user.ID
	return acc.user.Clone()
}

// SetRole changes the stored role of a user, bypassing any session
func (b *Backend) SetRole(userID int64, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.accounts[userID]; ok {
		acc.user.Role = &users.Role{Name: role}
	}
}

func (b *Backend) AddSubject(teacher *users.User, name, level string, price float64) api.Subject {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := api.Subject{ID: b.nextID, Name: name, Level: level, Price: price, Teacher: teacher.Clone()}
	b.subjects = append(b.subjects, s)
	return s
}

// IssueToken returns a valid bearer token for userID without a login call
func (b *Backend) IssueToken(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(userID)
}

// RevokeAll invalidates every issued token, as a server-side session purge would
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]int64)
}

// RegisterWithoutToken makes registration return the user but no token
func (b *Backend) RegisterWithoutToken(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noRegisterTok = v
}

// FailNext makes the next n calls of "METHOD /path" answer with status
func (b *Backend) FailNext(method, path string, n, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = &failure{status: status, left: n}
}

// Calls counts the requests received for "METHOD /path"
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// RequestIDs returns the X-Request-ID header of every request, in order
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

func (b *Backend) issueLocked(userID int64) string {
	now := b.nowTime()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(fmt.Sprintf("[apitest.issueLocked] sign token: %v", err))
	}
	b.tokens[signed] = userID
	return signed
}

// authenticate resolves the bearer token of r. The caller holds b.mu.
func (b *Backend) authenticateLocked(r *http.Request) (*account, string, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, "", false
	}
	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.nowTime))
	if err != nil {
		return nil, "", false
	}
	id, ok := b.tokens[raw]
	if !ok {
		return nil, "", false
	}
	acc, ok := b.accounts[id]
	return acc, raw, ok
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Post("/auth/login", b.login)
	r.Post("/auth/register", b.register)
	r.Group(func(r chi.Router) {
		r.Use(b.requireAuth)
		r.Post("/auth/logout", b.logout)
		r.Get("/auth/profile", b.profile)
		r.Get("/subjects", b.listSubjects)
		r.Get("/bookings", b.listBookings)
		r.Post("/bookings", b.createBooking)
		r.Patch("/bookings/{id}/{decision}", b.decideBooking)
		r.Post("/ratings", b.rate)
		r.Get("/notifications", b.listNotifications)
		r.Patch("/notifications/{id}/read", b.markRead)
		r.Get("/users", b.listUsers)
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.calls[key]++
		b.requestIDs = append(b.requestIDs, r.Header.Get(api.RequestIDHeader))
		f := b.failures[key]
		status := 0
		if f != nil && f.left > 0 {
			f.left--
			status = f.status
		}
		b.mu.Unlock()

		if status != 0 {
			fail(w, status, http.StatusText(status), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		_, _, ok := b.authenticateLocked(r)
		b.mu.Unlock()
		if !ok {
			fail(w, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Envelope[any]{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Envelope[any]{Success: false, Message: message, Errors: fields})
}

func paginate[T any](items []T, page int, path string) api.Page[T] {
	if page < 1 {
		page = 1
	}
	last := (len(items) + PerPage - 1) / PerPage
	if last < 1 {
		last = 1
	}
	out := api.Page[T]{PerPage: PerPage, CurrentPage: page, LastPage: last, Items: []T{}}
	start := (page - 1) * PerPage
	if start < len(items) {
		end := min(start+PerPage, len(items))
		out.Items = append(out.Items, items[start:end]...)
	}
	if page < last {
		next := fmt.Sprintf("%s?page=%d", path, page+1)
		out.NextPageURL = &next
	}
	return out
}
