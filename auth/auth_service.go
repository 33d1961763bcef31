// Package auth drives the session lifecycle of a tab: login, registration,
// logout, bootstrap from a persisted token and expiry on 401.
package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/jrsteele09/tutorhub-web/query"
	"github.com/jrsteele09/tutorhub-web/session"
	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AuthTag tags every cached query whose content depends on who is logged in
const AuthTag = "auth"

// ProfileKey caches the current user's profile
var ProfileKey = query.NewKey("auth", "profile")

// API is the subset of the backend the service needs
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (api.AuthPayload, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.AuthPayload, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*users.User, error)
}

// Tokens persists the bearer token
type Tokens interface {
	Save(ctx context.Context, bearer string) bool
	Load(ctx context.Context) (string, bool)
	Clear(ctx context.Context)
}

// Cache is the query cache used for the profile and for auth-dependent data
type Cache interface {
	Fetch(ctx context.Context, key query.Key, fetch query.FetchFunc, opts query.Options) (query.Result, error)
	InvalidateTags(tags ...string)
	RemoveTags(tags ...string)
}

// Announcer signals logouts to the other tabs
type Announcer interface {
	Announce(ctx context.Context) error
	Disarm()
	Rearm()
}

// Deps holds all dependencies of the Service. Broadcast may be nil.
type Deps struct {
	API       API
	Session   *session.Store
	Tokens    Tokens
	Cache     Cache
	Broadcast Announcer
}

// Result is the outcome of a login or registration
type Result struct {
	User          *users.User
	Authenticated bool
}

type Service struct {
	deps      Deps
	validator *Validator
	log       zerolog.Logger
	metrics   *metrics.Metrics
	nowTime   func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService validates the dependencies and returns a Service
func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.API == nil {
		return nil, errors.New("[NewService] API is required")
	}
	if deps.Session == nil {
		return nil, errors.New("[NewService] Session store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewService] Tokens are required")
	}
	if deps.Cache == nil {
		return nil, errors.New("[NewService] Cache is required")
	}

	s := &Service{
		deps:      deps,
		validator: NewValidator(),
		log:       zerolog.Nop(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login exchanges credentials for a token and commits the session.
// On any failure the session and the stored token are left untouched.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	if s.deps.Session.Phase() == session.PhaseAuthenticated {
		return Result{}, ErrAlreadyAuthenticated
	}
	if err := s.validator.ValidateLogin(email, password); err != nil {
		return Result{}, err
	}

	payload, err := s.deps.API.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.log.Info().Err(err).Str("email", email).Msg("[Service.Login] rejected")
		return Result{}, errors.Wrap(err, "[Service.Login] api login")
	}
	if err := s.commit(ctx, payload, "login"); err != nil {
		return Result{}, errors.Wrap(err, "[Service.Login]")
	}
	return Result{User: payload.User.Clone(), Authenticated: true}, nil
}

// Register creates an account. When the backend answers with a token the
// session is committed as for Login; without one the tab stays anonymous.
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (Result, error) {
	if s.deps.Session.Phase() == session.PhaseAuthenticated {
		return Result{}, ErrAlreadyAuthenticated
	}
	if err := s.validator.ValidateRegistration(req); err != nil {
		return Result{}, err
	}

	payload, err := s.deps.API.Register(ctx, req)
	if err != nil {
		return Result{}, errors.Wrap(err, "[Service.Register] api register")
	}
	if payload.Token == "" {
		s.log.Info().Int64("user_id", payload.User.ID).Msg("[Service.Register] registered without token, login required")
		s.metrics.SessionEvent("register")
		return Result{User: payload.User.Clone()}, nil
	}
	if err := s.commit(ctx, payload, "register"); err != nil {
		return Result{}, errors.Wrap(err, "[Service.Register]")
	}
	return Result{User: payload.User.Clone(), Authenticated: true}, nil
}

// commit persists the token and then publishes the user. A token that could
// not be written leaves the session unchanged.
func (s *Service) commit(ctx context.Context, payload api.AuthPayload, event string) error {
	if !s.deps.Tokens.Save(ctx, payload.Token) {
		return ErrTokenNotPersisted
	}
	// before Commit, which re-enables gated queries
	s.deps.Cache.InvalidateTags(AuthTag)
	s.deps.Session.Commit(payload.User, true)
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Rearm()
	}
	s.metrics.SessionEvent(event)
	s.log.Info().Int64("user_id", payload.User.ID).Str("event", event).Msg("[Service.commit] session started")
	return nil
}

// Logout ends the session locally and tells the other tabs. The backend call
// is best effort: its error is returned for logging but local state is
// cleared regardless.
func (s *Service) Logout(ctx context.Context) error {
	var remoteErr error
	if _, ok := s.deps.Tokens.Load(ctx); ok {
		remoteErr = s.deps.API.Logout(ctx)
	}

	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Disarm()
	}
	s.Teardown(ctx)
	if s.deps.Broadcast != nil {
		if err := s.deps.Broadcast.Announce(ctx); err != nil {
			s.log.Warn().Err(err).Msg("[Service.Logout] could not announce logout")
		}
	}
	s.metrics.SessionEvent("logout")

	if remoteErr != nil {
		return errors.Wrap(remoteErr, "[Service.Logout] remote logout")
	}
	return nil
}

// maxProfileAttempts bounds the refetches of a profile whose response was
// superseded while the stored token stayed the same
const maxProfileAttempts = 3

// Bootstrap resolves the initial session of the tab from the persisted
// token. Any failure to load the profile ends in the anonymous state. A
// login or logout that replaces the token while the profile is in flight
// wins, and the profile fetched for the old token is never committed.
func (s *Service) Bootstrap(ctx context.Context) error {
	bearer, ok := s.deps.Tokens.Load(ctx)
	if !ok {
		s.deps.Session.Teardown()
		s.metrics.SessionEvent("bootstrap_anonymous")
		return nil
	}

	var (
		res query.Result
		err error
	)
	for attempt := 0; attempt < maxProfileAttempts; attempt++ {
		res, err = s.deps.Cache.Fetch(ctx, ProfileKey, s.fetchProfile, query.Options{Tags: []string{AuthTag}})
		if err != nil && !errors.Is(err, query.ErrSuperseded) {
			break
		}
		if s.tokenReplaced(ctx, bearer) {
			s.log.Debug().Msg("[Service.Bootstrap] token replaced while the profile was in flight")
			return nil
		}
		if err == nil {
			break
		}
	}
	if err != nil && s.deps.Session.IsAuthenticated() {
		// a login committed while the stale token was being checked
		return nil
	}
	if err != nil {
		s.Teardown(ctx)
		s.metrics.SessionEvent("bootstrap_failed")
		return errors.Wrap(err, "[Service.Bootstrap] fetch profile")
	}
	user, ok := res.Data.(*users.User)
	if !ok || user == nil {
		s.Teardown(ctx)
		s.metrics.SessionEvent("bootstrap_failed")
		return ErrNoProfile
	}

	s.deps.Session.Commit(user, true)
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Rearm()
	}
	s.metrics.SessionEvent("bootstrap_authenticated")
	return nil
}

// tokenReplaced reports whether a login or logout changed the stored token
// since bootstrap read it. A cleared token still ends the loading phase.
func (s *Service) tokenReplaced(ctx context.Context, bearer string) bool {
	current, ok := s.deps.Tokens.Load(ctx)
	if ok && current == bearer {
		return false
	}
	if !ok {
		s.deps.Session.Teardown()
	}
	return true
}

func (s *Service) fetchProfile(ctx context.Context) (any, error) {
	return s.deps.API.Profile(ctx)
}

// ExpireSession handles a 401 from any request: the session is cleared
// without calling the backend.
func (s *Service) ExpireSession(ctx context.Context) {
	wasAuthenticated := s.deps.Session.IsAuthenticated()
	s.Teardown(ctx)
	if wasAuthenticated {
		s.metrics.SessionEvent("expired")
		s.log.Info().Msg("[Service.ExpireSession] session expired")
	}
}

// Teardown clears the token, the session and every auth-dependent cache
// entry. It is also the teardown run when another tab logs out.
func (s *Service) Teardown(ctx context.Context) {
	s.deps.Tokens.Clear(ctx)
	s.deps.Session.Teardown()
	s.deps.Cache.RemoveTags(AuthTag)
}
