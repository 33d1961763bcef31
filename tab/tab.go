// Package tab composes one session context: the equivalent of a browser tab
// with its own session store, query cache and logout listener on top of
// storage shared with the other tabs.
package tab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/auth"
	"github.com/jrsteele09/tutorhub-web/broadcast"
	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/jrsteele09/tutorhub-web/prefs"
	"github.com/jrsteele09/tutorhub-web/query"
	"github.com/jrsteele09/tutorhub-web/session"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/jrsteele09/tutorhub-web/token"
	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/rs/zerolog"
)

// Deps are the shared resources a tab is built on. Store and Channel default
// to a private in-memory store and hub.
type Deps struct {
	Store     storage.Store
	Channel   broadcast.Channel
	Transport http.RoundTripper
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	NowTime   func() time.Time
}

type Tab struct {
	tokens   *token.Persistence
	session  *session.Store
	cache    *query.Client
	api      *api.Client
	auth     *auth.Service
	listener *broadcast.LogoutListener
	prefs    *prefs.Store
	metrics  *metrics.Metrics
	log      zerolog.Logger

	unsubscribe func()
}

// New wires storage, token, session, cache, API client, auth service and
// logout listener, in that order, and starts listening for logouts.
func New(ctx context.Context, cfg config.Config, deps Deps) (*Tab, error) {
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}
	if deps.Channel == nil {
		deps.Channel = broadcast.NewMemoryHub().Join("")
	}
	if deps.NowTime == nil {
		deps.NowTime = time.Now
	}
	log := deps.Logger.With().Str("tab", deps.Channel.Origin()).Logger()

	t := &Tab{metrics: deps.Metrics, log: log}
	t.tokens = token.NewPersistence(
		token.NewJar(deps.Store, token.WithLogger(log), token.WithNowTime(deps.NowTime)),
		cfg.GetProjectID(),
		cfg.GetTokenExpiryDays(),
	)
	t.session = session.NewStore()
	t.cache = query.NewClient(
		query.WithDefaults(cfg.GetQueryStaleTime(), cfg.GetQueryRetry(), cfg.GetQueryRetryDelay()),
		query.WithRetryIf(api.IsTransient),
		query.WithErrorHandler(t.onQueryError),
		query.WithNowTime(deps.NowTime),
		query.WithLogger(log),
		query.WithMetrics(deps.Metrics),
	)

	apiOpts := []api.Option{api.WithTimeout(cfg.GetRequestTimeout()), api.WithLogger(log)}
	if deps.Transport != nil {
		apiOpts = append(apiOpts, api.WithTransport(deps.Transport))
	}
	t.api = api.NewClient(cfg.GetAPIBaseURL(), t.tokens, apiOpts...)

	t.listener = broadcast.NewLogoutListener(deps.Channel, deps.Store, cfg.GetProjectID(), t.tokens, t.teardownFromBroadcast, broadcast.WithLogger(log))

	svc, err := auth.NewService(auth.Deps{
		API:       t.api,
		Session:   t.session,
		Tokens:    t.tokens,
		Cache:     t.cache,
		Broadcast: t.listener,
	}, auth.WithLogger(log), auth.WithMetrics(deps.Metrics), auth.WithNowTime(deps.NowTime))
	if err != nil {
		t.cache.Close()
		return nil, fmt.Errorf("[tab.New] %w", err)
	}
	t.auth = svc
	t.prefs = prefs.New(deps.Store, cfg.GetProjectID(), prefs.WithLogger(log))

	// Gated queries are re-evaluated after every committed session change
	t.unsubscribe = t.session.Subscribe(func(session.State) { t.cache.Reevaluate() })

	if err := t.listener.Start(ctx); err != nil {
		t.unsubscribe()
		t.cache.Close()
		return nil, fmt.Errorf("[tab.New] start logout listener: %w", err)
	}
	return t, nil
}

func (t *Tab) Session() *session.Store {
	return t.session
}

func (t *Tab) Auth() *auth.Service {
	return t.auth
}

func (t *Tab) Cache() *query.Client {
	return t.cache
}

func (t *Tab) Prefs() *prefs.Store {
	return t.prefs
}

func (t *Tab) Listener() *broadcast.LogoutListener {
	return t.listener
}

// Bootstrap resolves the initial session from the persisted token
func (t *Tab) Bootstrap(ctx context.Context) error {
	return t.auth.Bootstrap(ctx)
}

// Close stops the logout listener and the cache. The shared storage is left open.
func (t *Tab) Close() {
	t.unsubscribe()
	t.listener.Stop()
	t.cache.Close()
}

func (t *Tab) onQueryError(key query.Key, err error) {
	if !api.IsAuthentication(err) {
		return
	}
	t.log.Info().Str("key", key.String()).Msg("[Tab.onQueryError] 401, expiring session")
	t.auth.ExpireSession(context.Background())
}

func (t *Tab) teardownFromBroadcast(ctx context.Context) {
	t.auth.Teardown(ctx)
	t.metrics.SessionEvent("broadcast")
}

// expireOn401 maps an authentication failure of a mutation to session expiry
func (t *Tab) expireOn401(ctx context.Context, err error) error {
	if api.IsAuthentication(err) {
		t.auth.ExpireSession(ctx)
	}
	return err
}

func (t *Tab) authenticated() bool {
	return t.session.IsAuthenticated()
}

func (t *Tab) gated() query.Options {
	return query.Options{Enabled: t.authenticated, Tags: []string{auth.AuthTag}}
}

var (
	subjectsKey      = query.NewKey("subjects")
	bookingsKey      = query.NewKey("bookings")
	notificationsKey = query.NewKey("notifications")
	usersKey         = query.NewKey("users")
)

// Profile returns the current user's profile
func (t *Tab) Profile(ctx context.Context) (*users.User, query.Result, error) {
	return query.Get(ctx, t.cache, auth.ProfileKey, t.api.Profile, t.gated())
}

func (t *Tab) Subjects(ctx context.Context, q api.SubjectQuery) (api.Page[api.Subject], query.Result, error) {
	key := query.NewKey(subjectsKey.Resource, q.Search, q.Level, q.MinPrice, q.MaxPrice, q.Page)
	return query.Get(ctx, t.cache, key, func(ctx context.Context) (api.Page[api.Subject], error) {
		return t.api.Subjects(ctx, q)
	}, t.gated())
}

func (t *Tab) Bookings(ctx context.Context, page int) (api.Page[api.Booking], query.Result, error) {
	return query.Get(ctx, t.cache, query.NewKey(bookingsKey.Resource, max(page, 1)), func(ctx context.Context) (api.Page[api.Booking], error) {
		return t.api.Bookings(ctx, page)
	}, t.gated())
}

func (t *Tab) Notifications(ctx context.Context) ([]api.Notification, query.Result, error) {
	return query.Get(ctx, t.cache, notificationsKey, t.api.Notifications, t.gated())
}

// Users lists accounts for administrators
func (t *Tab) Users(ctx context.Context, page int) (api.Page[users.User], query.Result, error) {
	opts := t.gated()
	opts.Enabled = func() bool { return t.authenticated() && t.session.User().IsAdmin() }
	return query.Get(ctx, t.cache, query.NewKey(usersKey.Resource, max(page, 1)), func(ctx context.Context) (api.Page[users.User], error) {
		return t.api.Users(ctx, page)
	}, opts)
}

func (t *Tab) CreateBooking(ctx context.Context, req api.CreateBookingRequest) (api.Booking, error) {
	b, err := t.api.CreateBooking(ctx, req)
	if err != nil {
		return api.Booking{}, t.expireOn401(ctx, err)
	}
	t.cache.Invalidate(bookingsKey, notificationsKey)
	return b, nil
}

func (t *Tab) ApproveBooking(ctx context.Context, id int64) (api.Booking, error) {
	b, err := t.api.ApproveBooking(ctx, id)
	if err != nil {
		return api.Booking{}, t.expireOn401(ctx, err)
	}
	t.cache.Invalidate(bookingsKey, notificationsKey)
	return b, nil
}

func (t *Tab) RejectBooking(ctx context.Context, id int64) (api.Booking, error) {
	b, err := t.api.RejectBooking(ctx, id)
	if err != nil {
		return api.Booking{}, t.expireOn401(ctx, err)
	}
	t.cache.Invalidate(bookingsKey, notificationsKey)
	return b, nil
}

func (t *Tab) RateUser(ctx context.Context, req api.RatingRequest) (api.Rating, error) {
	r, err := t.api.RateUser(ctx, req)
	if err != nil {
		return api.Rating{}, t.expireOn401(ctx, err)
	}
	t.cache.Invalidate(bookingsKey, subjectsKey)
	return r, nil
}

func (t *Tab) MarkNotificationRead(ctx context.Context, id int64) (api.Notification, error) {
	n, err := t.api.MarkNotificationRead(ctx, id)
	if err != nil {
		return api.Notification{}, t.expireOn401(ctx, err)
	}
	t.cache.Invalidate(notificationsKey)
	return n, nil
}
