package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/rs/zerolog"
)

// LoggedOutSentinel is the only value that triggers a teardown
const LoggedOutSentinel = "logged_out"

// BroadcastKey returns the storage key used to signal logouts: "<project>-auth"
func BroadcastKey(projectID string) string {
	return projectID + "-auth"
}

// TokenClearer removes the tab's bearer token
type TokenClearer interface {
	Clear(ctx context.Context)
}

// TeardownFunc clears the tab's session (and anything derived from it)
type TeardownFunc func(ctx context.Context)

// LogoutListener propagates logouts between tabs. Each tab owns one.
//
// The armed flag guarantees a teardown runs at most once per authenticated
// period, however many times the event is delivered. It is cleared by the
// first teardown (local or remote) and set again by Rearm after a login.
type LogoutListener struct {
	channel  Channel
	store    storage.Store
	key      string
	tokens   TokenClearer
	teardown TeardownFunc
	log      zerolog.Logger
	timeout  time.Duration

	armed atomic.Bool

	mu          sync.Mutex
	unsubscribe func()
}

// LogoutListenerOption defines a function type to modify the LogoutListener instance.
type LogoutListenerOption func(*LogoutListener)

// WithLogger sets the listener logger
func WithLogger(log zerolog.Logger) LogoutListenerOption {
	return func(l *LogoutListener) {
		l.log = log
	}
}

// NewLogoutListener builds an armed listener for projectID's broadcast key
func NewLogoutListener(channel Channel, store storage.Store, projectID string, tokens TokenClearer, teardown TeardownFunc, options ...LogoutListenerOption) *LogoutListener {
	l := &LogoutListener{
		channel:  channel,
		store:    store,
		key:      BroadcastKey(projectID),
		tokens:   tokens,
		teardown: teardown,
		log:      zerolog.Nop(),
		timeout:  5 * time.Second,
	}
	for _, opt := range options {
		opt(l)
	}
	l.armed.Store(true)
	return l
}

// Key returns the broadcast key
func (l *LogoutListener) Key() string {
	return l.key
}

// Start subscribes to the broadcast key. Calling Start twice is a no-op.
func (l *LogoutListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		return nil
	}
	unsubscribe, err := l.channel.Subscribe(ctx, l.key, l.handle)
	if err != nil {
		return err
	}
	l.unsubscribe = unsubscribe
	return nil
}

// Stop unsubscribes
func (l *LogoutListener) Stop() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Disarm marks the local session as already torn down so a late or echoed
// broadcast does not tear it down a second time.
func (l *LogoutListener) Disarm() {
	l.armed.Store(false)
}

// Rearm re-enables remote teardown after a new session was established
func (l *LogoutListener) Rearm() {
	l.armed.Store(true)
}

// Armed reports whether a broadcast would tear this tab down
func (l *LogoutListener) Armed() bool {
	return l.armed.Load()
}

// Announce writes the sentinel to durable storage and signals every other tab
func (l *LogoutListener) Announce(ctx context.Context) error {
	if err := l.store.Set(ctx, l.key, LoggedOutSentinel, time.Time{}); err != nil {
		l.log.Warn().Err(err).Str("key", l.key).Msg("could not persist logout sentinel")
	}
	if err := l.channel.Publish(ctx, l.key, LoggedOutSentinel); err != nil {
		return err
	}
	return nil
}

func (l *LogoutListener) handle(msg Message) {
	if msg.Key != l.key || msg.Value != LoggedOutSentinel {
		return
	}
	if !l.armed.CompareAndSwap(true, false) {
		l.log.Debug().Str("origin", msg.Origin).Msg("logout broadcast ignored, session already torn down")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.store.Delete(ctx, l.key); err != nil {
		l.log.Warn().Err(err).Str("key", l.key).Msg("could not clear logout sentinel")
	}
	l.tokens.Clear(ctx)
	l.teardown(ctx)
	l.log.Info().Str("origin", msg.Origin).Msg("session torn down by logout in another tab")
}
