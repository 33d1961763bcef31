package query

import (
	"time"

	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultStaleTime  = 5 * time.Minute
	DefaultRetry      = 1
	DefaultRetryDelay = time.Second
)

// NoRetry disables retries for a single query
const NoRetry = -1

// Options tune a single query. The zero value takes the client defaults.
type Options struct {
	StaleTime  time.Duration
	Retry      int // 0 uses the client default, NoRetry disables retries
	RetryDelay time.Duration
	Enabled    func() bool // nil means always enabled
	Tags       []string
}

func (o Options) resolve(defaults Options) Options {
	if o.StaleTime <= 0 {
		o.StaleTime = defaults.StaleTime
	}
	switch {
	case o.Retry == 0:
		o.Retry = defaults.Retry
	case o.Retry < 0:
		o.Retry = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaults.RetryDelay
	}
	return o
}

// ErrorHandler receives every error a fetch surfaces after its retries are exhausted
type ErrorHandler func(key Key, err error)

// RetryPredicate decides whether a failed attempt is worth repeating
type RetryPredicate func(err error) bool

type Option func(*Client)

// WithDefaults replaces the stale time, retry count and retry delay used when a query leaves them unset
func WithDefaults(staleTime time.Duration, retry int, retryDelay time.Duration) Option {
	return func(c *Client) {
		if staleTime > 0 {
			c.defaults.StaleTime = staleTime
		}
		if retry >= 0 {
			c.defaults.Retry = retry
		}
		if retryDelay > 0 {
			c.defaults.RetryDelay = retryDelay
		}
	}
}

func WithNowTime(nowTime func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowTime
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) {
		c.onError = h
	}
}

func WithRetryIf(p RetryPredicate) Option {
	return func(c *Client) {
		c.retryIf = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}
