// Package api is the client of the tutoring marketplace REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/tutorhub-web/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout  = 15 * time.Second
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// TokenLoader reads the bearer token of the current tab
type TokenLoader interface {
	Load(ctx context.Context) (string, bool)
}

// tokenSource adapts TokenLoader to oauth2. The token is read on every request
// so a logout in this or another tab takes effect immediately.
type tokenSource struct {
	tokens TokenLoader
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	bearer, ok := s.tokens.Load(context.Background())
	if !ok {
		return nil, apperrors.ErrNoToken
	}
	return &oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}, nil
}

type Client struct {
	baseURL      string
	anon         *http.Client
	authed       *http.Client
	log          zerolog.Logger
	newRequestID func() string
}

type Option func(*options)

type options struct {
	base         http.RoundTripper
	timeout      time.Duration
	log          zerolog.Logger
	newRequestID func() string
}

// WithTransport sets the round tripper under the bearer transport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithRequestIDs(next func() string) Option {
	return func(o *options) {
		o.newRequestID = next
	}
}

// NewClient returns a client for the backend at baseURL. Authenticated calls
// carry the token held by tokens.
func NewClient(baseURL string, tokens TokenLoader, opts ...Option) *Client {
	o := options{
		base:         http.DefaultTransport,
		timeout:      DefaultTimeout,
		log:          log.Logger,
		newRequestID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		baseURL: baseURL,
		anon:    &http.Client{Transport: o.base, Timeout: o.timeout},
		authed: &http.Client{
			Transport: &oauth2.Transport{Source: tokenSource{tokens: tokens}, Base: o.base},
			Timeout:   o.timeout,
		},
		log:          o.log,
		newRequestID: o.newRequestID,
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	public bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	reqID := c.newRequestID()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Kind: KindRequest, Message: "encode request body", RequestID: reqID, Err: err}
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return &Error{Kind: KindRequest, Message: "build request", RequestID: reqID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.authed
	if r.public {
		hc = c.anon
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoToken) {
			return &Error{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: "not authenticated", RequestID: reqID, Err: err}
		}
		c.log.Warn().Err(err).Str("request_id", reqID).Str("method", r.method).Str("path", r.path).Msg("[api.do] request failed")
		return &Error{Kind: KindNetwork, Message: "request failed", RequestID: reqID, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("request_id", reqID).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("[api.do]")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "read response", RequestID: reqID, Err: err}
	}

	var env Envelope[json.RawMessage]
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{
			Kind:      kindForStatus(resp.StatusCode),
			Status:    resp.StatusCode,
			Message:   env.Message,
			Fields:    env.Errors,
			RequestID: reqID,
		}
	}
	if decodeErr != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response", RequestID: reqID, Err: decodeErr}
	}
	if len(raw) > 0 && !env.Success {
		return &Error{Kind: KindRequest, Status: resp.StatusCode, Message: env.Message, Fields: env.Errors, RequestID: reqID}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response data", RequestID: reqID, Err: err}
	}
	return nil
}
