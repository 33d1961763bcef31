// Package token persists the bearer token in durable client storage with
// cookie semantics: named slots, day-based expiry, replace-or-clear only.
//
// Storage failures never reach the caller. A failed read is reported as an
// absent token, which callers must treat as "not authenticated".
package token

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/rs/zerolog"
)

// SetOptions controls cookie expiry. ExpiresAt wins over ExpiresDays when both are set.
type SetOptions struct {
	ExpiresDays int
	ExpiresAt   time.Time
}

// Jar reads and writes cookie-like values in a storage.Store
type Jar struct {
	store   storage.Store
	log     zerolog.Logger
	nowTime func() time.Time
}

// JarOption defines a function type to modify the Jar instance.
type JarOption func(*Jar)

// WithLogger sets the logger used to report swallowed storage failures
func WithLogger(log zerolog.Logger) JarOption {
	return func(j *Jar) {
		j.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) JarOption {
	return func(j *Jar) {
		j.nowTime = nowFunc
	}
}

// NewJar creates a jar over store. A nil store behaves as unavailable storage.
func NewJar(store storage.Store, options ...JarOption) *Jar {
	j := &Jar{
		store:   store,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// Set stores value under name and reports whether it was stored
func (j *Jar) Set(ctx context.Context, name, value string, opts SetOptions) bool {
	if j.store == nil {
		return false
	}
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() && opts.ExpiresDays > 0 {
		expiresAt = j.nowTime().Add(time.Duration(opts.ExpiresDays) * 24 * time.Hour)
	}
	if !expiresAt.IsZero() && !expiresAt.After(j.nowTime()) {
		j.log.Warn().Str("cookie", name).Msg("refusing to store an already expired cookie")
		return false
	}
	if err := j.store.Set(ctx, name, value, expiresAt); err != nil {
		j.log.Warn().Err(err).Str("cookie", name).Msg("cookie write failed")
		return false
	}
	return true
}

// Get returns the value stored under name. ok is false when the cookie is
// absent, expired or the storage cannot be read.
func (j *Jar) Get(ctx context.Context, name string) (string, bool) {
	if j.store == nil {
		return "", false
	}
	value, err := j.store.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			j.log.Warn().Err(err).Str("cookie", name).Msg("cookie read failed")
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// Remove deletes the cookie. Failures are logged and otherwise ignored.
func (j *Jar) Remove(ctx context.Context, name string) {
	if j.store == nil {
		return
	}
	if err := j.store.Delete(ctx, name); err != nil {
		j.log.Warn().Err(err).Str("cookie", name).Msg("cookie delete failed")
	}
}
