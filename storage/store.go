// Package storage provides the durable client storage shared by every tab of
// the same origin: the token cookie, the logout broadcast key and the
// persisted UI slices all live here.
package storage

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/tutorhub-web/internal/errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = apperrors.ErrNotFound
	// ErrUnavailable wraps every backend failure other than a missing key.
	ErrUnavailable = apperrors.ErrStorageUnavailable
)

// Store is a string key/value store with optional expiry.
// Every method is a single storage operation so that readers in other tabs
// never observe a half-applied logical change.
type Store interface {
	// Get returns the value for key, or ErrNotFound if it is missing or expired.
	Get(ctx context.Context, key string) (string, error)

	// Set replaces the value for key. A zero expiresAt never expires.
	Set(ctx context.Context, key, value string, expiresAt time.Time) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
