package errors

import "errors"

// Common error types shared by the front-end packages
var (
	// Storage errors
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Token errors
	ErrNoToken = errors.New("no token")

	// Configuration errors
	ErrInvalidRoute = errors.New("invalid route")
)
