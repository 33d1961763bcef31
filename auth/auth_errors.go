package auth

import "errors"

var (
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrTokenNotPersisted    = errors.New("token could not be persisted")
	ErrNoProfile            = errors.New("profile response carried no user")
)
