package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryDays is the lifetime of the token cookie when nothing shorter is known
const DefaultExpiryDays = 7

// Persistence binds a Jar to the single bearer token slot of a project
type Persistence struct {
	jar        *Jar
	name       string
	expiryDays int
}

// NewPersistence returns the token slot "<projectID>-token"
func NewPersistence(jar *Jar, projectID string, expiryDays int) *Persistence {
	if expiryDays <= 0 {
		expiryDays = DefaultExpiryDays
	}
	return &Persistence{
		jar:        jar,
		name:       projectID + "-token",
		expiryDays: expiryDays,
	}
}

// Name returns the cookie name of the token slot
func (p *Persistence) Name() string {
	return p.name
}

// Save replaces the stored token. The cookie expires after the configured
// number of days, or earlier if the token is a JWT whose exp claim comes first.
func (p *Persistence) Save(ctx context.Context, bearer string) bool {
	if bearer == "" {
		return false
	}
	expiresAt := p.jar.nowTime().Add(time.Duration(p.expiryDays) * 24 * time.Hour)
	if exp, ok := ExpiryFromJWT(bearer); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}
	return p.jar.Set(ctx, p.name, bearer, SetOptions{ExpiresAt: expiresAt})
}

// Load returns the stored token, if any
func (p *Persistence) Load(ctx context.Context) (string, bool) {
	return p.jar.Get(ctx, p.name)
}

// Clear removes the stored token
func (p *Persistence) Clear(ctx context.Context) {
	p.jar.Remove(ctx, p.name)
}

// ExpiryFromJWT reads the exp claim of a JWT without verifying it. The
// signature is the API's business; the front-end only needs to know when the
// cookie is useless. ok is false for opaque tokens or tokens without exp.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
