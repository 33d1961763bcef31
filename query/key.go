package query

import (
	"fmt"
	"net/url"
	"strings"
)

// Key identifies a cached query: a resource type plus identifying parameters,
// e.g. Key{Resource: "bookings", Params: []string{"page", "2"}}.
type Key struct {
	Resource string
	Params   []string
}

// NewKey formats every param with fmt.Sprint
func NewKey(resource string, params ...any) Key {
	k := Key{Resource: resource}
	for _, p := range params {
		k.Params = append(k.Params, fmt.Sprint(p))
	}
	return k
}

// String returns the canonical form used as the map key
func (k Key) String() string {
	parts := make([]string, 0, len(k.Params)+1)
	parts = append(parts, url.PathEscape(k.Resource))
	for _, p := range k.Params {
		parts = append(parts, url.PathEscape(p))
	}
	return strings.Join(parts, "/")
}

// HasPrefix reports whether prefix names k or one of its ancestors.
// Key{Resource: "bookings"} is a prefix of every bookings query.
func (k Key) HasPrefix(prefix Key) bool {
	if k.Resource != prefix.Resource || len(prefix.Params) > len(k.Params) {
		return false
	}
	for i, p := range prefix.Params {
		if k.Params[i] != p {
			return false
		}
	}
	return true
}
