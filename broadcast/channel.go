// Package broadcast carries fire-and-forget signals between tabs that share
// durable storage. A tab never receives its own publications, matching the
// way browsers only fire storage events in the other tabs.
package broadcast

import (
	"context"

	"github.com/google/uuid"
)

// Message is one publication as seen by a subscriber
type Message struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Origin string `json:"origin"`
}

// Handler receives messages for a subscribed key
type Handler func(Message)

// Channel is the publish/subscribe capability of one tab
type Channel interface {
	// Origin identifies the tab owning this channel
	Origin() string

	// Publish delivers value under key to every other tab subscribed to key
	Publish(ctx context.Context, key, value string) error

	// Subscribe registers handler for key. The returned function unsubscribes.
	Subscribe(ctx context.Context, key string, handler Handler) (func(), error)
}

// NewOrigin returns a fresh tab identifier
func NewOrigin() string {
	return uuid.New().String()
}
