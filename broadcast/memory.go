package broadcast

import (
	"context"
	"sync"
)

// MemoryHub connects tabs living in the same process
type MemoryHub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]subscription // key -> subscription id -> subscription
	nextID int
}

type subscription struct {
	origin  string
	handler Handler
}

// NewMemoryHub creates an empty hub
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string]map[int]subscription)}
}

// Join returns the channel of one tab. An empty origin gets a generated one.
func (h *MemoryHub) Join(origin string) *MemoryChannel {
	if origin == "" {
		origin = NewOrigin()
	}
	return &MemoryChannel{hub: h, origin: origin}
}

func (h *MemoryHub) subscribe(key, origin string, handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[int]subscription)
	}
	id := h.nextID
	h.nextID++
	h.subs[key][id] = subscription{origin: origin, handler: handler}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[key], id)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
	}
}

func (h *MemoryHub) publish(msg Message) {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs[msg.Key]))
	for _, sub := range h.subs[msg.Key] {
		if sub.origin == msg.Origin {
			continue
		}
		targets = append(targets, sub.handler)
	}
	h.mu.RUnlock()

	for _, handler := range targets {
		handler(msg)
	}
}

var _ Channel = (*MemoryChannel)(nil)

// MemoryChannel is one tab's view of a MemoryHub. Delivery is synchronous.
type MemoryChannel struct {
	hub    *MemoryHub
	origin string
}

func (c *MemoryChannel) Origin() string {
	return c.origin
}

func (c *MemoryChannel) Publish(_ context.Context, key, value string) error {
	c.hub.publish(Message{Key: key, Value: value, Origin: c.origin})
	return nil
}

func (c *MemoryChannel) Subscribe(_ context.Context, key string, handler Handler) (func(), error) {
	return c.hub.subscribe(key, c.origin, handler), nil
}
