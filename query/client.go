// Package query is a keyed stale-while-revalidate cache for remote resources.
//
// A read returns whatever the cache holds for the key straight away. When that
// value is missing or older than the query's stale time, a single background
// fetch is started for the key and every concurrent reader shares it. Callers
// that have nothing to show can block on that fetch with Fetch.
package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrDisabled   = errors.New("query disabled")
	ErrClosed     = errors.New("query client closed")
	ErrSuperseded = errors.New("query response superseded")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FetchFunc loads the value of a key from the remote API
type FetchFunc func(ctx context.Context) (any, error)

// Result is a point-in-time view of a cache entry
type Result struct {
	Key       Key
	Data      any
	Err       error
	Status    Status
	FetchedAt time.Time
	HasData   bool
	Stale     bool // Data is older than the stale time or was invalidated
	Loading   bool // a fetch for the key is in flight
}

type Subscriber func(Result)

type call struct {
	done       chan struct{}
	generation uint64
	data       any
	err        error
	fetchedAt  time.Time
	superseded bool // set before done closes when the response was discarded
}

func (cl *call) result(key Key) Result {
	res := Result{Key: key, Data: cl.data, Err: cl.err, FetchedAt: cl.fetchedAt, Status: StatusSuccess, HasData: cl.err == nil}
	if cl.err != nil {
		res.Status = StatusError
	}
	return res
}

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	status      Status
	fetchedAt   time.Time
	invalidated bool
	generation  uint64
	inflight    *call
	opts        Options
	enabled     func() bool
	fetch       FetchFunc
	tags        map[string]struct{}
}

func (e *entry) addTags(tags []string) {
	for _, t := range tags {
		if e.tags == nil {
			e.tags = make(map[string]struct{})
		}
		e.tags[t] = struct{}{}
	}
}

func (e *entry) hasAnyTag(tags []string) bool {
	for _, t := range tags {
		if _, ok := e.tags[t]; ok {
			return true
		}
	}
	return false
}

func (e *entry) isEnabled() bool {
	return e.enabled == nil || e.enabled()
}

type subscription struct {
	id int
	fn Subscriber
}

// Client owns every cache entry of one tab
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string][]subscription
	nextSub int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	defaults Options
	nowTime  func() time.Time
	log      zerolog.Logger
	onError  ErrorHandler
	retryIf  RetryPredicate
	metrics  *metrics.Metrics
}

func NewClient(opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		entries: make(map[string]*entry),
		subs:    make(map[string][]subscription),
		ctx:     ctx,
		cancel:  cancel,
		defaults: Options{
			StaleTime:  DefaultStaleTime,
			Retry:      DefaultRetry,
			RetryDelay: DefaultRetryDelay,
		},
		nowTime: time.Now,
		log:     log.Logger,
		retryIf: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query returns the cached state of key without blocking, starting a
// background fetch when the entry is missing or stale.
func (c *Client) Query(_ context.Context, key Key, fetch FetchFunc, opts Options) Result {
	c.mu.Lock()
	r := c.readLocked(key, fetch, opts)
	c.mu.Unlock()
	r.notify()
	return r.res
}

// Fetch behaves like Query but waits for the fetch when the cache has no data
// to serve. A disabled query returns ErrDisabled without fetching. When the
// entry is invalidated or removed while the caller waits, the response is
// discarded and Fetch returns ErrSuperseded.
func (c *Client) Fetch(ctx context.Context, key Key, fetch FetchFunc, opts Options) (Result, error) {
	c.mu.Lock()
	r := c.readLocked(key, fetch, opts)
	c.mu.Unlock()
	r.notify()

	switch {
	case r.disabled:
		return r.res, ErrDisabled
	case r.res.HasData:
		return r.res, nil
	case r.pending == nil:
		return r.res, ErrClosed
	}

	select {
	case <-r.pending.done:
	case <-ctx.Done():
		return r.res, ctx.Err()
	}
	if r.pending.superseded {
		return Result{Key: key, Status: StatusIdle}, ErrSuperseded
	}
	res := r.pending.result(key)
	return res, res.Err
}

// Peek returns the entry for key without starting a fetch
func (c *Client) Peek(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Result{Key: key, Status: StatusIdle}, false
	}
	return c.snapshotLocked(e), true
}

type read struct {
	res      Result
	pending  *call
	disabled bool
	notify   func()
}

func (c *Client) readLocked(key Key, fetch FetchFunc, opts Options) read {
	ks := key.String()
	e := c.entries[ks]
	if e == nil {
		e = &entry{key: key, status: StatusIdle}
		c.entries[ks] = e
	}
	if fetch != nil {
		e.fetch = fetch
	}
	e.opts = opts.resolve(c.defaults)
	e.enabled = opts.Enabled
	e.addTags(opts.Tags)

	if !e.isEnabled() {
		c.metrics.CacheRead(key.Resource, "disabled")
		return read{res: c.snapshotLocked(e), disabled: true, notify: noop}
	}
	if c.freshLocked(e) {
		c.metrics.CacheRead(key.Resource, "fresh")
		return read{res: c.snapshotLocked(e), notify: noop}
	}
	if e.hasData {
		c.metrics.CacheRead(key.Resource, "stale")
	} else {
		c.metrics.CacheRead(key.Resource, "miss")
	}
	notify := c.startLocked(e)
	return read{res: c.snapshotLocked(e), pending: e.inflight, notify: notify}
}

func (c *Client) freshLocked(e *entry) bool {
	return e.hasData && !e.invalidated && c.nowTime().Sub(e.fetchedAt) < e.opts.StaleTime
}

func (c *Client) snapshotLocked(e *entry) Result {
	return Result{
		Key:       e.key,
		Data:      e.data,
		Err:       e.err,
		Status:    e.status,
		FetchedAt: e.fetchedAt,
		HasData:   e.hasData,
		Stale:     e.hasData && !c.freshLocked(e),
		Loading:   e.inflight != nil,
	}
}

// startLocked launches the fetch for e unless one is already in flight
func (c *Client) startLocked(e *entry) func() {
	if e.inflight != nil || e.fetch == nil || c.closed {
		return noop
	}
	cl := &call{done: make(chan struct{}), generation: e.generation}
	e.inflight = cl
	e.status = StatusLoading
	c.wg.Add(1)
	go c.run(cl, e.key, e.fetch, e.opts)
	return c.notifierLocked(e.key, c.snapshotLocked(e))
}

func (c *Client) run(cl *call, key Key, fetch FetchFunc, o Options) {
	defer c.wg.Done()
	data, err := c.attempt(key, fetch, o)
	c.complete(cl, key, data, err)
}

func (c *Client) attempt(key Key, fetch FetchFunc, o Options) (any, error) {
	for attempt := 0; ; attempt++ {
		data, err := fetch(c.ctx)
		if err == nil {
			return data, nil
		}
		if attempt >= o.Retry || !c.retryIf(err) || c.ctx.Err() != nil {
			return nil, err
		}
		c.metrics.CacheRetry(key.Resource)
		c.log.Debug().Err(err).Str("key", key.String()).Int("attempt", attempt+1).Msg("[query.attempt] retrying")

		timer := time.NewTimer(o.RetryDelay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return nil, err
		}
	}
}

func (c *Client) complete(cl *call, key Key, data any, err error) {
	cl.data, cl.err, cl.fetchedAt = data, err, c.nowTime()
	defer close(cl.done)

	c.mu.Lock()
	e := c.entries[key.String()]
	if e == nil || e.inflight != cl || e.generation != cl.generation {
		cl.superseded = true
		c.mu.Unlock()
		c.metrics.CacheFetch(key.Resource, "discarded")
		c.log.Debug().Str("key", key.String()).Msg("[query.complete] discarding superseded response")
		return
	}
	e.inflight = nil
	if err == nil {
		e.data, e.hasData, e.err = data, true, nil
		e.status = StatusSuccess
		e.fetchedAt = cl.fetchedAt
		e.invalidated = false
	} else {
		e.err = err
		e.status = StatusError
	}
	notify := c.notifierLocked(key, c.snapshotLocked(e))
	c.mu.Unlock()
	notify()

	if err == nil {
		c.metrics.CacheFetch(key.Resource, "success")
		return
	}
	c.metrics.CacheFetch(key.Resource, "error")
	c.log.Warn().Err(err).Str("key", key.String()).Msg("[query.complete] fetch failed")
	if c.onError != nil {
		c.onError(key, err)
	}
}

// Invalidate marks every entry under the given key prefixes stale. Responses
// already in flight for them are discarded and subscribed entries refetch.
func (c *Client) Invalidate(keys ...Key) {
	c.invalidate(func(e *entry) bool { return matchesAny(e.key, keys) })
}

// InvalidateTags marks every entry carrying one of tags stale
func (c *Client) InvalidateTags(tags ...string) {
	c.invalidate(func(e *entry) bool { return e.hasAnyTag(tags) })
}

func (c *Client) invalidate(match func(*entry) bool) {
	var notify []func()
	c.mu.Lock()
	for ks, e := range c.entries {
		if !match(e) {
			continue
		}
		e.invalidated = true
		e.generation++
		e.inflight = nil
		if e.status == StatusLoading {
			e.status = settledStatus(e)
		}
		if len(c.subs[ks]) > 0 && e.isEnabled() {
			notify = append(notify, c.startLocked(e))
		}
	}
	c.mu.Unlock()
	for _, n := range notify {
		n()
	}
}

// Remove drops every entry under the given key prefixes
func (c *Client) Remove(keys ...Key) {
	c.remove(func(e *entry) bool { return matchesAny(e.key, keys) })
}

// RemoveTags drops every entry carrying one of tags
func (c *Client) RemoveTags(tags ...string) {
	c.remove(func(e *entry) bool { return e.hasAnyTag(tags) })
}

// Clear drops every entry
func (c *Client) Clear() {
	c.remove(func(*entry) bool { return true })
}

func (c *Client) remove(match func(*entry) bool) {
	var notify []func()
	c.mu.Lock()
	for ks, e := range c.entries {
		if !match(e) {
			continue
		}
		delete(c.entries, ks)
		notify = append(notify, c.notifierLocked(e.key, Result{Key: e.key, Status: StatusIdle}))
	}
	c.mu.Unlock()
	for _, n := range notify {
		n()
	}
}

// SetData seeds key with data fetched elsewhere, typically the response of a mutation
func (c *Client) SetData(key Key, data any, tags ...string) {
	c.mu.Lock()
	ks := key.String()
	e := c.entries[ks]
	if e == nil {
		e = &entry{key: key, opts: Options{}.resolve(c.defaults)}
		c.entries[ks] = e
	}
	e.addTags(tags)
	e.generation++
	e.inflight = nil
	e.data, e.hasData, e.err = data, true, nil
	e.status = StatusSuccess
	e.fetchedAt = c.nowTime()
	e.invalidated = false
	notify := c.notifierLocked(key, c.snapshotLocked(e))
	c.mu.Unlock()
	notify()
}

// Reevaluate re-checks the enabled predicate of every subscribed entry and
// fetches the ones that are enabled and not fresh.
func (c *Client) Reevaluate() {
	var notify []func()
	c.mu.Lock()
	for ks, e := range c.entries {
		if len(c.subs[ks]) == 0 || !e.isEnabled() || c.freshLocked(e) {
			continue
		}
		notify = append(notify, c.startLocked(e))
	}
	c.mu.Unlock()
	for _, n := range notify {
		n()
	}
}

// Subscribe registers fn for every state change of key
func (c *Client) Subscribe(key Key, fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks := key.String()
	c.nextSub++
	id := c.nextSub
	c.subs[ks] = append(c.subs[ks], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.subs[ks]
			for i, s := range subs {
				if s.id == id {
					c.subs[ks] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(c.subs[ks]) == 0 {
				delete(c.subs, ks)
			}
		})
	}
}

func (c *Client) notifierLocked(key Key, res Result) func() {
	subs := c.subs[key.String()]
	if len(subs) == 0 {
		return noop
	}
	fns := make([]Subscriber, len(subs))
	for i, s := range subs {
		fns[i] = s.fn
	}
	return func() {
		for _, fn := range fns {
			fn(res)
		}
	}
}

// Close stops retries and waits for in-flight fetches to finish
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}

func noop() {}

func settledStatus(e *entry) Status {
	switch {
	case e.err != nil:
		return StatusError
	case e.hasData:
		return StatusSuccess
	default:
		return StatusIdle
	}
}
