package storagefake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/tutorhub-web/storage"
)

var _ storage.Store = (*FakeStore)(nil)

// ErrUnavailable is what a FakeStore returns once broken (quota exceeded, private mode...)
var ErrUnavailable = storage.ErrUnavailable

// FakeStore wraps a MemoryStore and can be switched into failing reads or writes
type FakeStore struct {
	*storage.MemoryStore
	lock      sync.RWMutex
	failGet   bool
	failSet   bool
	failDel   bool
	setCalls  int
	lastSetAt time.Time
}

func NewFakeStore(options ...storage.MemoryOption) *FakeStore {
	return &FakeStore{MemoryStore: storage.NewMemoryStore(options...)}
}

// Break makes reads, writes and deletes fail
func (f *FakeStore) Break() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failGet, f.failSet, f.failDel = true, true, true
}

// FailWrites makes Set fail while reads keep working
func (f *FakeStore) FailWrites(fail bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failSet = fail
}

// SetCalls returns how many times Set was invoked
func (f *FakeStore) SetCalls() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.setCalls
}

// LastExpiry returns the expiry passed to the most recent Set
func (f *FakeStore) LastExpiry() time.Time {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.lastSetAt
}

func (f *FakeStore) Get(ctx context.Context, key string) (string, error) {
	f.lock.RLock()
	fail := f.failGet
	f.lock.RUnlock()
	if fail {
		return "", ErrUnavailable
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *FakeStore) Set(ctx context.Context, key, value string, expiresAt time.Time) error {
	f.lock.Lock()
	f.setCalls++
	f.lastSetAt = expiresAt
	fail := f.failSet
	f.lock.Unlock()
	if fail {
		return ErrUnavailable
	}
	return f.MemoryStore.Set(ctx, key, value, expiresAt)
}

func (f *FakeStore) Delete(ctx context.Context, key string) error {
	f.lock.RLock()
	fail := f.failDel
	f.lock.RUnlock()
	if fail {
		return ErrUnavailable
	}
	return f.MemoryStore.Delete(ctx, key)
}
