package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var _ Store = (*FileStore)(nil)

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileStore keeps one JSON file per key inside a folder. Writes go to a
// temporary file that is renamed over the target, so a reader in another
// process sees either the old value or the new one.
type FileStore struct {
	folder  string
	mu      sync.Mutex
	nowTime func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileNowTime sets the clock used for expiry checks (primarily for testing)
func WithFileNowTime(nowFunc func() time.Time) FileOption {
	return func(f *FileStore) {
		f.nowTime = nowFunc
	}
}

// NewFileStore creates the folder if needed and returns a store rooted there
func NewFileStore(folder string, options ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] create folder %s: %w", folder, err)
	}
	f := &FileStore{folder: folder, nowTime: time.Now}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.folder, url.PathEscape(key)+".json")
}

func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[FileStore.Get] read %s: %w: %w", key, ErrUnavailable, err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", fmt.Errorf("[FileStore.Get] decode %s: %w", key, err)
	}
	if expired(entry.ExpiresAt, f.nowTime()) {
		// left for the next Set or Delete, which may come from another process
		return "", ErrNotFound
	}
	return entry.Value, nil
}

func (f *FileStore) Set(_ context.Context, key, value string, expiresAt time.Time) error {
	data, err := json.Marshal(fileEntry{Value: value, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("[FileStore.Set] encode %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.folder, ".tmp-*")
	if err != nil {
		return fmt.Errorf("[FileStore.Set] temp file: %w: %w", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.Set] write %s: %w: %w", key, ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore.Set] close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("[FileStore.Set] rename %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore.Delete] remove %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}
