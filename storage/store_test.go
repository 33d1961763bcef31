package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "tutorhub-token", "abc", time.Time{}))
		value, err := s.Get(ctx, "tutorhub-token")
		require.NoError(t, err)
		require.Equal(t, "abc", value)
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "tutorhub-token", "def", time.Now().Add(time.Hour)))
		value, err := s.Get(ctx, "tutorhub-token")
		require.NoError(t, err)
		require.Equal(t, "def", value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "tutorhub-token"))
		_, err := s.Get(ctx, "tutorhub-token")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete missing key", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "never-set"))
	})

	t.Run("already expired", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "old", "value", time.Now().Add(-time.Minute)))
		_, err := s.Get(ctx, "old")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, storage.NewMemoryStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := storage.NewMemoryStore(storage.WithMemoryNowTime(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", now.Add(7*24*time.Hour)))

	now = now.Add(6 * 24 * time.Hour)
	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", value)

	now = now.Add(24 * time.Hour)
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileStore(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_SharedFolder(t *testing.T) {
	folder := t.TempDir()
	tabA, err := storage.NewFileStore(folder)
	require.NoError(t, err)
	tabB, err := storage.NewFileStore(folder)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tabA.Set(ctx, "tutorhub-auth", "logged_out", time.Time{}))

	value, err := tabB.Get(ctx, "tutorhub-auth")
	require.NoError(t, err)
	require.Equal(t, "logged_out", value)
}

func TestFileStore_Expiry(t *testing.T) {
	folder := t.TempDir()
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	reader, err := storage.NewFileStore(folder, storage.WithFileNowTime(clock))
	require.NoError(t, err)
	writer, err := storage.NewFileStore(folder, storage.WithFileNowTime(clock))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Set(ctx, "tutorhub-token", "old", now.Add(time.Hour)))

	now = now.Add(2 * time.Hour)
	_, err = reader.Get(ctx, "tutorhub-token")
	require.ErrorIs(t, err, storage.ErrNotFound)

	t.Run("expired read leaves the file for the next writer", func(t *testing.T) {
		files, err := os.ReadDir(folder)
		require.NoError(t, err)
		require.Len(t, files, 1)

		require.NoError(t, writer.Set(ctx, "tutorhub-token", "new", now.Add(time.Hour)))
		value, err := reader.Get(ctx, "tutorhub-token")
		require.NoError(t, err)
		require.Equal(t, "new", value)
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, storage.NewRedisStore(client, "tutorhub"))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := storage.NewRedisStore(client, "tutorhub")
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "token", "abc", time.Now().Add(time.Hour)))
	require.True(t, mr.Exists("tutorhub:token"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(ctx, "token")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisStore_Clock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	s := storage.NewRedisStore(client, "tutorhub", storage.WithRedisNowTime(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token", "abc", now.Add(time.Hour)))
	require.Equal(t, time.Hour, mr.TTL("tutorhub:token"))

	require.NoError(t, s.Set(ctx, "token", "abc", now.Add(-time.Second)))
	require.False(t, mr.Exists("tutorhub:token"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	s := storage.NewRedisStore(client, "tutorhub")
	_, err := s.Get(context.Background(), "token")
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}
