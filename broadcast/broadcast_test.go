package broadcast_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/tutorhub-web/broadcast"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	cleared atomic.Int32
}

func (f *fakeTokens) Clear(context.Context) { f.cleared.Add(1) }

// tabFixture is the broadcast side of one tab
type tabFixture struct {
	channel   broadcast.Channel
	tokens    *fakeTokens
	teardowns atomic.Int32
	listener  *broadcast.LogoutListener
}

func newTab(t *testing.T, channel broadcast.Channel, store storage.Store) *tabFixture {
	t.Helper()
	tab := &tabFixture{channel: channel, tokens: &fakeTokens{}}
	tab.listener = broadcast.NewLogoutListener(channel, store, "tutorhub", tab.tokens, func(context.Context) {
		tab.teardowns.Add(1)
	})
	require.NoError(t, tab.listener.Start(context.Background()))
	t.Cleanup(tab.listener.Stop)
	return tab
}

func TestMemoryHub_SkipsOwnOrigin(t *testing.T) {
	hub := broadcast.NewMemoryHub()
	a := hub.Join("tab-a")
	b := hub.Join("")
	require.NotEmpty(t, b.Origin())

	var gotA, gotB []broadcast.Message
	stopA, err := a.Subscribe(context.Background(), "k", func(m broadcast.Message) { gotA = append(gotA, m) })
	require.NoError(t, err)
	stopB, err := b.Subscribe(context.Background(), "k", func(m broadcast.Message) { gotB = append(gotB, m) })
	require.NoError(t, err)

	require.NoError(t, a.Publish(context.Background(), "k", "v"))
	require.Empty(t, gotA)
	require.Len(t, gotB, 1)
	require.Equal(t, "tab-a", gotB[0].Origin)

	stopB()
	require.NoError(t, a.Publish(context.Background(), "k", "v"))
	require.Len(t, gotB, 1)
	stopA()
}

func TestLogoutListener_TeardownOnce(t *testing.T) {
	hub := broadcast.NewMemoryHub()
	store := storage.NewMemoryStore()
	tabA := newTab(t, hub.Join("a"), store)
	tabB := newTab(t, hub.Join("b"), store)

	ctx := context.Background()
	tabA.listener.Disarm()
	require.NoError(t, tabA.listener.Announce(ctx))
	// The event fires a second time
	require.NoError(t, tabA.channel.Publish(ctx, broadcast.BroadcastKey("tutorhub"), broadcast.LoggedOutSentinel))

	require.EqualValues(t, 1, tabB.teardowns.Load())
	require.EqualValues(t, 1, tabB.tokens.cleared.Load())
	require.False(t, tabB.listener.Armed())

	t.Run("originating tab is not torn down again", func(t *testing.T) {
		require.EqualValues(t, 0, tabA.teardowns.Load())
	})

	t.Run("sentinel key is cleared", func(t *testing.T) {
		_, err := store.Get(ctx, "tutorhub-auth")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("rearmed tab reacts to the next logout", func(t *testing.T) {
		tabB.listener.Rearm()
		require.NoError(t, tabA.listener.Announce(ctx))
		require.EqualValues(t, 2, tabB.teardowns.Load())
	})
}

func TestLogoutListener_IgnoresOtherValues(t *testing.T) {
	hub := broadcast.NewMemoryHub()
	store := storage.NewMemoryStore()
	tabA := newTab(t, hub.Join("a"), store)
	tabB := newTab(t, hub.Join("b"), store)

	ctx := context.Background()
	require.NoError(t, tabA.channel.Publish(ctx, "tutorhub-auth", "logged_in"))
	require.NoError(t, tabA.channel.Publish(ctx, "other-auth", broadcast.LoggedOutSentinel))

	require.EqualValues(t, 0, tabB.teardowns.Load())
	require.True(t, tabB.listener.Armed())
}

func TestRedisChannel_LogoutAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	clientA, clientB := newClient(), newClient()
	tabA := newTab(t, broadcast.NewRedisChannel(clientA, "tutorhub", "a", zerolog.Nop()), storage.NewRedisStore(clientA, "tutorhub"))
	tabB := newTab(t, broadcast.NewRedisChannel(clientB, "tutorhub", "b", zerolog.Nop()), storage.NewRedisStore(clientB, "tutorhub"))

	ctx := context.Background()
	tabA.listener.Disarm()
	require.NoError(t, tabA.listener.Announce(ctx))
	require.NoError(t, tabA.listener.Announce(ctx))

	require.Eventually(t, func() bool { return tabB.teardowns.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Give a duplicate delivery the chance to show up
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, tabB.teardowns.Load())
	require.EqualValues(t, 0, tabA.teardowns.Load())
}

func TestRedisChannel_Unsubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := broadcast.NewRedisChannel(client, "", "a", zerolog.Nop())
	b := broadcast.NewRedisChannel(client, "", "b", zerolog.Nop())

	var mu sync.Mutex
	var got []string
	stop, err := b.Subscribe(context.Background(), "k", func(m broadcast.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Value)
	})
	require.NoError(t, err)

	require.NoError(t, a.Publish(context.Background(), "k", "one"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stop()
	require.NoError(t, a.Publish(context.Background(), "k", "two"))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"one"}, got)
}
