package tab_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/broadcast"
	"github.com/jrsteele09/tutorhub-web/internal/apitest"
	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/jrsteele09/tutorhub-web/query"
	"github.com/jrsteele09/tutorhub-web/session"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/jrsteele09/tutorhub-web/tab"
	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const password = "Secret123"

type testFixture struct {
	backend *apitest.Backend
	store   *storage.MemoryStore
	hub     *broadcast.MemoryHub
	cfg     config.Config
	student *users.User
	teacher *users.User
	subject api.Subject
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := apitest.New(t)
	t.Setenv("API_BASE_URL", backend.URL())
	t.Setenv("PROJECT_ID", "tutorhub-test")
	t.Setenv("QUERY_RETRY_DELAY", "1ms")

	f := &testFixture{
		backend: backend,
		store:   storage.NewMemoryStore(),
		hub:     broadcast.NewMemoryHub(),
		cfg:     config.New(),
		student: backend.AddUser("Sam Student", "sam@example.com", password, users.RoleStudent),
		teacher: backend.AddUser("Tia Teacher", "tia@example.com", password, users.RoleTeacher),
	}
	f.subject = backend.AddSubject(f.teacher, "Maths", "beginner", 25)
	return f
}

func (f *testFixture) newTab(t *testing.T) *tab.Tab {
	t.Helper()
	tb, err := tab.New(context.Background(), f.cfg, tab.Deps{
		Store:   f.store,
		Channel: f.hub.Join(""),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(tb.Close)
	require.NoError(t, tb.Bootstrap(context.Background()))
	return tb
}

func login(t *testing.T, tb *tab.Tab, email string) {
	t.Helper()
	_, err := tb.Auth().Login(context.Background(), email, password)
	require.NoError(t, err)
}

func TestGatedQueries(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	tb := f.newTab(t)

	_, _, err := tb.Bookings(ctx, 1)
	require.ErrorIs(t, err, query.ErrDisabled)
	_, _, err = tb.Subjects(ctx, api.SubjectQuery{})
	require.ErrorIs(t, err, query.ErrDisabled)
	require.Zero(t, f.backend.Calls(http.MethodGet, "/bookings"))

	login(t, tb, "sam@example.com")
	subjects, _, err := tb.Subjects(ctx, api.SubjectQuery{Search: "math"})
	require.NoError(t, err)
	require.Len(t, subjects.Items, 1)

	profile, _, err := tb.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, f.student.ID, profile.ID)

	_, _, err = tb.Users(ctx, 1)
	require.ErrorIs(t, err, query.ErrDisabled)
}

func TestEnablingFetchesOnce(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	tb := f.newTab(t)

	key := query.NewKey("bookings", 1)
	unsubscribe := tb.Cache().Subscribe(key, func(query.Result) {})
	defer unsubscribe()

	_, _, err := tb.Bookings(ctx, 1)
	require.ErrorIs(t, err, query.ErrDisabled)

	login(t, tb, "sam@example.com")
	require.Eventually(t, func() bool {
		res, _ := tb.Cache().Peek(key)
		return res.Status == query.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	_, res, err := tb.Bookings(ctx, 1)
	require.NoError(t, err)
	require.False(t, res.Stale)
	require.Equal(t, 1, f.backend.Calls(http.MethodGet, "/bookings"))
}

func TestQuery401ExpiresSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	tb := f.newTab(t)
	login(t, tb, "sam@example.com")

	f.backend.RevokeAll()
	_, _, err := tb.Notifications(ctx)
	require.True(t, api.IsAuthentication(err))

	require.Equal(t, session.PhaseAnonymous, tb.Session().Phase())
	require.Nil(t, tb.Session().User())
	require.Equal(t, 1, f.backend.Calls(http.MethodGet, "/notifications"))
}

func TestMutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	tb := f.newTab(t)
	login(t, tb, "sam@example.com")

	page, _, err := tb.Bookings(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, page.Items)

	booking, err := tb.CreateBooking(ctx, api.CreateBookingRequest{
		SubjectID:       f.subject.ID,
		StartsAt:        time.Now().Add(24 * time.Hour),
		DurationMinutes: 45,
	})
	require.NoError(t, err)

	page, res, err := tb.Bookings(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Stale)
	require.Empty(t, page.Items)

	require.Eventually(t, func() bool {
		page, _, err := tb.Bookings(ctx, 1)
		return err == nil && len(page.Items) == 1 && page.Items[0].ID == booking.ID
	}, time.Second, 5*time.Millisecond)

	t.Run("401 on a mutation expires the session", func(t *testing.T) {
		f.backend.RevokeAll()
		_, err := tb.MarkNotificationRead(ctx, 999)
		require.True(t, api.IsAuthentication(err))
		require.False(t, tb.Session().IsAuthenticated())
	})
}

func TestTeacherApproval(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	student, teacher := f.newTab(t), f.newTab(t)

	login(t, student, "sam@example.com")
	booking, err := student.CreateBooking(ctx, api.CreateBookingRequest{
		SubjectID:       f.subject.ID,
		StartsAt:        time.Now().Add(time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.NoError(t, student.Auth().Logout(ctx))

	login(t, teacher, "tia@example.com")
	notes, _, err := teacher.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	approved, err := teacher.ApproveBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, api.BookingApproved, approved.Status)

	_, err = teacher.RejectBooking(ctx, booking.ID)
	require.Equal(t, api.KindRequest, api.KindOf(err))
	require.True(t, teacher.Session().IsAuthenticated())

	read, err := teacher.MarkNotificationRead(ctx, notes[0].ID)
	require.NoError(t, err)
	require.True(t, read.Read)
}

func TestCrossTabLogout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	a, b := f.newTab(t), f.newTab(t)

	login(t, a, "sam@example.com")
	require.NoError(t, b.Bootstrap(ctx))
	require.True(t, b.Session().IsAuthenticated())
	_, _, err := b.Notifications(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Auth().Logout(ctx))
	require.False(t, a.Session().IsAuthenticated())
	require.False(t, b.Session().IsAuthenticated())

	_, cached := b.Cache().Peek(query.NewKey("notifications"))
	require.False(t, cached)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")
		b, err := tab.OpenBackends(ctx, config.New(), zerolog.Nop())
		require.NoError(t, err)
		require.IsType(t, &storage.MemoryStore{}, b.Store)
		require.NoError(t, b.Close())
	})

	t.Run("file", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "file")
		t.Setenv("DATA_FOLDER", t.TempDir())
		b, err := tab.OpenBackends(ctx, config.New(), zerolog.Nop())
		require.NoError(t, err)
		require.IsType(t, &storage.FileStore{}, b.Store)
		require.NotEqual(t, b.NewChannel().Origin(), b.NewChannel().Origin())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		t.Setenv("STORAGE_BACKEND", "redis")
		t.Setenv("REDIS_ADDR", mr.Addr())
		t.Setenv("PROJECT_ID", "tutorhub")
		b, err := tab.OpenBackends(ctx, config.New(), zerolog.Nop())
		require.NoError(t, err)
		defer b.Close()

		require.NoError(t, b.Store.Set(ctx, "k", "v", time.Time{}))
		require.True(t, mr.Exists("tutorhub:k"))
	})

	t.Run("unreachable redis", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "redis")
		t.Setenv("REDIS_ADDR", "127.0.0.1:1")
		_, err := tab.OpenBackends(ctx, config.New(), zerolog.Nop())
		require.Error(t, err)
	})
}
