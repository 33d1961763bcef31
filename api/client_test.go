package api_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/internal/apitest"
	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/stretchr/testify/require"
)

type tokens struct {
	mu    sync.Mutex
	value string
}

func (t *tokens) Load(context.Context) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.value != ""
}

func (t *tokens) set(v string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = v
}

type fixture struct {
	backend *apitest.Backend
	tokens  *tokens
	client  *api.Client
	student *users.User
	teacher *users.User
	admin   *users.User
}

const password = "Secret123"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := apitest.New(t)
	f := &fixture{
		backend: backend,
		tokens:  &tokens{},
		student: backend.AddUser("Sam Student", "sam@example.com", password, users.RoleStudent),
		teacher: backend.AddUser("Tia Teacher", "tia@example.com", password, users.RoleTeacher),
		admin:   backend.AddUser("Ada Admin", "ada@example.com", password, users.RoleAdmin),
	}
	f.client = api.NewClient(backend.URL(), f.tokens, api.WithTimeout(5*time.Second))
	return f
}

func (f *fixture) loginAs(u *users.User) {
	f.tokens.set(f.backend.IssueToken(u.ID))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("valid credentials", func(t *testing.T) {
		out, err := f.client.Login(ctx, api.LoginRequest{Email: "SAM@example.com", Password: password})
		require.NoError(t, err)
		require.NotEmpty(t, out.Token)
		require.Equal(t, f.student.ID, out.User.ID)
		role, ok := out.User.RoleName()
		require.True(t, ok)
		require.Equal(t, users.RoleStudent, role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.client.Login(ctx, api.LoginRequest{Email: "sam@example.com", Password: "nope"})
		require.True(t, api.IsAuthentication(err))
		require.False(t, api.IsTransient(err))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.client.Login(ctx, api.LoginRequest{})
		require.Equal(t, api.KindValidation, api.KindOf(err))
		fields := api.FieldErrors(err)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "password")
	})

	t.Run("every call carries a request id", func(t *testing.T) {
		ids := f.backend.RequestIDs()
		require.NotEmpty(t, ids)
		for _, id := range ids {
			_, err := uuid.Parse(id)
			require.NoError(t, err)
		}
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := api.RegisterRequest{
		Name:                 "New Student",
		Email:                "new@example.com",
		Password:             password,
		PasswordConfirmation: password,
		Role:                 "Student",
	}

	out, err := f.client.Register(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.Equal(t, "new@example.com", out.User.Email)

	_, err = f.client.Register(ctx, req)
	require.Equal(t, api.KindValidation, api.KindOf(err))
	require.Contains(t, api.FieldErrors(err), "email")

	f.backend.RegisterWithoutToken(true)
	req.Email = "later@example.com"
	out, err = f.client.Register(ctx, req)
	require.NoError(t, err)
	require.Empty(t, out.Token)
	require.NotNil(t, out.User)
}

func TestAuthenticatedCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("no token fails before any request", func(t *testing.T) {
		_, err := f.client.Profile(ctx)
		require.True(t, api.IsAuthentication(err))
		require.Zero(t, f.backend.Calls(http.MethodGet, "/auth/profile"))
	})

	t.Run("bearer token is sent", func(t *testing.T) {
		f.loginAs(f.teacher)
		u, err := f.client.Profile(ctx)
		require.NoError(t, err)
		require.Equal(t, f.teacher.ID, u.ID)
	})

	t.Run("revoked token is a 401", func(t *testing.T) {
		f.backend.RevokeAll()
		_, err := f.client.Profile(ctx)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Equal(t, api.KindAuthentication, apiErr.Kind)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		f.loginAs(f.student)
		require.NoError(t, f.client.Logout(ctx))
		_, err := f.client.Profile(ctx)
		require.True(t, api.IsAuthentication(err))
	})
}

func TestErrorKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loginAs(f.student)

	t.Run("server errors are transient", func(t *testing.T) {
		f.backend.FailNext(http.MethodGet, "/notifications", 1, http.StatusServiceUnavailable)
		_, err := f.client.Notifications(ctx)
		require.Equal(t, api.KindServer, api.KindOf(err))
		require.True(t, api.IsTransient(err))

		_, err = f.client.Notifications(ctx)
		require.NoError(t, err)
	})

	t.Run("forbidden is a request error", func(t *testing.T) {
		_, err := f.client.Users(ctx, 1)
		require.Equal(t, api.KindRequest, api.KindOf(err))
		require.False(t, api.IsTransient(err))
	})

	t.Run("unreachable backend is a network error", func(t *testing.T) {
		c := api.NewClient("http://127.0.0.1:1", f.tokens, api.WithTimeout(time.Second))
		_, err := c.Login(ctx, api.LoginRequest{Email: "a@b.c", Password: "x"})
		require.Equal(t, api.KindNetwork, api.KindOf(err))
		require.True(t, api.IsTransient(err))
	})
}

func TestSubjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loginAs(f.student)
	for i := 0; i < 12; i++ {
		f.backend.AddSubject(f.teacher, "Maths", "beginner", 20)
	}
	f.backend.AddSubject(f.teacher, "Physics", "advanced", 45)

	page, err := f.client.Subjects(ctx, api.SubjectQuery{Search: "math"})
	require.NoError(t, err)
	require.Len(t, page.Items, apitest.PerPage)
	require.Equal(t, 2, page.LastPage)
	require.True(t, page.HasNext())
	require.NotNil(t, page.NextPageURL)

	page, err = f.client.Subjects(ctx, api.SubjectQuery{Search: "math", Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.False(t, page.HasNext())

	page, err = f.client.Subjects(ctx, api.SubjectQuery{Level: "ADVANCED", MinPrice: 30})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Physics", page.Items[0].Name)
}

func TestBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subject := f.backend.AddSubject(f.teacher, "Chemistry", "intermediate", 30)

	f.loginAs(f.student)
	booking, err := f.client.CreateBooking(ctx, api.CreateBookingRequest{
		SubjectID:       subject.ID,
		StartsAt:        time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.Equal(t, api.BookingPending, booking.Status)

	_, err = f.client.ApproveBooking(ctx, booking.ID)
	require.Equal(t, api.KindRequest, api.KindOf(err))

	f.loginAs(f.teacher)
	list, err := f.client.Bookings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)

	notes, err := f.client.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	read, err := f.client.MarkNotificationRead(ctx, notes[0].ID)
	require.NoError(t, err)
	require.True(t, read.Read)

	approved, err := f.client.ApproveBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, api.BookingApproved, approved.Status)

	_, err = f.client.RejectBooking(ctx, booking.ID)
	require.Equal(t, api.KindRequest, api.KindOf(err))

	f.loginAs(f.student)
	rating, err := f.client.RateUser(ctx, api.RatingRequest{BookingID: booking.ID, UserID: f.teacher.ID, Score: 5})
	require.NoError(t, err)
	require.Equal(t, 5, rating.Score)

	_, err = f.client.RateUser(ctx, api.RatingRequest{BookingID: booking.ID, UserID: f.teacher.ID, Score: 9})
	require.Contains(t, api.FieldErrors(err), "score")

	f.loginAs(f.admin)
	all, err := f.client.Users(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
}
