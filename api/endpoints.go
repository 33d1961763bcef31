package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/tutorhub-web/users"
)

var errNoUser = errors.New("response carries no user")

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthPayload, error) {
	var out AuthPayload
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: req, public: true}, &out); err != nil {
		return AuthPayload{}, err
	}
	if out.User == nil {
		return AuthPayload{}, &Error{Kind: KindServer, Message: "malformed login response", Err: errNoUser}
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthPayload, error) {
	var out AuthPayload
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: req, public: true}, &out); err != nil {
		return AuthPayload{}, err
	}
	if out.User == nil {
		return AuthPayload{}, &Error{Kind: KindServer, Message: "malformed register response", Err: errNoUser}
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

func (c *Client) Profile(ctx context.Context) (*users.User, error) {
	var out users.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/profile"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Subjects(ctx context.Context, q SubjectQuery) (Page[Subject], error) {
	var out Page[Subject]
	err := c.do(ctx, request{method: http.MethodGet, path: "/subjects", query: q.values()}, &out)
	return out, err
}

func (c *Client) Bookings(ctx context.Context, page int) (Page[Booking], error) {
	var out Page[Booking]
	err := c.do(ctx, request{method: http.MethodGet, path: "/bookings", query: pageValues(page)}, &out)
	return out, err
}

func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (Booking, error) {
	var out Booking
	err := c.do(ctx, request{method: http.MethodPost, path: "/bookings", body: req}, &out)
	return out, err
}

func (c *Client) ApproveBooking(ctx context.Context, id int64) (Booking, error) {
	return c.decideBooking(ctx, id, "approve")
}

func (c *Client) RejectBooking(ctx context.Context, id int64) (Booking, error) {
	return c.decideBooking(ctx, id, "reject")
}

func (c *Client) decideBooking(ctx context.Context, id int64, decision string) (Booking, error) {
	var out Booking
	path := "/bookings/" + strconv.FormatInt(id, 10) + "/" + decision
	err := c.do(ctx, request{method: http.MethodPatch, path: path}, &out)
	return out, err
}

func (c *Client) RateUser(ctx context.Context, req RatingRequest) (Rating, error) {
	var out Rating
	err := c.do(ctx, request{method: http.MethodPost, path: "/ratings", body: req}, &out)
	return out, err
}

func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	err := c.do(ctx, request{method: http.MethodGet, path: "/notifications"}, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) (Notification, error) {
	var out Notification
	path := "/notifications/" + strconv.FormatInt(id, 10) + "/read"
	err := c.do(ctx, request{method: http.MethodPatch, path: path}, &out)
	return out, err
}

// Users lists accounts. Admin only.
func (c *Client) Users(ctx context.Context, page int) (Page[users.User], error) {
	var out Page[users.User]
	err := c.do(ctx, request{method: http.MethodGet, path: "/users", query: pageValues(page)}, &out)
	return out, err
}

func pageValues(page int) url.Values {
	if page <= 1 {
		return nil
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}
