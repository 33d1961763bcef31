package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/tutorhub-web/users"
)

// Envelope wraps every response body of the backend
type Envelope[T any] struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    T                   `json:"data"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Page is one page of a paginated collection
type Page[T any] struct {
	PerPage     int     `json:"perPage"`
	CurrentPage int     `json:"currentPage"`
	LastPage    int     `json:"lastPage"`
	NextPageURL *string `json:"nextPageUrl"`
	Items       []T     `json:"items"`
}

// HasNext reports whether a further page exists
func (p Page[T]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone,omitempty"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

// AuthPayload is returned by login and register. Token may be empty after
// registration when the backend requires a separate login.
type AuthPayload struct {
	Token string      `json:"token,omitempty"`
	User  *users.User `json:"user"`
}

type Subject struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Level       string      `json:"level,omitempty"`
	Price       float64     `json:"price"`
	Teacher     *users.User `json:"teacher,omitempty"`
}

// SubjectQuery filters the subject catalogue
type SubjectQuery struct {
	Search   string
	Level    string
	MinPrice float64
	MaxPrice float64
	Page     int
}

func (q SubjectQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Level != "" {
		v.Set("level", q.Level)
	}
	if q.MinPrice > 0 {
		v.Set("min_price", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice > 0 {
		v.Set("max_price", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingRejected BookingStatus = "rejected"
)

type Booking struct {
	ID              int64         `json:"id"`
	Subject         *Subject      `json:"subject,omitempty"`
	SubjectID       int64         `json:"subject_id"`
	Student         *users.User   `json:"student,omitempty"`
	StartsAt        time.Time     `json:"starts_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	Note            string        `json:"note,omitempty"`
}

type CreateBookingRequest struct {
	SubjectID       int64     `json:"subject_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note,omitempty"`
}

type RatingRequest struct {
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"` // the user being rated
	Score     int    `json:"score"`
	Comment   string `json:"comment,omitempty"`
}

type Rating struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
