// Package prefs persists the UI slices that outlive a page: the colour theme
// and the subject search filter. Each slice is one JSON value in storage.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/storage"
	"github.com/rs/zerolog"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"

	DefaultTheme = ThemeSystem
)

var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme accepts light, dark or system in any case
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	}
	return "", fmt.Errorf("[prefs.ParseTheme] %q: %w", s, ErrInvalidTheme)
}

// SubjectFilter is the last search of the subject catalogue
type SubjectFilter struct {
	Search   string  `json:"search"`
	Level    string  `json:"level"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
	Page     int     `json:"page"`
}

func DefaultSubjectFilter() SubjectFilter {
	return SubjectFilter{Page: 1}
}

// Normalize trims the text fields, drops negative prices, orders the price
// bounds and starts paging at 1.
func (f SubjectFilter) Normalize() SubjectFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Level = strings.ToLower(strings.TrimSpace(f.Level))
	f.MinPrice = max(f.MinPrice, 0)
	f.MaxPrice = max(f.MaxPrice, 0)
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}

// Query converts the filter to the API's subject query
func (f SubjectFilter) Query() api.SubjectQuery {
	f = f.Normalize()
	return api.SubjectQuery{
		Search:   f.Search,
		Level:    f.Level,
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
		Page:     f.Page,
	}
}

type Store struct {
	store     storage.Store
	themeKey  string
	filterKey string
	log       zerolog.Logger
}

type Option func(*Store)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New binds the slices of projectID to store
func New(store storage.Store, projectID string, opts ...Option) *Store {
	s := &Store{
		store:     store,
		themeKey:  projectID + "-theme",
		filterKey: projectID + "-subject-filter",
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Theme returns the stored theme, or DefaultTheme when none is readable
func (s *Store) Theme(ctx context.Context) Theme {
	var raw string
	if !s.load(ctx, s.themeKey, &raw) {
		return DefaultTheme
	}
	t, err := ParseTheme(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("[Store.Theme] discarding stored theme")
		return DefaultTheme
	}
	return t
}

func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	parsed, err := ParseTheme(string(t))
	if err != nil {
		return err
	}
	return s.save(ctx, s.themeKey, parsed)
}

// SubjectFilter returns the stored filter, or the default one
func (s *Store) SubjectFilter(ctx context.Context) SubjectFilter {
	f := DefaultSubjectFilter()
	if !s.load(ctx, s.filterKey, &f) {
		return DefaultSubjectFilter()
	}
	return f.Normalize()
}

func (s *Store) SetSubjectFilter(ctx context.Context, f SubjectFilter) error {
	return s.save(ctx, s.filterKey, f.Normalize())
}

// Reset removes both slices
func (s *Store) Reset(ctx context.Context) error {
	return errors.Join(s.store.Delete(ctx, s.themeKey), s.store.Delete(ctx, s.filterKey))
}

func (s *Store) load(ctx context.Context, key string, v any) bool {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("[Store.load] storage unavailable")
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("[Store.load] corrupt slice")
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("[Store.save] %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(raw), time.Time{}); err != nil {
		return fmt.Errorf("[Store.save] %s: %w", key, err)
	}
	return nil
}
