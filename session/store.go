// Package session holds the per-tab session state: the current user, whether
// the tab is authenticated, and whether the initial bootstrap is still running.
//
// The store performs no I/O. Callers write the token first and commit the
// session only after the write succeeded.
package session

import (
	"sync"

	"github.com/jrsteele09/tutorhub-web/users"
)

// Phase is the session lifecycle state derived from State
type Phase string

const (
	PhaseBootstrapping Phase = "bootstrapping"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// State is an immutable snapshot of the session
type State struct {
	User            *users.User
	IsAuthenticated bool
	IsLoading       bool
}

// Phase derives the lifecycle phase from the snapshot
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseBootstrapping
	case s.IsAuthenticated && s.User != nil:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

// Listener is called synchronously after every mutation with the new state
type Listener func(State)

// Store is the injectable session container of one tab
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	order     []int
	nextID    int
}

// NewStore returns a store in the bootstrapping phase
func NewStore() *Store {
	return &Store{
		state:     State{IsLoading: true},
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		User:            s.state.User.Clone(),
		IsAuthenticated: s.state.IsAuthenticated,
		IsLoading:       s.state.IsLoading,
	}
}

func (s *Store) User() *users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

func (s *Store) Phase() Phase {
	return s.Snapshot().Phase()
}

// SetUser replaces the user. Clearing the user also clears the authenticated flag.
func (s *Store) SetUser(user *users.User) {
	s.update(func(st *State) {
		st.User = user.Clone()
		if st.User == nil {
			st.IsAuthenticated = false
		}
	})
}

// SetIsAuthenticated sets the flag. It reports false and changes nothing when
// asked to authenticate a store that holds no user.
func (s *Store) SetIsAuthenticated(authenticated bool) bool {
	ok := true
	s.update(func(st *State) {
		if authenticated && st.User == nil {
			ok = false
			return
		}
		st.IsAuthenticated = authenticated
	})
	return ok
}

// Commit sets user and flag in one update and ends the bootstrap window
func (s *Store) Commit(user *users.User, authenticated bool) {
	s.update(func(st *State) {
		st.User = user.Clone()
		st.IsAuthenticated = authenticated && st.User != nil
		st.IsLoading = false
	})
}

// Teardown clears the session and ends the bootstrap window
func (s *Store) Teardown() {
	s.Commit(nil, false)
}

// Subscribe registers l and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, existing := range s.order {
				if existing == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) update(mutate func(*State)) {
	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	if before == s.state {
		s.mu.Unlock()
		return
	}
	snapshot := State{
		User:            s.state.User.Clone(),
		IsAuthenticated: s.state.IsAuthenticated,
		IsLoading:       s.state.IsLoading,
	}
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	// Listeners run outside the lock so they may read or mutate the store.
	for _, l := range listeners {
		l(snapshot)
	}
}
