package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hylla/connboard/internal/app"
)

// Sessions holds live board states keyed by session id. Commands on one session run
// one at a time; different sessions never block each other.
type Sessions struct {
	mu    sync.RWMutex
	byID  map[string]*sessionEntry
	clock func() time.Time
}

type sessionEntry struct {
	mu        sync.Mutex
	state     app.BoardState
	updatedAt time.Time
	closed    bool
}

// NewSessions constructs an empty registry. A nil clock uses time.Now.
func NewSessions(clock func() time.Time) *Sessions {
	if clock == nil {
		clock = time.Now
	}
	return &Sessions{byID: map[string]*sessionEntry{}, clock: clock}
}

// Create stores a state under a fresh id.
func (s *Sessions) Create(state app.BoardState) Session {
	id := uuid.NewString()
	now := s.clock().UTC()
	s.mu.Lock()
	s.byID[id] = &sessionEntry{state: state, updatedAt: now}
	s.mu.Unlock()
	return Session{ID: id, State: state, UpdatedAt: now}
}

// Get returns the current state of a session.
func (s *Sessions) Get(id string) (Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return Session{}, sessionNotFound(id)
	}
	return Session{ID: id, State: entry.state, UpdatedAt: entry.updatedAt}, nil
}

// Update runs fn with the session locked and stores the state it returns. An error from
// fn leaves the stored state unchanged.
func (s *Sessions) Update(ctx context.Context, id string, fn func(app.BoardState) (app.BoardState, error)) (Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return Session{}, sessionNotFound(id)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	next, err := fn(entry.state)
	if err != nil {
		return Session{}, err
	}
	entry.state = next
	entry.updatedAt = s.clock().UTC()
	return Session{ID: id, State: next, UpdatedAt: entry.updatedAt}, nil
}

// Delete removes a session.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	entry, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()
	if !ok {
		return sessionNotFound(id)
	}
	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()
	return nil
}

// Expire removes sessions idle for longer than ttl and reports how many were removed.
func (s *Sessions) Expire(ttl time.Duration) int {
	cutoff := s.clock().UTC().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.byID {
		entry.mu.Lock()
		if entry.updatedAt.Before(cutoff) {
			entry.closed = true
			delete(s.byID, id)
			removed++
		}
		entry.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Sessions) entry(id string) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessionNotFound(id)
	}
	return entry, nil
}

func sessionNotFound(id string) error {
	return fmt.Errorf("session %q: %w", id, ErrNotFound)
}
