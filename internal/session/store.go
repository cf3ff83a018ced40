package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when an operation names a call with no session.
var ErrNotFound = errors.New("session not found")

// Store keeps the state of active calls keyed by call id.
//
// Implementations must be safe for concurrent use. Returned sessions are
// snapshots: mutating them does not affect the stored state.
type Store interface {
	// Get returns the session for callID, or false if none exists.
	Get(callID string) (*CallSession, bool)

	// GetOrCreate returns the existing session for callID, or creates an
	// empty one with the given language and caller number. An existing
	// session's history and fields are never overwritten.
	GetOrCreate(callID, language, callerNumber string) (*CallSession, bool)

	// Append adds turns, in order, to the end of the session's history.
	Append(callID string, turns ...Turn) error

	// Remove deletes the session. It is a no-op if none exists.
	Remove(callID string)

	// Len returns the number of active sessions.
	Len() int

	// Expire removes sessions with no activity for longer than maxIdle and
	// returns snapshots of what it removed.
	Expire(maxIdle time.Duration) []*CallSession
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
	now      func() time.Time
}

// StoreOption customizes a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]*CallSession),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a snapshot of the session for callID.
func (m *MemoryStore) Get(callID string) (*CallSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[callID]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// GetOrCreate returns a snapshot of the session for callID, creating it if
// needed. The boolean is true when a new session was created.
func (m *MemoryStore) GetOrCreate(callID, language, callerNumber string) (*CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[callID]; ok {
		return s.clone(), false
	}

	now := m.now()
	s := &CallSession{
		CallID:       callID,
		Language:     language,
		CallerNumber: callerNumber,
		History:      []Turn{},
		StartedAt:    now,
		LastActivity: now,
	}
	m.sessions[callID] = s
	return s.clone(), true
}

// Append adds turns to the session's history.
func (m *MemoryStore) Append(callID string, turns ...Turn) error {
	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("append to %s: invalid role %q", callID, t.Role)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[callID]
	if !ok {
		return fmt.Errorf("append to %s: %w", callID, ErrNotFound)
	}
	s.History = append(s.History, turns...)
	s.LastActivity = m.now()
	return nil
}

// Remove deletes the session for callID.
func (m *MemoryStore) Remove(callID string) {
	m.mu.Lock()
	delete(m.sessions, callID)
	m.mu.Unlock()
}

// Len returns the number of active sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions idle for longer than maxIdle.
func (m *MemoryStore) Expire(maxIdle time.Duration) []*CallSession {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*CallSession
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			expired = append(expired, s.clone())
			delete(m.sessions, id)
		}
	}
	return expired
}
