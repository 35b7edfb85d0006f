// Package session implements cookie-bound sessions for the web application
// connector, with pluggable persistence across restarts.
package session

import (
	"maps"
	"sync"
	"time"
)

// Session is one client session. It is safe for concurrent use by the
// requests sharing it.
type Session struct {
	id        string
	createdAt time.Time
	manager   *Manager

	mu         sync.Mutex
	lastAccess time.Time
	attrs      map[string]string
	invalid    bool
}

// Record is the persisted form of a Session.
type Record struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAccess time.Time         `json:"last_access"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func newSession(m *Manager, id string, now time.Time) *Session {
	return &Session{
		id:         id,
		createdAt:  now,
		manager:    m,
		lastAccess: now,
		attrs:      make(map[string]string),
	}
}

func fromRecord(m *Manager, r Record) *Session {
	s := &Session{
		id:         r.ID,
		createdAt:  r.CreatedAt,
		manager:    m,
		lastAccess: r.LastAccess,
		attrs:      make(map[string]string, len(r.Attributes)),
	}
	maps.Copy(s.attrs, r.Attributes)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Get returns the attribute stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Set stores an attribute. Values are strings so sessions can be persisted
// by every store.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attrs, key)
}

// Invalidate removes the session from its manager. Further lookups with the
// same cookie start a new session.
func (s *Session) Invalidate() {
	s.manager.destroy(s)
}

// Valid reports whether the session has not been invalidated or expired.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalid
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess) > idle
}

// markInvalid flips the session to invalid, reporting whether this call did it.
func (s *Session) markInvalid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return false
	}
	s.invalid = true
	return true
}

func (s *Session) record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Record{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		LastAccess: s.lastAccess,
		Attributes: maps.Clone(s.attrs),
	}
}
