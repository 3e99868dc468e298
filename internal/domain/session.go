package domain

import (
	"sync"
	"time"
)

// Session holds the per-connection metadata of a WebSocket client.
type Session struct {
	ID           string
	Pool         string
	RemoteAddr   string
	Email        string
	ConnectedAt  time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a new session for a freshly accepted connection.
func NewSession(id, pool, remoteAddr string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Pool:         pool,
		RemoteAddr:   remoteAddr,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

// SetEmail records the display label announced on room join.
func (s *Session) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Email = email
	s.LastActiveAt = time.Now()
}

// GetEmail returns the display label, if any.
func (s *Session) GetEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Email
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}

// LastActive returns the last time a frame was received.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActiveAt
}
