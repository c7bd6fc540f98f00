// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one conversation known to the dev server.
type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
	// Turns counts exchanges served before the current one.
	Turns int
}

// SessionStore tracks sessions in memory. Sessions idle for longer than the
// store's TTL are evicted in the background.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates an empty store. A ttl of zero or less keeps
// sessions until Stop.
func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanup()
	}
	return s
}

// cleanup periodically evicts idle sessions.
func (s *SessionStore) cleanup() {
	interval := s.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.EvictIdle(now.Add(-s.ttl))
		}
	}
}

// EvictIdle removes sessions last seen before cutoff and returns how many
// were removed.
func (s *SessionStore) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Stop ends the cleanup goroutine.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Resolve returns a copy of the session for id, creating a new one with a
// fresh uuid when id is empty or unknown. The stored turn count is advanced.
func (s *SessionStore) Resolve(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess, ok := s.sessions[id]
	if !ok || id == "" {
		sess = &Session{ID: uuid.NewString(), CreatedAt: now, LastSeen: now}
		s.sessions[sess.ID] = sess
	}
	snapshot := *sess
	snapshot.LastSeen = now

	sess.LastSeen = now
	sess.Turns++
	return snapshot, !ok
}

// Get returns the session with id.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
