// Package memory provides an in-process session repository for single-instance deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

var (
	_ ports.SessionRepository = (*SessionStore)(nil)
	_ ports.SessionAdmin      = (*SessionStore)(nil)
)

// SessionStore keeps sessions in a map. Expired entries are dropped on read.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domainauth.Session), now: time.Now}
}

func (s *SessionStore) Save(_ context.Context, key string, sess domainauth.Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, key string) (domainauth.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return domainauth.Session{}, ports.ErrNotFound
	}
	if sess.StateAt(s.now()) == domainauth.StateExpired {
		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()
		return domainauth.Session{}, ports.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// List returns stored sessions sorted by key.
func (s *SessionStore) List(_ context.Context) ([]ports.StoredSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.StoredSession, 0, len(s.sessions))
	for k, sess := range s.sessions {
		out = append(out, ports.StoredSession{Key: k, Identity: sess.Identity, ExpiresAt: sess.ExpiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *SessionStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]domainauth.Session)
	return n, nil
}
