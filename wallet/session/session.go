// Package session holds the backend session as an explicit object with a
// defined lifecycle: created at sign-in, invalidated at sign-out. Components
// needing authentication receive a Session, nothing is stashed in ambient
// process-wide storage.
package session

import (
	"errors"
	"sync"
	"time"
)

var ErrNotAuthenticated = errors.New("session is not authenticated")

type Session struct {
	mu        sync.RWMutex
	token     string
	createdAt time.Time
}

// New creates a session from a bearer token issued by the identity provider.
func New(token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return &Session{token: token, createdAt: time.Now()}, nil
}

func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotAuthenticated
	}
	return s.token, nil
}

func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// Invalidate clears the token. Subsequent Token calls fail until a new session
// is created.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
