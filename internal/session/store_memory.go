package session

import (
	"context"
	"sync"
	"time"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

// InMemoryStore keeps sessions in process memory behind one mutex, which
// trivially satisfies the revoke-then-verify ordering guarantee.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) RevokeIfActive(_ context.Context, sessionID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sess.Status != StatusActive {
		return sentinel.ErrInvalidState
	}
	sess.ApplyRevocation(now)
	return nil
}

func (s *InMemoryStore) ExpireDue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for _, sess := range s.sessions {
		if sess.Status == StatusActive && !now.Before(sess.ExpiresAt) {
			sess.Status = StatusExpired
			swept++
		}
	}
	return swept, nil
}
