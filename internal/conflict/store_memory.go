package conflict

import (
	"context"
	"sync"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

type pairKey struct {
	attorneyID id.AttorneyID
	clientID   id.ClientID
}

// InMemoryStore keeps check results in process memory behind one mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	results map[pairKey]CheckResult
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{results: make(map[pairKey]CheckResult)}
}

func (s *InMemoryStore) Save(_ context.Context, result CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[pairKey{result.AttorneyID, result.ClientID}] = result
	return nil
}

func (s *InMemoryStore) FindByPair(_ context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.results[pairKey{attorneyID, clientID}]; ok {
		return r, nil
	}
	return CheckResult{}, sentinel.ErrNotFound
}
