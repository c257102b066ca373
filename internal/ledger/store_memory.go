package ledger

import (
	"context"
	"sync"
)

// InMemoryStore keeps the ledger in process memory. It favors clarity over
// performance and backs unit tests and single-node development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Range(_ context.Context, from, to uint64) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Seq >= from && e.Seq <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Tail(_ context.Context) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, false, nil
	}
	return s.entries[len(s.entries)-1], true, nil
}
