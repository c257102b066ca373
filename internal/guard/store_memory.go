package guard

import (
	"context"
	"sort"
	"sync"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

// InMemoryStore keeps records in process memory behind one mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]Record)}
}

func (s *InMemoryStore) Insert(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	record.Ciphertext = append([]byte(nil), record.Ciphertext...)
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.RecordID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordID]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	r.Ciphertext = append([]byte(nil), r.Ciphertext...)
	return r, nil
}

func (s *InMemoryStore) ListByClient(_ context.Context, clientID id.ClientID, attorneyID id.AttorneyID) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Metadata
	for _, r := range s.records {
		if r.ClientID != clientID {
			continue
		}
		if !attorneyID.IsNil() && r.AttorneyID != attorneyID {
			continue
		}
		out = append(out, r.metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
