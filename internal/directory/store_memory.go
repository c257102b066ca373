package directory

import (
	"context"
	"sync"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

// InMemoryStore implements all three directory stores behind one mutex. It
// intentionally favors clarity over performance.
type InMemoryStore struct {
	mu            sync.RWMutex
	attorneys     map[id.AttorneyID]Attorney
	clients       map[id.ClientID]Client
	relationships map[id.AttorneyID][]Relationship
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		attorneys:     make(map[id.AttorneyID]Attorney),
		clients:       make(map[id.ClientID]Client),
		relationships: make(map[id.AttorneyID][]Relationship),
	}
}

func (s *InMemoryStore) Save(ctx context.Context, attorney Attorney) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attorneys[attorney.ID] = attorney
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, attorneyID id.AttorneyID) (Attorney, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.attorneys[attorneyID]; ok {
		return a, nil
	}
	return Attorney{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SetStatus(ctx context.Context, attorneyID id.AttorneyID, standing BarStanding, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attorneys[attorneyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.Standing = standing
	a.Active = active
	s.attorneys[attorneyID] = a
	return nil
}

// Clients returns the ClientStore view of this store.
func (s *InMemoryStore) Clients() ClientStore { return (*inMemoryClients)(s) }

// Relationships returns the RelationshipStore view of this store.
func (s *InMemoryStore) Relationships() RelationshipStore { return (*inMemoryRelationships)(s) }

type inMemoryClients InMemoryStore

func (s *inMemoryClients) Save(ctx context.Context, client Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	return nil
}

func (s *inMemoryClients) FindByID(ctx context.Context, clientID id.ClientID) (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.clients[clientID]; ok {
		return c, nil
	}
	return Client{}, sentinel.ErrNotFound
}

type inMemoryRelationships InMemoryStore

func (s *inMemoryRelationships) Save(ctx context.Context, rel Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.AttorneyID] = append(s.relationships[rel.AttorneyID], rel)
	return nil
}

func (s *inMemoryRelationships) Represents(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rel := range s.relationships[attorneyID] {
		if rel.ClientID == clientID && rel.Active {
			return true, nil
		}
	}
	return false, nil
}

func (s *inMemoryRelationships) ListByAttorney(ctx context.Context, attorneyID id.AttorneyID) ([]Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Relationship{}, s.relationships[attorneyID]...), nil
}
