package guard

import (
	"context"

	id "lexguard/pkg/domain"
)

// RecordStore persists privileged communication records. There is no update
// or delete: corrections insert a new record referencing the prior one.
type RecordStore interface {
	Insert(ctx context.Context, record Record) error
	// FindByID returns sentinel.ErrNotFound for unknown records.
	FindByID(ctx context.Context, recordID id.RecordID) (Record, error)
	// ListByClient returns metadata for the client's records in creation
	// order, optionally narrowed to one attorney.
	ListByClient(ctx context.Context, clientID id.ClientID, attorneyID id.AttorneyID) ([]Metadata, error)
}
