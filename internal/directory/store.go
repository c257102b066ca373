package directory

import (
	"context"

	id "lexguard/pkg/domain"
)

// Stores are interface-driven to keep services testable and to allow
// swapping in-memory and external persistence without rewiring business
// code.

type AttorneyStore interface {
	Save(ctx context.Context, attorney Attorney) error
	FindByID(ctx context.Context, attorneyID id.AttorneyID) (Attorney, error)
	// SetStatus is the administrative toggle; everything else about an
	// attorney is immutable after creation.
	SetStatus(ctx context.Context, attorneyID id.AttorneyID, standing BarStanding, active bool) error
}

type ClientStore interface {
	Save(ctx context.Context, client Client) error
	FindByID(ctx context.Context, clientID id.ClientID) (Client, error)
}

type RelationshipStore interface {
	Save(ctx context.Context, rel Relationship) error
	// Represents reports whether an active relationship exists for the pair.
	Represents(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (bool, error)
	// ListByAttorney returns all relationships for the attorney, active or not.
	ListByAttorney(ctx context.Context, attorneyID id.AttorneyID) ([]Relationship, error)
}
