package conflict

import (
	"context"

	id "lexguard/pkg/domain"
)

// Store persists check results keyed by attorney-client pair. Save
// overwrites any prior result for the pair: the latest screen is
// authoritative.
type Store interface {
	Save(ctx context.Context, result CheckResult) error
	// FindByPair returns the current result for the pair, or
	// sentinel.ErrNotFound when the pair has never been screened.
	FindByPair(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (CheckResult, error)
}
