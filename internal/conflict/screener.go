package conflict

import (
	"context"
	"fmt"

	"lexguard/internal/directory"
	id "lexguard/pkg/domain"
)

// Screener answers whether an attorney-client pair is conflicted. An error
// means the question could not be answered; it is never a clearance.
type Screener interface {
	Screen(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (cleared bool, basis string, err error)
}

// AdversePartyScreener flags a pair when the client appears as an adverse
// party in any matter the attorney handles. This is the directional conflict
// the ethics rules care about most: representing someone you are litigating
// against.
type AdversePartyScreener struct {
	relationships directory.RelationshipStore
}

func NewAdversePartyScreener(relationships directory.RelationshipStore) *AdversePartyScreener {
	return &AdversePartyScreener{relationships: relationships}
}

func (s *AdversePartyScreener) Screen(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (bool, string, error) {
	rels, err := s.relationships.ListByAttorney(ctx, attorneyID)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrScreeningUnavailable, err)
	}
	for _, rel := range rels {
		if !rel.Active {
			continue
		}
		for _, adverse := range rel.AdverseParties {
			if adverse == clientID {
				return false, fmt.Sprintf("client is an adverse party in matter %q", rel.Matter), nil
			}
		}
	}
	return true, "no adverse representation found", nil
}
