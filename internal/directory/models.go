// Package directory holds the intake records the guard and screener consult:
// attorneys, clients, and the attorney-client relationships between them.
// Clients are never hard-deleted; retention is a policy concern outside this
// core.
package directory

import (
	"time"

	id "lexguard/pkg/domain"
)

// BarStanding captures an attorney's standing with the bar.
type BarStanding string

const (
	StandingGood      BarStanding = "good_standing"
	StandingSuspended BarStanding = "suspended"
	StandingDisbarred BarStanding = "disbarred"
)

// Attorney is immutable once created except for the standing and active
// toggles, which only an administrative actor flips.
type Attorney struct {
	ID        id.AttorneyID
	Name      string
	Standing  BarStanding
	Active    bool
	CreatedAt time.Time
}

// CanPractice reports whether sessions may be issued for this attorney.
func (a Attorney) CanPractice() bool {
	return a.Active && a.Standing == StandingGood
}

// Client is created on intake and retained indefinitely.
type Client struct {
	ID        id.ClientID
	Name      string
	CreatedAt time.Time
}

// Relationship records that an attorney represents a client in a matter.
// AdverseParties lists clients on the opposing side of the matter; the
// conflict screener reads them when a new representation is proposed.
type Relationship struct {
	AttorneyID     id.AttorneyID
	ClientID       id.ClientID
	Matter         string
	AdverseParties []id.ClientID
	Active         bool
	CreatedAt      time.Time
}
