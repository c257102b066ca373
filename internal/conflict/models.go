// Package conflict screens proposed attorney-client pairs for conflicts of
// interest. A pair with no cleared result on file never sees privileged
// material; when screening infrastructure is down the answer is a denial,
// not a pass.
package conflict

import (
	"errors"
	"time"

	id "lexguard/pkg/domain"
)

var (
	// ErrScreeningUnavailable indicates the screener could not produce an
	// answer at all. Callers must treat the pair as unresolved and deny.
	ErrScreeningUnavailable = errors.New("conflict screening unavailable")
	// ErrUnresolved indicates no cleared result exists for the pair and one
	// could not be produced.
	ErrUnresolved = errors.New("conflict status unresolved")
)

// CheckResult is the persisted outcome of screening one attorney-client
// pair. Results are durable: once recorded, the pair's status only changes
// through an administrative re-screen.
type CheckResult struct {
	CheckID    id.CheckID    `json:"check_id"`
	AttorneyID id.AttorneyID `json:"attorney_id"`
	ClientID   id.ClientID   `json:"client_id"`
	Cleared    bool          `json:"cleared"`
	// Basis records why the result holds: the adverse matter that flagged
	// it, "no adverse representation found", or the waiver recorded by an
	// administrative re-screen.
	Basis     string    `json:"basis"`
	Timestamp time.Time `json:"timestamp"`
}
