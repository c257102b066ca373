package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Action identifies what kind of access or mutation an entry records.
type Action string

const (
	ActionSessionCreated Action = "session_created"
	ActionSessionRevoked Action = "session_revoked"
	ActionReadAttempt    Action = "read_attempt"
	ActionWriteAttempt   Action = "write_attempt"
	ActionAccessDenied   Action = "access_denied"
	ActionConflictCheck  Action = "conflict_check"
)

// Outcome records whether the attempted operation was granted.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// ActorSystem is the actor recorded for entries not tied to a session, such
// as administrative re-screens and the expiry sweeper.
const ActorSystem = "system"

// Entry is one immutable line in the audit ledger. Seq and the hash chain
// are assigned by the ledger's single writer path; callers fill the rest.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	// Actor is the session ID performing the operation, or ActorSystem.
	Actor   string  `json:"actor"`
	Action  Action  `json:"action"`
	Subject string  `json:"subject"`
	Outcome Outcome `json:"outcome"`
	// Reason carries denial detail for compliance review. It is never
	// returned to ordinary callers.
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}

// chainHash computes the tamper-evidence hash for an entry. Every persisted
// field except the hash itself is covered, so editing any column breaks the
// chain. Field order is fixed; changing it invalidates every persisted chain.
func chainHash(e Entry) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(e.Seq, 10)))
	h.Write([]byte{0})
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(e.Actor))
	h.Write([]byte{0})
	h.Write([]byte(e.Action))
	h.Write([]byte{0})
	h.Write([]byte(e.Subject))
	h.Write([]byte{0})
	h.Write([]byte(e.Outcome))
	h.Write([]byte{0})
	h.Write([]byte(e.Reason))
	h.Write([]byte{0})
	h.Write([]byte(e.RequestID))
	h.Write([]byte{0})
	h.Write([]byte(e.ClientIP))
	h.Write([]byte{0})
	h.Write([]byte(e.PrevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Filter narrows a Query. Zero values match everything; From/To bound the
// entry timestamp inclusively.
type Filter struct {
	Actor   string
	Subject string
	From    time.Time
	To      time.Time
	Action  Action
	Outcome Outcome
}

// Matches reports whether the entry passes the filter.
func (f Filter) Matches(e Entry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Report aggregates a window of the trail for compliance review. It is
// computed from Query results and never consulted for authorization.
type Report struct {
	TotalEntries int             `json:"total_entries"`
	ByAction     map[Action]int  `json:"by_action"`
	ByOutcome    map[Outcome]int `json:"by_outcome"`
	Window       [2]time.Time    `json:"window"`
}

// BuildReport summarizes entries the way the ethics reports count activity.
func BuildReport(entries []Entry, from, to time.Time) Report {
	r := Report{
		ByAction:  make(map[Action]int),
		ByOutcome: make(map[Outcome]int),
		Window:    [2]time.Time{from, to},
	}
	for _, e := range entries {
		r.TotalEntries++
		r.ByAction[e.Action]++
		r.ByOutcome[e.Outcome]++
	}
	return r
}
