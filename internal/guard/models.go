// Package guard is the access-control façade for privileged communications.
// Every read and write passes through it: session verification, scope
// policy, conflict clearance, the crypto envelope, and the audit ledger, in
// that order. It holds no state of its own.
package guard

import (
	"errors"
	"time"

	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
)

var (
	// ErrAccessDenied is the uniform denial. It deliberately carries no
	// detail: callers cannot distinguish a missing record from a forbidden
	// one, so record existence never leaks across relationships.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflictUnresolved indicates the attorney-client pair has no
	// cleared conflict result, including when screening itself is down.
	ErrConflictUnresolved = errors.New("conflict of interest unresolved")
)

// ContentType is the logical kind of a privileged communication.
type ContentType string

const (
	ContentNote            ContentType = "note"
	ContentMessage         ContentType = "message"
	ContentDocumentSummary ContentType = "document-summary"
)

// ParseContentType validates a caller-supplied content type string.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentNote, ContentMessage, ContentDocumentSummary:
		return ContentType(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown content type")
}

// Record is the persisted form of a privileged communication. The payload is
// ciphertext; plaintext exists only inside the envelope boundary. Records
// are append-only: a correction is a new record whose PriorID references the
// superseded one.
type Record struct {
	ID          id.RecordID
	AttorneyID  id.AttorneyID
	ClientID    id.ClientID
	ContentType ContentType
	Ciphertext  []byte
	// KeyRef resolves the record's encryption key through the keyring. Key
	// material itself is never stored with the record.
	KeyRef    string
	CreatedAt time.Time
	// PriorID is the nil UUID for original records.
	PriorID id.RecordID
}

// Metadata is the payload-free projection of a record, served by listings so
// dashboards never force decryption.
type Metadata struct {
	ID          id.RecordID   `json:"record_id"`
	AttorneyID  id.AttorneyID `json:"-"`
	ClientID    id.ClientID   `json:"-"`
	ContentType ContentType   `json:"content_type"`
	CreatedAt   time.Time     `json:"created_at"`
	PriorID     *id.RecordID  `json:"prior_id,omitempty"`
}

// Communication is a decrypted record as returned to an authorized caller.
type Communication struct {
	RecordID    id.RecordID
	AttorneyID  id.AttorneyID
	ClientID    id.ClientID
	ContentType ContentType
	Payload     []byte
	CreatedAt   time.Time
	PriorID     id.RecordID
}

func (r Record) metadata() Metadata {
	m := Metadata{
		ID:          r.ID,
		AttorneyID:  r.AttorneyID,
		ClientID:    r.ClientID,
		ContentType: r.ContentType,
		CreatedAt:   r.CreatedAt,
	}
	if !r.PriorID.IsNil() {
		prior := r.PriorID
		m.PriorID = &prior
	}
	return m
}
