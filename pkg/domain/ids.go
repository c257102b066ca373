// Package domain holds the typed identifiers shared across services. Each ID
// is a distinct UUID type so the compiler catches attorney/client/session
// mix-ups at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "lexguard/pkg/domainerrors"
)

type (
	// AttorneyID identifies an attorney of record.
	AttorneyID uuid.UUID
	// ClientID identifies a client under representation.
	ClientID uuid.UUID
	// SessionID identifies a privileged session.
	SessionID uuid.UUID
	// RecordID identifies a privileged communication record.
	RecordID uuid.UUID
	// CheckID identifies a conflict check result.
	CheckID uuid.UUID
)

func (id AttorneyID) String() string { return uuid.UUID(id).String() }
func (id ClientID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }
func (id CheckID) String() string    { return uuid.UUID(id).String() }

func (id AttorneyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CheckID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewAttorneyID returns a fresh random attorney identifier.
func NewAttorneyID() AttorneyID { return AttorneyID(uuid.New()) }

// NewClientID returns a fresh random client identifier.
func NewClientID() ClientID { return ClientID(uuid.New()) }

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewRecordID returns a fresh random record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewCheckID returns a fresh random conflict check identifier.
func NewCheckID() CheckID { return CheckID(uuid.New()) }

// parseUUID enforces the parsing invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

func ParseAttorneyID(s string) (AttorneyID, error) {
	u, err := parseUUID(s)
	return AttorneyID(u), err
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s)
	return ClientID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	return RecordID(u), err
}
