// Package session manages the privileged session lifecycle. A session is the
// only way to obtain a privilege scope; it moves Created -> Active ->
// {Expired, Revoked} and is never reactivated.
package session

import (
	"errors"
	"time"

	id "lexguard/pkg/domain"
	dErrors "lexguard/pkg/domainerrors"
)

var (
	// ErrInvalidSubject indicates the attorney cannot practice or the client
	// does not belong to that attorney.
	ErrInvalidSubject = errors.New("invalid session subject")
	// ErrSessionInvalid covers every verification failure: unknown session,
	// token mismatch, revoked, or past expiry. Deliberately uniform.
	ErrSessionInvalid = errors.New("session invalid")
)

// Scope is the privilege level bound to a session. It is a closed enum; the
// guard's policy evaluation is the single consumer.
type Scope string

const (
	// ScopeAttorneyFull grants access to every record of relationships the
	// session's attorney is a party to.
	ScopeAttorneyFull Scope = "attorney-full"
	// ScopeClientOwnOnly grants access only to the session's own
	// attorney-client pair.
	ScopeClientOwnOnly Scope = "client-own-only"
	// ScopeNone grants no privileged access at all.
	ScopeNone Scope = "none"
)

// ParseScope validates a caller-supplied scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAttorneyFull, ScopeClientOwnOnly, ScopeNone:
		return Scope(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown privilege scope")
}

// Status is the stored lifecycle state. Expiry is derived from ExpiresAt at
// read time, so a session can be effectively Expired while still stored as
// Active; the sweeper catches the stored state up in the background.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Session binds an attorney (and optionally a client) to a privilege scope.
type Session struct {
	ID         id.SessionID
	AttorneyID id.AttorneyID
	// ClientID is the nil UUID for attorney-only sessions.
	ClientID id.ClientID
	Scope    Scope
	// TokenDigest is the SHA-256 of the bearer token. The token itself is
	// never stored.
	TokenDigest string
	Status      Status
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// EffectiveStatus derives the lifecycle state at the given instant. Revoked
// is terminal and wins over everything; otherwise expiry is checked against
// the clock, not the stored status.
func (s *Session) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusRevoked {
		return StatusRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return StatusExpired
	}
	return s.Status
}

// ApplyRevocation transitions the session to its terminal Revoked state.
func (s *Session) ApplyRevocation(now time.Time) {
	s.Status = StatusRevoked
	s.RevokedAt = &now
}
