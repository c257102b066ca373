package session

import (
	"context"
	"time"

	id "lexguard/pkg/domain"
)

// Store persists sessions. Implementations must be strongly consistent: a
// revocation committed by one caller is observed by every subsequent read,
// with no cache window.
type Store interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)
	// RevokeIfActive atomically transitions Active -> Revoked. Returns
	// sentinel.ErrNotFound for unknown sessions and sentinel.ErrInvalidState
	// when the session is already terminal.
	RevokeIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error
	// ExpireDue transitions stored-Active sessions past their expiry to
	// Expired and returns how many were swept. Expiry remains a derived
	// property for verification; this only catches stored state up.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}
