package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexguard/internal/directory"
	"lexguard/internal/ledger"
	"lexguard/internal/platform/metrics"
	id "lexguard/pkg/domain"
	"lexguard/pkg/requestcontext"
	"lexguard/pkg/sentinel"
)

// Service issues, verifies, and revokes privileged sessions. Every create
// and revoke lands in the audit ledger before the result is returned; if the
// ledger append fails, so does the operation.
type Service struct {
	attorneys     directory.AttorneyStore
	relationships directory.RelationshipStore
	store         Store
	tokens        *TokenService
	ledger        *ledger.Ledger
	logger        *slog.Logger
	metrics       *metrics.Metrics
	ttl           time.Duration
}

func NewService(
	attorneys directory.AttorneyStore,
	relationships directory.RelationshipStore,
	store Store,
	tokens *TokenService,
	auditLedger *ledger.Ledger,
	logger *slog.Logger,
	m *metrics.Metrics,
	ttl time.Duration,
) *Service {
	return &Service{
		attorneys:     attorneys,
		relationships: relationships,
		store:         store,
		tokens:        tokens,
		ledger:        auditLedger,
		logger:        logger,
		metrics:       m,
		ttl:           ttl,
	}
}

// Create issues a session for the attorney (and optionally one client). It
// fails with ErrInvalidSubject when the attorney cannot practice or the
// client is not represented by that attorney.
func (s *Service) Create(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID, scope Scope) (*Session, string, error) {
	now := requestcontext.Now(ctx)

	attorney, err := s.attorneys.FindByID(ctx, attorneyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: unknown attorney", ErrInvalidSubject)
		}
		return nil, "", fmt.Errorf("load attorney: %w", err)
	}
	if !attorney.CanPractice() {
		return nil, "", fmt.Errorf("%w: attorney is inactive or not in good standing", ErrInvalidSubject)
	}

	if !clientID.IsNil() {
		represents, err := s.relationships.Represents(ctx, attorneyID, clientID)
		if err != nil {
			return nil, "", fmt.Errorf("check representation: %w", err)
		}
		if !represents {
			return nil, "", fmt.Errorf("%w: client does not belong to attorney", ErrInvalidSubject)
		}
	} else if scope == ScopeClientOwnOnly {
		return nil, "", fmt.Errorf("%w: client-scoped session requires a client", ErrInvalidSubject)
	}

	sess := &Session{
		ID:         id.NewSessionID(),
		AttorneyID: attorneyID,
		ClientID:   clientID,
		Scope:      scope,
		Status:     StatusActive,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}

	token, digest, err := s.tokens.Generate(sess.ID, scope, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("mint session token: %w", err)
	}
	sess.TokenDigest = digest

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: now,
		Actor:     sess.ID.String(),
		Action:    ledger.ActionSessionCreated,
		Subject:   attorneyID.String(),
		Outcome:   ledger.OutcomeGranted,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}); err != nil {
		// Fail-closed: an unaudited session must not survive.
		if revokeErr := s.store.RevokeIfActive(ctx, sess.ID, now); revokeErr != nil {
			s.logger.ErrorContext(ctx, "failed to revoke unaudited session",
				"error", revokeErr, "session_id", sess.ID.String())
		}
		return nil, "", err
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	return sess, token, nil
}

// Verify checks the token against the stored session and derives expiry from
// the current time. Every failure is ErrSessionInvalid; callers learn
// nothing about why.
func (s *Service) Verify(ctx context.Context, sessionID id.SessionID, token string) (*Session, error) {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(Digest(token)), []byte(sess.TokenDigest)) != 1 {
		return nil, ErrSessionInvalid
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if claims.SessionID != sessionID.String() {
		return nil, ErrSessionInvalid
	}

	if sess.EffectiveStatus(requestcontext.Now(ctx)) != StatusActive {
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// Revoke transitions Active -> Revoked. Once it returns, every subsequent
// Verify observes the revocation. Revoking an already-terminal session is a
// no-op.
func (s *Service) Revoke(ctx context.Context, sessionID id.SessionID) error {
	now := requestcontext.Now(ctx)

	err := s.store.RevokeIfActive(ctx, sessionID, now)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: now,
		Actor:     sessionID.String(),
		Action:    ledger.ActionSessionRevoked,
		Subject:   sessionID.String(),
		Outcome:   ledger.OutcomeGranted,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}); err != nil {
		// The revocation itself stands; losing the entry is the failure.
		return err
	}

	if s.metrics != nil {
		s.metrics.SessionsRevoked.Inc()
	}
	return nil
}
