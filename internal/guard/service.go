package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lexguard/internal/conflict"
	"lexguard/internal/envelope"
	"lexguard/internal/ledger"
	"lexguard/internal/platform/metrics"
	"lexguard/internal/session"
	id "lexguard/pkg/domain"
	"lexguard/pkg/requestcontext"
	"lexguard/pkg/sentinel"
)

// Service wires session verification, conflict clearance, the envelope, and
// the ledger into the three guarded operations. Every denial and every grant
// is in the ledger before the caller sees the result.
type Service struct {
	sessions  *session.Service
	conflicts *conflict.Service
	envelope  *envelope.Envelope
	records   RecordStore
	ledger    *ledger.Ledger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	opTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records grant/denial and envelope counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds each record store call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.opTimeout = d }
}

func NewService(
	sessions *session.Service,
	conflicts *conflict.Service,
	env *envelope.Envelope,
	records RecordStore,
	auditLedger *ledger.Ledger,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:  sessions,
		conflicts: conflicts,
		envelope:  env,
		records:   records,
		ledger:    auditLedger,
		logger:    logger,
		tracer:    otel.Tracer("lexguard/guard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteRequest carries one communication to be sealed and stored.
type WriteRequest struct {
	SessionID   id.SessionID
	Token       string
	AttorneyID  id.AttorneyID
	ClientID    id.ClientID
	Payload     []byte
	ContentType ContentType
	// PriorID marks this write as a correction of an existing record.
	PriorID id.RecordID
}

// Write seals and stores a privileged communication. The caller needs a live
// session whose scope covers the pair and a cleared conflict result; absent
// a persisted result the pair is screened synchronously.
func (s *Service) Write(ctx context.Context, req WriteRequest) (id.RecordID, error) {
	ctx, span := s.tracer.Start(ctx, "guard.write",
		trace.WithAttributes(attribute.String("content_type", string(req.ContentType))))
	defer span.End()

	sess, err := s.sessions.Verify(ctx, req.SessionID, req.Token)
	if err != nil {
		return id.RecordID{}, err
	}

	if sess.Scope == session.ScopeNone || !scopeAllows(sess, req.AttorneyID, req.ClientID) {
		return id.RecordID{}, s.deny(ctx, "write", sess.ID, req.ClientID.String(), "scope does not cover pair")
	}

	result, err := s.conflicts.Check(ctx, req.AttorneyID, req.ClientID)
	if err != nil {
		// Screening outage is not a clearance.
		s.auditAbort(ctx, ledger.ActionWriteAttempt, sess.ID, req.ClientID.String(),
			"conflict screening unavailable")
		s.observeDenied("write")
		return id.RecordID{}, errors.Join(ErrConflictUnresolved, err)
	}
	if !result.Cleared {
		if err := s.denyEntry(ctx, ledger.ActionWriteAttempt, sess.ID, req.ClientID.String(), result.Basis); err != nil {
			return id.RecordID{}, err
		}
		s.observeDenied("write")
		return id.RecordID{}, ErrConflictUnresolved
	}

	if !req.PriorID.IsNil() {
		prior, err := s.findRecord(ctx, req.PriorID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.RecordID{}, s.deny(ctx, "write", sess.ID, req.PriorID.String(), "correction of unknown record")
		}
		if err != nil {
			s.auditAbort(ctx, ledger.ActionWriteAttempt, sess.ID, req.PriorID.String(),
				"record store unavailable")
			return id.RecordID{}, err
		}
		if prior.AttorneyID != req.AttorneyID || prior.ClientID != req.ClientID {
			return id.RecordID{}, s.deny(ctx, "write", sess.ID, req.PriorID.String(), "correction crosses relationships")
		}
	}

	ciphertext, keyRef, err := s.envelope.Seal(req.Payload, envelope.Context{
		AttorneyID: req.AttorneyID,
		ClientID:   req.ClientID,
	})
	if err != nil {
		return id.RecordID{}, fmt.Errorf("seal payload: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SealOperations.Inc()
	}

	record := Record{
		ID:          id.NewRecordID(),
		AttorneyID:  req.AttorneyID,
		ClientID:    req.ClientID,
		ContentType: req.ContentType,
		Ciphertext:  ciphertext,
		KeyRef:      keyRef,
		CreatedAt:   requestcontext.Now(ctx),
		PriorID:     req.PriorID,
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.records.Insert(ctx, record)
	}); err != nil {
		s.auditAbort(ctx, ledger.ActionWriteAttempt, sess.ID, record.ID.String(),
			"record store unavailable")
		return id.RecordID{}, fmt.Errorf("store record: %w", err)
	}

	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: record.CreatedAt,
		Actor:     sess.ID.String(),
		Action:    ledger.ActionWriteAttempt,
		Subject:   record.ID.String(),
		Outcome:   ledger.OutcomeGranted,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}); err != nil {
		return id.RecordID{}, err
	}

	s.observeGranted("write")
	return record.ID, nil
}

// Read opens a privileged communication for an authorized session. Unknown
// records and forbidden records fail identically.
func (s *Service) Read(ctx context.Context, sessionID id.SessionID, token string, recordID id.RecordID) (*Communication, error) {
	ctx, span := s.tracer.Start(ctx, "guard.read")
	defer span.End()

	sess, err := s.sessions.Verify(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.deny(ctx, "read", sess.ID, recordID.String(), "record not found")
	}
	if err != nil {
		s.auditAbort(ctx, ledger.ActionReadAttempt, sess.ID, recordID.String(),
			"record store unavailable")
		return nil, err
	}

	if !scopeAllows(sess, record.AttorneyID, record.ClientID) {
		return nil, s.deny(ctx, "read", sess.ID, recordID.String(), "scope does not cover pair")
	}

	plaintext, err := s.envelope.Open(record.Ciphertext, record.KeyRef, envelope.Context{
		AttorneyID: record.AttorneyID,
		ClientID:   record.ClientID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to open record",
			"error", err, "record_id", recordID.String())
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OpenOperations.Inc()
	}

	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: requestcontext.Now(ctx),
		Actor:     sess.ID.String(),
		Action:    ledger.ActionReadAttempt,
		Subject:   recordID.String(),
		Outcome:   ledger.OutcomeGranted,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}); err != nil {
		return nil, err
	}

	s.observeGranted("read")
	return &Communication{
		RecordID:    record.ID,
		AttorneyID:  record.AttorneyID,
		ClientID:    record.ClientID,
		ContentType: record.ContentType,
		Payload:     plaintext,
		CreatedAt:   record.CreatedAt,
		PriorID:     record.PriorID,
	}, nil
}

// ListForClient returns payload-free metadata for the client's records
// visible to the session. Listings stay within the session attorney's own
// relationships even under attorney-full scope.
func (s *Service) ListForClient(ctx context.Context, sessionID id.SessionID, token string, clientID id.ClientID) ([]Metadata, error) {
	ctx, span := s.tracer.Start(ctx, "guard.list_for_client")
	defer span.End()

	sess, err := s.sessions.Verify(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}

	if !scopeAllows(sess, sess.AttorneyID, clientID) {
		return nil, s.deny(ctx, "list", sess.ID, clientID.String(), "scope does not cover client")
	}

	var metadata []Metadata
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var listErr error
		metadata, listErr = s.records.ListByClient(ctx, clientID, sess.AttorneyID)
		return listErr
	}); err != nil {
		s.auditAbort(ctx, ledger.ActionReadAttempt, sess.ID, clientID.String(),
			"record store unavailable")
		return nil, fmt.Errorf("list records: %w", err)
	}

	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: requestcontext.Now(ctx),
		Actor:     sess.ID.String(),
		Action:    ledger.ActionReadAttempt,
		Subject:   clientID.String(),
		Outcome:   ledger.OutcomeGranted,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}); err != nil {
		return nil, err
	}

	s.observeGranted("list")
	return metadata, nil
}

// deny records an access_denied entry and returns the uniform denial. If the
// entry cannot be written the append error is returned instead: a denial is
// still an audited event.
func (s *Service) deny(ctx context.Context, operation string, sessionID id.SessionID, subject, reason string) error {
	if err := s.denyEntry(ctx, ledger.ActionAccessDenied, sessionID, subject, reason); err != nil {
		return err
	}
	s.observeDenied(operation)
	return ErrAccessDenied
}

func (s *Service) denyEntry(ctx context.Context, action ledger.Action, sessionID id.SessionID, subject, reason string) error {
	_, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: requestcontext.Now(ctx),
		Actor:     sessionID.String(),
		Action:    action,
		Subject:   subject,
		Outcome:   ledger.OutcomeDenied,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	})
	return err
}

// auditAbort records an operation that failed closed because a dependency
// was unavailable. The append itself is best effort: the caller must see the
// original failure, so an append error here is logged, not returned.
func (s *Service) auditAbort(ctx context.Context, action ledger.Action, sessionID id.SessionID, subject, reason string) {
	if err := s.denyEntry(ctx, action, sessionID, subject, reason); err != nil {
		s.logger.ErrorContext(ctx, "audit entry lost for aborted operation",
			"error", err, "reason", reason)
	}
}

func (s *Service) findRecord(ctx context.Context, recordID id.RecordID) (Record, error) {
	var record Record
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var findErr error
		record, findErr = s.records.FindByID(ctx, recordID)
		return findErr
	})
	return record, err
}

func (s *Service) observeGranted(operation string) {
	if s.metrics != nil {
		s.metrics.AccessGranted.WithLabelValues(operation).Inc()
	}
}

func (s *Service) observeDenied(operation string) {
	if s.metrics != nil {
		s.metrics.AccessDenied.WithLabelValues(operation).Inc()
	}
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	return fn(ctx)
}
