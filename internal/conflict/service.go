package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"lexguard/internal/ledger"
	"lexguard/internal/platform/metrics"
	id "lexguard/pkg/domain"
	"lexguard/pkg/requestcontext"
	"lexguard/pkg/sentinel"
)

// Service owns the screened-pair state. Concurrent first writes for the same
// pair collapse into one screening via singleflight, so exactly one result
// is recorded per pair no matter how many callers race.
type Service struct {
	screener Screener
	store    Store
	ledger   *ledger.Ledger
	logger   *slog.Logger
	metrics  *metrics.Metrics
	group    singleflight.Group
}

func NewService(screener Screener, store Store, auditLedger *ledger.Ledger, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		screener: screener,
		store:    store,
		ledger:   auditLedger,
		logger:   logger,
		metrics:  m,
	}
}

func pairGroupKey(attorneyID id.AttorneyID, clientID id.ClientID) string {
	return attorneyID.String() + "|" + clientID.String()
}

// Check returns the persisted result for the pair, screening synchronously
// if none exists yet. A screener outage surfaces as ErrUnresolved; the
// caller denies.
func (s *Service) Check(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (CheckResult, error) {
	result, err := s.store.FindByPair(ctx, attorneyID, clientID)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return CheckResult{}, fmt.Errorf("load conflict result: %w", err)
	}

	v, err, _ := s.group.Do(pairGroupKey(attorneyID, clientID), func() (any, error) {
		// Another flight may have persisted while we queued.
		if existing, err := s.store.FindByPair(ctx, attorneyID, clientID); err == nil {
			return existing, nil
		}
		return s.screen(ctx, attorneyID, clientID, "")
	})
	if err != nil {
		return CheckResult{}, errors.Join(ErrUnresolved, err)
	}
	return v.(CheckResult), nil
}

// Rescreen forces a fresh screening for the pair, replacing any persisted
// result. It is the administrative path for waivers and changed facts: when
// basis is non-empty it overrides the screener's basis on a cleared result.
func (s *Service) Rescreen(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID, basis string) (CheckResult, error) {
	return s.screen(ctx, attorneyID, clientID, basis)
}

func (s *Service) screen(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID, basisOverride string) (CheckResult, error) {
	cleared, basis, err := s.screener.Screen(ctx, attorneyID, clientID)
	if err != nil {
		s.logger.ErrorContext(ctx, "conflict screening failed",
			"error", err, "attorney_id", attorneyID.String(), "client_id", clientID.String())
		s.observe("unavailable")
		return CheckResult{}, err
	}
	if cleared && basisOverride != "" {
		basis = basisOverride
	}

	result := CheckResult{
		CheckID:    id.NewCheckID(),
		AttorneyID: attorneyID,
		ClientID:   clientID,
		Cleared:    cleared,
		Basis:      basis,
		Timestamp:  requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, result); err != nil {
		s.observe("unavailable")
		return CheckResult{}, fmt.Errorf("persist conflict result: %w", err)
	}

	outcome := ledger.OutcomeDenied
	observed := "conflicted"
	if cleared {
		outcome = ledger.OutcomeGranted
		observed = "cleared"
	}
	if _, err := s.ledger.Append(ctx, ledger.Entry{
		Timestamp: result.Timestamp,
		Actor:     ledger.ActorSystem,
		Action:    ledger.ActionConflictCheck,
		Subject:   pairGroupKey(attorneyID, clientID),
		Outcome:   outcome,
		Reason:    basis,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		return CheckResult{}, err
	}

	s.observe(observed)
	return result, nil
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.ConflictScreens.WithLabelValues(result).Inc()
	}
}
