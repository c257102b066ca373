package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically catches stored session state up with the clock,
// marking overdue Active sessions Expired. Verification never depends on the
// sweep; it derives expiry from the current time on every call.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(store Store, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, logger: logger, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept, err := s.store.ExpireDue(ctx, now)
			if err != nil {
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				s.logger.InfoContext(ctx, "expired overdue sessions", "count", swept)
			}
		}
	}
}
