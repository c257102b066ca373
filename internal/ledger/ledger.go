// Package ledger is the append-only, hash-chained audit trail. Every read or
// write of privileged material produces exactly one entry here before its
// result is returned to the caller; if the append fails, the caller's
// operation fails with it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lexguard/internal/platform/metrics"
)

var (
	// ErrAppend wraps any failure to persist an entry. Callers must treat it
	// as fatal for the triggering operation (fail-closed).
	ErrAppend = errors.New("audit append failed")
	// ErrTamperDetected indicates a hash chain link or sequence gap found
	// during verification. Surfaced to operators, not ordinary callers.
	ErrTamperDetected = errors.New("audit chain tamper detected")
)

// Store persists entries. Implementations only need ordered durability; the
// Ledger owns sequencing and chaining.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// List returns entries matching the filter in ascending seq order.
	List(ctx context.Context, filter Filter) ([]Entry, error)
	// Range returns entries with from <= seq <= to in ascending seq order.
	Range(ctx context.Context, from, to uint64) ([]Entry, error)
	// Tail returns the highest-seq entry, or ok=false on an empty ledger.
	Tail(ctx context.Context) (Entry, bool, error)
}

// Publisher mirrors committed entries to an external sink (Kafka). The
// mirror sits outside the fail-closed path: a publish failure is logged,
// never propagated.
type Publisher interface {
	Publish(entry Entry)
}

// Ledger serializes all appends through one mutex that owns the tail hash
// and next sequence number, so concurrent callers always yield a contiguous,
// gap-free total order.
type Ledger struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	opTimeout time.Duration

	mu       sync.Mutex
	nextSeq  uint64
	tailHash string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher mirrors committed entries to the given sink.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithMetrics records append counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithTimeout bounds each store call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.opTimeout = d }
}

// New builds a Ledger, resuming sequence and chain state from the store's
// tail so restarts keep one unbroken chain.
func New(ctx context.Context, store Store, logger *slog.Logger, opts ...Option) (*Ledger, error) {
	l := &Ledger{store: store, logger: logger, nextSeq: 1}
	for _, opt := range opts {
		opt(l)
	}
	tail, ok, err := store.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger tail: %w", err)
	}
	if ok {
		l.nextSeq = tail.Seq + 1
		l.tailHash = tail.Hash
	}
	return l, nil
}

// Append assigns the next sequence number, chains the hash, and persists the
// entry. It returns the assigned sequence number, or an ErrAppend the caller
// must propagate as its own failure.
func (l *Ledger) Append(ctx context.Context, entry Entry) (uint64, error) {
	start := time.Now()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Actor == "" {
		entry.Actor = ActorSystem
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Seq = l.nextSeq
	entry.PrevHash = l.tailHash
	entry.Hash = chainHash(entry)

	if err := l.withTimeout(ctx, func(ctx context.Context) error {
		return l.store.Append(ctx, entry)
	}); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAppend, err)
	}

	l.nextSeq++
	l.tailHash = entry.Hash

	if l.metrics != nil {
		l.metrics.LedgerAppends.Inc()
		l.metrics.LedgerAppendMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
	if l.publisher != nil {
		l.publisher.Publish(entry)
	}
	return entry.Seq, nil
}

// Query returns entries matching the filter in sequence order. The result is
// for compliance reporting only and never feeds access-control decisions.
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	var entries []Entry
	err := l.withTimeout(ctx, func(ctx context.Context) error {
		var listErr error
		entries, listErr = l.store.List(ctx, filter)
		return listErr
	})
	return entries, err
}

// VerifyChain recomputes the hash chain over [from, to] and fails with
// ErrTamperDetected on any broken link, gap, or duplicate.
func (l *Ledger) VerifyChain(ctx context.Context, from, to uint64) error {
	var entries []Entry
	err := l.withTimeout(ctx, func(ctx context.Context) error {
		var rangeErr error
		entries, rangeErr = l.store.Range(ctx, from, to)
		return rangeErr
	})
	if err != nil {
		return err
	}

	prevHash := ""
	if from > 1 && len(entries) > 0 {
		// The first verified link anchors on the preceding entry.
		var prev []Entry
		if err := l.withTimeout(ctx, func(ctx context.Context) error {
			var rangeErr error
			prev, rangeErr = l.store.Range(ctx, from-1, from-1)
			return rangeErr
		}); err != nil {
			return err
		}
		if len(prev) != 1 {
			return fmt.Errorf("%w: missing anchor entry %d", ErrTamperDetected, from-1)
		}
		prevHash = prev[0].Hash
	}

	expectedSeq := from
	for _, e := range entries {
		if e.Seq != expectedSeq {
			return fmt.Errorf("%w: sequence gap, want %d got %d", ErrTamperDetected, expectedSeq, e.Seq)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: broken link at seq %d", ErrTamperDetected, e.Seq)
		}
		if chainHash(e) != e.Hash {
			return fmt.Errorf("%w: recomputed hash mismatch at seq %d", ErrTamperDetected, e.Seq)
		}
		prevHash = e.Hash
		expectedSeq++
	}
	return nil
}

// TailSeq returns the sequence number of the most recent entry (0 if empty).
func (l *Ledger) TailSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq - 1
}

func (l *Ledger) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if l.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opTimeout)
		defer cancel()
	}
	return fn(ctx)
}
