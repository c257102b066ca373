package ledger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	l, err := New(context.Background(), store, slog.Default())
	require.NoError(t, err)
	return l, store
}

func TestAppendAssignsContiguousSequence(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		seq, err := l.Append(ctx, Entry{
			Actor:   "session-a",
			Action:  ActionWriteAttempt,
			Subject: "record-1",
			Outcome: OutcomeGranted,
		})
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}
	assert.Equal(t, uint64(5), l.TailSeq())
}

func TestConcurrentAppendsYieldGapFreeTotalOrder(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := l.Append(ctx, Entry{
					Actor:   "session-b",
					Action:  ActionReadAttempt,
					Subject: "record-2",
					Outcome: OutcomeGranted,
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, writers*perWriter)

	seen := make(map[uint64]bool, len(entries))
	for _, e := range entries {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
	for seq := uint64(1); seq <= uint64(writers*perWriter); seq++ {
		assert.True(t, seen[seq], "missing seq %d", seq)
	}

	require.NoError(t, l.VerifyChain(ctx, 1, uint64(writers*perWriter)))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Append(ctx, Entry{
			Actor:   "session-c",
			Action:  ActionWriteAttempt,
			Subject: "record-3",
			Outcome: OutcomeGranted,
		})
		require.NoError(t, err)
	}
	require.NoError(t, l.VerifyChain(ctx, 1, 4))

	t.Run("edited field breaks the recomputed hash", func(t *testing.T) {
		store.mu.Lock()
		store.entries[2].Outcome = OutcomeDenied
		store.mu.Unlock()

		err := l.VerifyChain(ctx, 1, 4)
		require.ErrorIs(t, err, ErrTamperDetected)

		store.mu.Lock()
		store.entries[2].Outcome = OutcomeGranted
		store.mu.Unlock()
	})

	t.Run("edited client IP breaks the recomputed hash", func(t *testing.T) {
		store.mu.Lock()
		original := store.entries[1].ClientIP
		store.entries[1].ClientIP = "203.0.113.7"
		store.mu.Unlock()

		err := l.VerifyChain(ctx, 1, 4)
		require.ErrorIs(t, err, ErrTamperDetected)

		store.mu.Lock()
		store.entries[1].ClientIP = original
		store.mu.Unlock()
	})

	t.Run("edited request ID breaks the recomputed hash", func(t *testing.T) {
		store.mu.Lock()
		original := store.entries[3].RequestID
		store.entries[3].RequestID = "forged-request"
		store.mu.Unlock()

		err := l.VerifyChain(ctx, 1, 4)
		require.ErrorIs(t, err, ErrTamperDetected)

		store.mu.Lock()
		store.entries[3].RequestID = original
		store.mu.Unlock()
	})

	t.Run("removed entry breaks the sequence", func(t *testing.T) {
		store.mu.Lock()
		removed := store.entries[1]
		store.entries = append(store.entries[:1], store.entries[2:]...)
		store.mu.Unlock()

		err := l.VerifyChain(ctx, 1, 4)
		require.ErrorIs(t, err, ErrTamperDetected)

		store.mu.Lock()
		store.entries = append(store.entries[:1], append([]Entry{removed}, store.entries[1:]...)...)
		store.mu.Unlock()
	})

	t.Run("partial range anchors on the preceding hash", func(t *testing.T) {
		require.NoError(t, l.VerifyChain(ctx, 3, 4))
	})
}

func TestQueryFilters(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixtures := []Entry{
		{Actor: "session-a", Action: ActionWriteAttempt, Subject: "rec-1", Outcome: OutcomeGranted, Timestamp: base},
		{Actor: "session-a", Action: ActionAccessDenied, Subject: "rec-2", Outcome: OutcomeDenied, Timestamp: base.Add(time.Minute)},
		{Actor: "session-b", Action: ActionReadAttempt, Subject: "rec-1", Outcome: OutcomeGranted, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range fixtures {
		_, err := l.Append(ctx, e)
		require.NoError(t, err)
	}

	t.Run("by actor", func(t *testing.T) {
		got, err := l.Query(ctx, Filter{Actor: "session-a"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by subject", func(t *testing.T) {
		got, err := l.Query(ctx, Filter{Subject: "rec-1"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by outcome", func(t *testing.T) {
		got, err := l.Query(ctx, Filter{Outcome: OutcomeDenied})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ActionAccessDenied, got[0].Action)
	})

	t.Run("by time range", func(t *testing.T) {
		got, err := l.Query(ctx, Filter{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "rec-2", got[0].Subject)
	})

	t.Run("ordered by sequence", func(t *testing.T) {
		got, err := l.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].Seq, got[i-1].Seq)
		}
	})
}

func TestLedgerResumesChainAcrossRestart(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first, err := New(ctx, store, slog.Default())
	require.NoError(t, err)
	_, err = first.Append(ctx, Entry{Actor: "session-a", Action: ActionSessionCreated, Subject: "s-1", Outcome: OutcomeGranted})
	require.NoError(t, err)

	second, err := New(ctx, store, slog.Default())
	require.NoError(t, err)
	seq, err := second.Append(ctx, Entry{Actor: "session-a", Action: ActionSessionRevoked, Subject: "s-1", Outcome: OutcomeGranted})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	require.NoError(t, second.VerifyChain(ctx, 1, 2))
}

func TestBuildReport(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	entries := []Entry{
		{Action: ActionWriteAttempt, Outcome: OutcomeGranted},
		{Action: ActionReadAttempt, Outcome: OutcomeGranted},
		{Action: ActionAccessDenied, Outcome: OutcomeDenied},
		{Action: ActionAccessDenied, Outcome: OutcomeDenied},
	}

	report := BuildReport(entries, from, to)
	assert.Equal(t, 4, report.TotalEntries)
	assert.Equal(t, 2, report.ByAction[ActionAccessDenied])
	assert.Equal(t, 2, report.ByOutcome[OutcomeGranted])
	assert.Equal(t, 2, report.ByOutcome[OutcomeDenied])
}
