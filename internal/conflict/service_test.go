package conflict

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexguard/internal/directory"
	"lexguard/internal/ledger"
	id "lexguard/pkg/domain"
)

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.NewInMemoryStore(), slog.Default())
	require.NoError(t, err)
	return l
}

// countingScreener wraps a Screener and counts invocations.
type countingScreener struct {
	inner Screener
	calls atomic.Int64
}

func (c *countingScreener) Screen(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (bool, string, error) {
	c.calls.Add(1)
	return c.inner.Screen(ctx, attorneyID, clientID)
}

type failingScreener struct{}

func (failingScreener) Screen(context.Context, id.AttorneyID, id.ClientID) (bool, string, error) {
	return false, "", errors.Join(ErrScreeningUnavailable, errors.New("registry offline"))
}

func TestCheckScreensOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewInMemoryStore()
	attorneyID := id.AttorneyID(uuid.New())
	clientID := id.ClientID(uuid.New())

	screener := &countingScreener{inner: NewAdversePartyScreener(dir.Relationships())}
	svc := NewService(screener, NewInMemoryStore(), newTestLedger(t), slog.Default(), nil)

	first, err := svc.Check(ctx, attorneyID, clientID)
	require.NoError(t, err)
	assert.True(t, first.Cleared)
	assert.False(t, first.CheckID.IsNil())

	// Second check reads the persisted result; no second screening.
	second, err := svc.Check(ctx, attorneyID, clientID)
	require.NoError(t, err)
	assert.Equal(t, first.CheckID, second.CheckID)
	assert.Equal(t, int64(1), screener.calls.Load())
}

func TestCheckFlagsAdverseParty(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewInMemoryStore()
	attorneyID := id.AttorneyID(uuid.New())
	adverseClient := id.ClientID(uuid.New())

	require.NoError(t, dir.Relationships().Save(ctx, directory.Relationship{
		AttorneyID:     attorneyID,
		ClientID:       id.ClientID(uuid.New()),
		Matter:         "Meridian v. Harbor",
		AdverseParties: []id.ClientID{adverseClient},
		Active:         true,
	}))

	auditLedger := newTestLedger(t)
	svc := NewService(NewAdversePartyScreener(dir.Relationships()), NewInMemoryStore(), auditLedger, slog.Default(), nil)

	result, err := svc.Check(ctx, attorneyID, adverseClient)
	require.NoError(t, err)
	assert.False(t, result.Cleared)
	assert.Contains(t, result.Basis, "Meridian v. Harbor")

	entries, err := auditLedger.Query(ctx, ledger.Filter{Action: ledger.ActionConflictCheck})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.OutcomeDenied, entries[0].Outcome)
}

func TestCheckIgnoresInactiveMatters(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewInMemoryStore()
	attorneyID := id.AttorneyID(uuid.New())
	formerAdverse := id.ClientID(uuid.New())

	require.NoError(t, dir.Relationships().Save(ctx, directory.Relationship{
		AttorneyID:     attorneyID,
		ClientID:       id.ClientID(uuid.New()),
		Matter:         "closed matter",
		AdverseParties: []id.ClientID{formerAdverse},
		Active:         false,
	}))

	svc := NewService(NewAdversePartyScreener(dir.Relationships()), NewInMemoryStore(), newTestLedger(t), slog.Default(), nil)

	result, err := svc.Check(ctx, attorneyID, formerAdverse)
	require.NoError(t, err)
	assert.True(t, result.Cleared)
}

func TestCheckUnavailableIsUnresolved(t *testing.T) {
	svc := NewService(failingScreener{}, NewInMemoryStore(), newTestLedger(t), slog.Default(), nil)

	_, err := svc.Check(context.Background(), id.AttorneyID(uuid.New()), id.ClientID(uuid.New()))
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.ErrorIs(t, err, ErrScreeningUnavailable)
}

func TestConcurrentChecksScreenExactlyOnce(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewInMemoryStore()
	attorneyID := id.AttorneyID(uuid.New())
	clientID := id.ClientID(uuid.New())

	screener := &countingScreener{inner: NewAdversePartyScreener(dir.Relationships())}
	svc := NewService(screener, NewInMemoryStore(), newTestLedger(t), slog.Default(), nil)

	const callers = 16
	results := make([]CheckResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Check(ctx, attorneyID, clientID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, r := range results[1:] {
		assert.Equal(t, results[0].CheckID, r.CheckID, "all callers must observe one recorded result")
	}
	assert.Equal(t, int64(1), screener.calls.Load())
}

// flippableScreener reports a conflict until facts change.
type flippableScreener struct {
	conflicted atomic.Bool
}

func (f *flippableScreener) Screen(context.Context, id.AttorneyID, id.ClientID) (bool, string, error) {
	if f.conflicted.Load() {
		return false, "adverse representation on file", nil
	}
	return true, "no adverse representation found", nil
}

func TestRescreenReplacesResult(t *testing.T) {
	ctx := context.Background()
	attorneyID := id.AttorneyID(uuid.New())
	clientID := id.ClientID(uuid.New())

	screener := &flippableScreener{}
	screener.conflicted.Store(true)

	store := NewInMemoryStore()
	svc := NewService(screener, store, newTestLedger(t), slog.Default(), nil)

	flagged, err := svc.Check(ctx, attorneyID, clientID)
	require.NoError(t, err)
	require.False(t, flagged.Cleared)

	// The adverse matter closes and an admin re-screens with a waiver basis.
	screener.conflicted.Store(false)
	rescreened, err := svc.Rescreen(ctx, attorneyID, clientID, "waiver on file per engagement letter")
	require.NoError(t, err)
	assert.True(t, rescreened.Cleared)
	assert.Equal(t, "waiver on file per engagement letter", rescreened.Basis)
	assert.NotEqual(t, flagged.CheckID, rescreened.CheckID)

	current, err := store.FindByPair(ctx, attorneyID, clientID)
	require.NoError(t, err)
	assert.Equal(t, rescreened.CheckID, current.CheckID)
}

func TestRescreenBasisNeverOverridesConflict(t *testing.T) {
	ctx := context.Background()
	screener := &flippableScreener{}
	screener.conflicted.Store(true)

	svc := NewService(screener, NewInMemoryStore(), newTestLedger(t), slog.Default(), nil)

	result, err := svc.Rescreen(ctx, id.AttorneyID(uuid.New()), id.ClientID(uuid.New()), "attempted waiver")
	require.NoError(t, err)
	assert.False(t, result.Cleared)
	assert.Equal(t, "adverse representation on file", result.Basis)
}
