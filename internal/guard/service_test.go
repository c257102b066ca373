package guard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexguard/internal/conflict"
	"lexguard/internal/directory"
	"lexguard/internal/envelope"
	"lexguard/internal/ledger"
	"lexguard/internal/session"
	id "lexguard/pkg/domain"
)

type guardFixture struct {
	svc       *Service
	sessions  *session.Service
	conflicts *conflict.Service
	ledger    *ledger.Ledger
	records   *InMemoryStore
	dir       *directory.InMemoryStore

	attorney directory.Attorney
	clientA  directory.Client
	clientB  directory.Client
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	ctx := context.Background()

	dir := directory.NewInMemoryStore()
	attorney := directory.Attorney{
		ID:       id.AttorneyID(uuid.New()),
		Name:     "Ada Counsel",
		Standing: directory.StandingGood,
		Active:   true,
	}
	clientA := directory.Client{ID: id.ClientID(uuid.New()), Name: "Acme Corp"}
	clientB := directory.Client{ID: id.ClientID(uuid.New()), Name: "Borealis LLC"}

	require.NoError(t, dir.Save(ctx, attorney))
	require.NoError(t, dir.Clients().Save(ctx, clientA))
	require.NoError(t, dir.Clients().Save(ctx, clientB))
	for _, c := range []directory.Client{clientA, clientB} {
		require.NoError(t, dir.Relationships().Save(ctx, directory.Relationship{
			AttorneyID: attorney.ID,
			ClientID:   c.ID,
			Matter:     "general counsel",
			Active:     true,
		}))
	}

	auditLedger, err := ledger.New(ctx, ledger.NewInMemoryStore(), slog.Default())
	require.NoError(t, err)

	tokens := session.NewTokenService("test-signing-key-0123456789abcdef", "lexguard-test")
	sessions := session.NewService(dir, dir.Relationships(), session.NewInMemoryStore(),
		tokens, auditLedger, slog.Default(), nil, time.Hour)

	conflicts := conflict.NewService(conflict.NewAdversePartyScreener(dir.Relationships()),
		conflict.NewInMemoryStore(), auditLedger, slog.Default(), nil)

	keyring, err := envelope.NewKeyring(map[string][]byte{
		"v1": []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	records := NewInMemoryStore()
	svc := NewService(sessions, conflicts, envelope.New(keyring), records, auditLedger, slog.Default())

	return &guardFixture{
		svc:       svc,
		sessions:  sessions,
		conflicts: conflicts,
		ledger:    auditLedger,
		records:   records,
		dir:       dir,
		attorney:  attorney,
		clientA:   clientA,
		clientB:   clientB,
	}
}

func (f *guardFixture) newSession(t *testing.T, clientID id.ClientID, scope session.Scope) (*session.Session, string) {
	t.Helper()
	sess, token, err := f.sessions.Create(context.Background(), f.attorney.ID, clientID, scope)
	require.NoError(t, err)
	return sess, token
}

func (f *guardFixture) entries(t *testing.T, filter ledger.Filter) []ledger.Entry {
	t.Helper()
	entries, err := f.ledger.Query(context.Background(), filter)
	require.NoError(t, err)
	return entries
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	payload := []byte("memo: settlement strategy for Acme")
	recordID, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     payload,
		ContentType: ContentNote,
	})
	require.NoError(t, err)
	require.False(t, recordID.IsNil())

	comm, err := f.svc.Read(ctx, sess.ID, token, recordID)
	require.NoError(t, err)
	assert.Equal(t, payload, comm.Payload)
	assert.Equal(t, ContentNote, comm.ContentType)
	assert.Equal(t, f.attorney.ID, comm.AttorneyID)

	// Stored form is ciphertext, never the plaintext.
	stored, err := f.records.FindByID(ctx, recordID)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Ciphertext), "settlement strategy")

	writes := f.entries(t, ledger.Filter{Action: ledger.ActionWriteAttempt, Outcome: ledger.OutcomeGranted})
	require.Len(t, writes, 1)
	assert.Equal(t, recordID.String(), writes[0].Subject)
	reads := f.entries(t, ledger.Filter{Action: ledger.ActionReadAttempt, Outcome: ledger.OutcomeGranted})
	require.Len(t, reads, 1)
	assert.Equal(t, recordID.String(), reads[0].Subject)
}

func TestReadDeniedAcrossPairs(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)

	owner, ownerToken := f.newSession(t, f.clientA.ID, session.ScopeClientOwnOnly)
	recordID, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   owner.ID,
		Token:       ownerToken,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("privileged"),
		ContentType: ContentMessage,
	})
	require.NoError(t, err)

	// A session scoped to another client guesses the valid record ID.
	other, otherToken := f.newSession(t, f.clientB.ID, session.ScopeClientOwnOnly)
	_, err = f.svc.Read(ctx, other.ID, otherToken, recordID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	denials := f.entries(t, ledger.Filter{Action: ledger.ActionAccessDenied})
	require.Len(t, denials, 1)
	assert.Equal(t, other.ID.String(), denials[0].Actor)
	assert.Equal(t, recordID.String(), denials[0].Subject)
}

func TestUnknownRecordDeniesIdentically(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	_, err := f.svc.Read(ctx, sess.ID, token, id.NewRecordID())
	assert.ErrorIs(t, err, ErrAccessDenied)

	denials := f.entries(t, ledger.Filter{Action: ledger.ActionAccessDenied})
	assert.Len(t, denials, 1)
}

func TestReadAfterRevokeIsSessionInvalid(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	recordID, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("privileged"),
		ContentType: ContentNote,
	})
	require.NoError(t, err)

	require.NoError(t, f.sessions.Revoke(ctx, sess.ID))

	_, err = f.svc.Read(ctx, sess.ID, token, recordID)
	assert.ErrorIs(t, err, session.ErrSessionInvalid)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestWriteDeniedForScopeNone(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeNone)

	_, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("privileged"),
		ContentType: ContentNote,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)

	denials := f.entries(t, ledger.Filter{Action: ledger.ActionAccessDenied})
	assert.Len(t, denials, 1)
}

func TestWriteBlockedByConflict(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)

	// Client B is adverse to the attorney in an unrelated active matter.
	require.NoError(t, f.dir.Relationships().Save(ctx, directory.Relationship{
		AttorneyID:     f.attorney.ID,
		ClientID:       f.clientA.ID,
		Matter:         "Acme v. Borealis",
		AdverseParties: []id.ClientID{f.clientB.ID},
		Active:         true,
	}))

	sess, token := f.newSession(t, f.clientB.ID, session.ScopeClientOwnOnly)
	_, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientB.ID,
		Payload:     []byte("privileged"),
		ContentType: ContentNote,
	})
	assert.ErrorIs(t, err, ErrConflictUnresolved)

	denied := f.entries(t, ledger.Filter{Action: ledger.ActionWriteAttempt, Outcome: ledger.OutcomeDenied})
	require.Len(t, denied, 1)
	assert.Contains(t, denied[0].Reason, "Acme v. Borealis")
}

type downScreener struct{}

func (downScreener) Screen(context.Context, id.AttorneyID, id.ClientID) (bool, string, error) {
	return false, "", errors.Join(conflict.ErrScreeningUnavailable, errors.New("registry offline"))
}

func TestWriteFailsClosedWhenScreeningDown(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	f.svc.conflicts = conflict.NewService(downScreener{}, conflict.NewInMemoryStore(),
		f.ledger, slog.Default(), nil)

	sess, token := f.newSession(t, f.clientA.ID, session.ScopeClientOwnOnly)
	_, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("privileged"),
		ContentType: ContentNote,
	})
	assert.ErrorIs(t, err, ErrConflictUnresolved)
	assert.ErrorIs(t, err, conflict.ErrScreeningUnavailable)

	// The aborted write is still on the trail.
	denied := f.entries(t, ledger.Filter{
		Action:  ledger.ActionWriteAttempt,
		Outcome: ledger.OutcomeDenied,
	})
	require.Len(t, denied, 1)
	assert.Equal(t, sess.ID.String(), denied[0].Actor)
	assert.Equal(t, f.clientA.ID.String(), denied[0].Subject)
	assert.Equal(t, "conflict screening unavailable", denied[0].Reason)
}

type failingRecordStore struct{}

func (failingRecordStore) Insert(ctx context.Context, record Record) error {
	return errors.New("record store down")
}

func (failingRecordStore) FindByID(ctx context.Context, recordID id.RecordID) (Record, error) {
	return Record{}, errors.New("record store down")
}

func (failingRecordStore) ListByClient(ctx context.Context, clientID id.ClientID, attorneyID id.AttorneyID) ([]Metadata, error) {
	return nil, errors.New("record store down")
}

func TestStoreOutageStillReachesLedger(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	f.svc.records = failingRecordStore{}
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	t.Run("write", func(t *testing.T) {
		_, err := f.svc.Write(ctx, WriteRequest{
			SessionID:   sess.ID,
			Token:       token,
			AttorneyID:  f.attorney.ID,
			ClientID:    f.clientA.ID,
			Payload:     []byte("privileged"),
			ContentType: ContentNote,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAccessDenied)

		aborted := f.entries(t, ledger.Filter{
			Action:  ledger.ActionWriteAttempt,
			Outcome: ledger.OutcomeDenied,
		})
		require.Len(t, aborted, 1)
		assert.Equal(t, "record store unavailable", aborted[0].Reason)
	})

	t.Run("read", func(t *testing.T) {
		_, err := f.svc.Read(ctx, sess.ID, token, id.NewRecordID())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAccessDenied)

		aborted := f.entries(t, ledger.Filter{
			Action:  ledger.ActionReadAttempt,
			Outcome: ledger.OutcomeDenied,
		})
		require.Len(t, aborted, 1)
		assert.Equal(t, "record store unavailable", aborted[0].Reason)
	})

	t.Run("list", func(t *testing.T) {
		_, err := f.svc.ListForClient(ctx, sess.ID, token, f.clientA.ID)
		require.Error(t, err)

		aborted := f.entries(t, ledger.Filter{
			Action:  ledger.ActionReadAttempt,
			Outcome: ledger.OutcomeDenied,
			Subject: f.clientA.ID.String(),
		})
		require.Len(t, aborted, 1)
		assert.Equal(t, "record store unavailable", aborted[0].Reason)
	})
}

func TestCorrectionChainsToPriorRecord(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	original, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("draft"),
		ContentType: ContentNote,
	})
	require.NoError(t, err)

	corrected, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("final"),
		ContentType: ContentNote,
		PriorID:     original,
	})
	require.NoError(t, err)
	assert.NotEqual(t, original, corrected)

	// The original survives untouched; the correction references it.
	comm, err := f.svc.Read(ctx, sess.ID, token, original)
	require.NoError(t, err)
	assert.Equal(t, []byte("draft"), comm.Payload)
	comm, err = f.svc.Read(ctx, sess.ID, token, corrected)
	require.NoError(t, err)
	assert.Equal(t, []byte("final"), comm.Payload)
	assert.Equal(t, original, comm.PriorID)
}

func TestCorrectionCannotCrossRelationships(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	original, err := f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientA.ID,
		Payload:     []byte("draft"),
		ContentType: ContentNote,
	})
	require.NoError(t, err)

	_, err = f.svc.Write(ctx, WriteRequest{
		SessionID:   sess.ID,
		Token:       token,
		AttorneyID:  f.attorney.ID,
		ClientID:    f.clientB.ID,
		Payload:     []byte("final"),
		ContentType: ContentNote,
		PriorID:     original,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestListForClient(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	for _, payload := range []string{"one", "two"} {
		_, err := f.svc.Write(ctx, WriteRequest{
			SessionID:   sess.ID,
			Token:       token,
			AttorneyID:  f.attorney.ID,
			ClientID:    f.clientA.ID,
			Payload:     []byte(payload),
			ContentType: ContentMessage,
		})
		require.NoError(t, err)
	}

	metadata, err := f.svc.ListForClient(ctx, sess.ID, token, f.clientA.ID)
	require.NoError(t, err)
	require.Len(t, metadata, 2)
	assert.True(t, metadata[0].CreatedAt.Before(metadata[1].CreatedAt) ||
		metadata[0].CreatedAt.Equal(metadata[1].CreatedAt))

	t.Run("client-scoped session cannot list another client", func(t *testing.T) {
		other, otherToken := f.newSession(t, f.clientB.ID, session.ScopeClientOwnOnly)
		_, err := f.svc.ListForClient(ctx, other.ID, otherToken, f.clientA.ID)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestConcurrentFirstWritesScreenOnce(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t)
	sess, token := f.newSession(t, id.ClientID{}, session.ScopeAttorneyFull)

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Write(ctx, WriteRequest{
				SessionID:   sess.ID,
				Token:       token,
				AttorneyID:  f.attorney.ID,
				ClientID:    f.clientA.ID,
				Payload:     []byte("privileged"),
				ContentType: ContentNote,
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	checks := f.entries(t, ledger.Filter{Action: ledger.ActionConflictCheck})
	assert.Len(t, checks, 1, "one screening for the pair no matter how many writers race")
}
