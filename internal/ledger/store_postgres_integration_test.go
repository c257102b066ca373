//go:build integration

package ledger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lexguard/internal/ledger"
	"lexguard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *ledger.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = ledger.NewPostgresStore(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(context.Background(), "TRUNCATE audit_entries")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendAndTail() {
	ctx := context.Background()

	l, err := ledger.New(ctx, s.store, slog.Default())
	s.Require().NoError(err)

	seq, err := l.Append(ctx, ledger.Entry{
		Actor:   "session-a",
		Action:  ledger.ActionWriteAttempt,
		Subject: "record-1",
		Outcome: ledger.OutcomeGranted,
	})
	s.Require().NoError(err)
	s.Equal(uint64(1), seq)

	tail, ok, err := s.store.Tail(ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(uint64(1), tail.Seq)
	s.NotEmpty(tail.Hash)
}

func (s *PostgresStoreSuite) TestChainSurvivesRestart() {
	ctx := context.Background()

	first, err := ledger.New(ctx, s.store, slog.Default())
	s.Require().NoError(err)
	for i := 0; i < 3; i++ {
		_, err := first.Append(ctx, ledger.Entry{
			Actor:   "session-a",
			Action:  ledger.ActionReadAttempt,
			Subject: "record-1",
			Outcome: ledger.OutcomeGranted,
		})
		s.Require().NoError(err)
	}

	second, err := ledger.New(ctx, s.store, slog.Default())
	s.Require().NoError(err)
	seq, err := second.Append(ctx, ledger.Entry{
		Actor:   "session-a",
		Action:  ledger.ActionSessionRevoked,
		Subject: "session-a",
		Outcome: ledger.OutcomeGranted,
	})
	s.Require().NoError(err)
	s.Equal(uint64(4), seq)

	s.Require().NoError(second.VerifyChain(ctx, 1, 4))
}

func (s *PostgresStoreSuite) TestQueryFilters() {
	ctx := context.Background()

	l, err := ledger.New(ctx, s.store, slog.Default())
	s.Require().NoError(err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = l.Append(ctx, ledger.Entry{Actor: "session-a", Action: ledger.ActionWriteAttempt, Subject: "rec-1", Outcome: ledger.OutcomeGranted, Timestamp: base})
	s.Require().NoError(err)
	_, err = l.Append(ctx, ledger.Entry{Actor: "session-b", Action: ledger.ActionAccessDenied, Subject: "rec-2", Outcome: ledger.OutcomeDenied, Timestamp: base.Add(time.Minute)})
	s.Require().NoError(err)

	denied, err := l.Query(ctx, ledger.Filter{Outcome: ledger.OutcomeDenied})
	s.Require().NoError(err)
	s.Require().Len(denied, 1)
	s.Equal("rec-2", denied[0].Subject)

	byActor, err := l.Query(ctx, ledger.Filter{Actor: "session-a"})
	s.Require().NoError(err)
	s.Len(byActor, 1)
}
