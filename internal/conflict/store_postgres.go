package conflict

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

// PostgresStore persists check results keyed by pair. An upsert keeps the
// latest screen authoritative, matching Store's overwrite contract.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the conflict_checks table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conflict_checks (
			attorney_id UUID NOT NULL,
			client_id   UUID NOT NULL,
			check_id    UUID NOT NULL,
			cleared     BOOLEAN NOT NULL,
			basis       TEXT NOT NULL DEFAULT '',
			checked_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (attorney_id, client_id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate conflict_checks: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, result CheckResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conflict_checks (attorney_id, client_id, check_id, cleared, basis, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attorney_id, client_id) DO UPDATE SET
			check_id = EXCLUDED.check_id,
			cleared = EXCLUDED.cleared,
			basis = EXCLUDED.basis,
			checked_at = EXCLUDED.checked_at`,
		uuid.UUID(result.AttorneyID), uuid.UUID(result.ClientID), uuid.UUID(result.CheckID),
		result.Cleared, result.Basis, result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save conflict result: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByPair(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (CheckResult, error) {
	var (
		result  CheckResult
		checkID uuid.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT check_id, cleared, basis, checked_at
		FROM conflict_checks WHERE attorney_id = $1 AND client_id = $2`,
		uuid.UUID(attorneyID), uuid.UUID(clientID),
	).Scan(&checkID, &result.Cleared, &result.Basis, &result.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return CheckResult{}, sentinel.ErrNotFound
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("load conflict result: %w", err)
	}
	result.CheckID = id.CheckID(checkID)
	result.AttorneyID = attorneyID
	result.ClientID = clientID
	return result, nil
}
