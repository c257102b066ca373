package directory

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

// PostgresStore persists the directory so intake survives restarts alongside
// the communications that reference it. Like the in-memory store it backs
// all three store interfaces from one place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the directory tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attorneys (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			standing   TEXT NOT NULL,
			active     BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			attorney_id     UUID NOT NULL,
			client_id       UUID NOT NULL,
			matter          TEXT NOT NULL,
			adverse_parties UUID[] NOT NULL DEFAULT '{}',
			active          BOOLEAN NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS relationships_attorney_idx
			ON relationships (attorney_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate directory: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, attorney Attorney) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attorneys (id, name, standing, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			standing = EXCLUDED.standing,
			active = EXCLUDED.active`,
		uuid.UUID(attorney.ID), attorney.Name, string(attorney.Standing),
		attorney.Active, attorney.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save attorney: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, attorneyID id.AttorneyID) (Attorney, error) {
	var (
		attorney Attorney
		standing string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, standing, active, created_at
		FROM attorneys WHERE id = $1`,
		uuid.UUID(attorneyID),
	).Scan(&attorney.Name, &standing, &attorney.Active, &attorney.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attorney{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Attorney{}, fmt.Errorf("load attorney: %w", err)
	}
	attorney.ID = attorneyID
	attorney.Standing = BarStanding(standing)
	return attorney, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, attorneyID id.AttorneyID, standing BarStanding, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attorneys SET standing = $2, active = $3 WHERE id = $1`,
		uuid.UUID(attorneyID), string(standing), active,
	)
	if err != nil {
		return fmt.Errorf("update attorney status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Clients returns the ClientStore view of this store.
func (s *PostgresStore) Clients() ClientStore { return (*postgresClients)(s) }

// Relationships returns the RelationshipStore view of this store.
func (s *PostgresStore) Relationships() RelationshipStore { return (*postgresRelationships)(s) }

type postgresClients PostgresStore

func (s *postgresClients) Save(ctx context.Context, client Client) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clients (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		uuid.UUID(client.ID), client.Name, client.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	return nil
}

func (s *postgresClients) FindByID(ctx context.Context, clientID id.ClientID) (Client, error) {
	var client Client
	err := s.pool.QueryRow(ctx, `
		SELECT name, created_at FROM clients WHERE id = $1`,
		uuid.UUID(clientID),
	).Scan(&client.Name, &client.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("load client: %w", err)
	}
	client.ID = clientID
	return client, nil
}

type postgresRelationships PostgresStore

func (s *postgresRelationships) Save(ctx context.Context, rel Relationship) error {
	adverse := make([]uuid.UUID, len(rel.AdverseParties))
	for i, p := range rel.AdverseParties {
		adverse[i] = uuid.UUID(p)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relationships (attorney_id, client_id, matter, adverse_parties, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(rel.AttorneyID), uuid.UUID(rel.ClientID), rel.Matter,
		adverse, rel.Active, rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save relationship: %w", err)
	}
	return nil
}

func (s *postgresRelationships) Represents(ctx context.Context, attorneyID id.AttorneyID, clientID id.ClientID) (bool, error) {
	var represents bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE attorney_id = $1 AND client_id = $2 AND active
		)`,
		uuid.UUID(attorneyID), uuid.UUID(clientID),
	).Scan(&represents)
	if err != nil {
		return false, fmt.Errorf("check representation: %w", err)
	}
	return represents, nil
}

func (s *postgresRelationships) ListByAttorney(ctx context.Context, attorneyID id.AttorneyID) ([]Relationship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, matter, adverse_parties, active, created_at
		FROM relationships WHERE attorney_id = $1
		ORDER BY created_at`,
		uuid.UUID(attorneyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var (
			rel      Relationship
			clientID uuid.UUID
			adverse  []uuid.UUID
		)
		if err := rows.Scan(&clientID, &rel.Matter, &adverse, &rel.Active, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rel.AttorneyID = attorneyID
		rel.ClientID = id.ClientID(clientID)
		rel.AdverseParties = make([]id.ClientID, len(adverse))
		for i, p := range adverse {
			rel.AdverseParties[i] = id.ClientID(p)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return rels, nil
}
