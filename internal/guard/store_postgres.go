package guard

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

// PostgresStore persists records in an append-only table. prior_id is NULL
// for originals; the ciphertext column holds the sealed payload and nothing
// in this schema ever stores plaintext.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the communications table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS privileged_communications (
			id           UUID PRIMARY KEY,
			attorney_id  UUID NOT NULL,
			client_id    UUID NOT NULL,
			content_type TEXT NOT NULL,
			ciphertext   BYTEA NOT NULL,
			key_ref      TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			prior_id     UUID
		);
		CREATE INDEX IF NOT EXISTS privileged_communications_client_idx
			ON privileged_communications (client_id, created_at)`)
	if err != nil {
		return fmt.Errorf("migrate privileged_communications: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, r Record) error {
	var priorID *uuid.UUID
	if !r.PriorID.IsNil() {
		u := uuid.UUID(r.PriorID)
		priorID = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO privileged_communications
			(id, attorney_id, client_id, content_type, ciphertext, key_ref, created_at, prior_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(r.ID), uuid.UUID(r.AttorneyID), uuid.UUID(r.ClientID),
		string(r.ContentType), r.Ciphertext, r.KeyRef, r.CreatedAt, priorID,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, attorney_id, client_id, content_type, ciphertext, key_ref, created_at, prior_id
		FROM privileged_communications WHERE id = $1`, uuid.UUID(recordID))

	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID id.ClientID, attorneyID id.AttorneyID) ([]Metadata, error) {
	query := `
		SELECT id, attorney_id, client_id, content_type, ciphertext, key_ref, created_at, prior_id
		FROM privileged_communications WHERE client_id = $1`
	args := []any{uuid.UUID(clientID)}
	if !attorneyID.IsNil() {
		query += ` AND attorney_id = $2`
		args = append(args, uuid.UUID(attorneyID))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r.metadata())
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r          Record
		recordID   uuid.UUID
		attorneyID uuid.UUID
		clientID   uuid.UUID
		content    string
		priorID    *uuid.UUID
	)
	err := row.Scan(&recordID, &attorneyID, &clientID, &content,
		&r.Ciphertext, &r.KeyRef, &r.CreatedAt, &priorID)
	if err != nil {
		return Record{}, err
	}
	r.ID = id.RecordID(recordID)
	r.AttorneyID = id.AttorneyID(attorneyID)
	r.ClientID = id.ClientID(clientID)
	r.ContentType = ContentType(content)
	if priorID != nil {
		r.PriorID = id.RecordID(*priorID)
	}
	return r, nil
}
