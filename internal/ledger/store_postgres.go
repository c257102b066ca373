package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the postgres driver for database/sql.
	_ "github.com/lib/pq"
)

// PostgresStore persists the ledger in an append-only table. The seq primary
// key enforces no-duplicate sequence numbers at the database level; ordering
// itself is owned by the Ledger's writer path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit_entries table if it does not exist. The schema
// deliberately has no UPDATE or DELETE path in this codebase.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			seq        BIGINT PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			subject    TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			client_ip  TEXT NOT NULL DEFAULT '',
			prev_hash  TEXT NOT NULL,
			hash       TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate audit_entries: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(seq, ts, actor, action, subject, outcome, reason, request_id, client_ip, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.Seq, e.Timestamp, e.Actor, string(e.Action), e.Subject, string(e.Outcome),
		e.Reason, e.RequestID, e.ClientIP, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.Outcome != "" {
		add("outcome = $%d", string(f.Outcome))
	}
	if !f.From.IsZero() {
		add("ts >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("ts <= $%d", f.To)
	}

	query := "SELECT seq, ts, actor, action, subject, outcome, reason, request_id, client_ip, prev_hash, hash FROM audit_entries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Range(ctx context.Context, from, to uint64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, actor, action, subject, outcome, reason, request_id, client_ip, prev_hash, hash
		FROM audit_entries WHERE seq >= $1 AND seq <= $2 ORDER BY seq ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("range audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Tail(ctx context.Context) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, ts, actor, action, subject, outcome, reason, request_id, client_ip, prev_hash, hash
		FROM audit_entries ORDER BY seq DESC LIMIT 1`)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load audit tail: %w", err)
	}
	return e, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e       Entry
		action  string
		outcome string
	)
	err := row.Scan(&e.Seq, &e.Timestamp, &e.Actor, &action, &e.Subject, &outcome,
		&e.Reason, &e.RequestID, &e.ClientIP, &e.PrevHash, &e.Hash)
	if err != nil {
		return Entry{}, err
	}
	e.Action = Action(action)
	e.Outcome = Outcome(outcome)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
