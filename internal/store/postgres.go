package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists each record as a JSONB row. Save replaces the
// whole table inside one transaction so a loaded snapshot always matches
// some saved state exactly.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the records table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			id     BIGINT PRIMARY KEY,
			record JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (RecordMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, record FROM records`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := RecordMap{}
	for rows.Next() {
		var id int
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", id, err)
		}
		records[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Save(ctx context.Context, records RecordMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear records: %w", err)
	}
	for id, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode record %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (id, record) VALUES ($1, $2)`, id, payload); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
