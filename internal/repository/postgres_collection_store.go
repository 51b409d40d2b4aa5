package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

const upsertCollectionQuery = `INSERT INTO collections (name, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

// PostgresCollectionStore keeps each collection as one JSONB row of the collections table.
type PostgresCollectionStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresCollectionStore constructs the store.
func NewPostgresCollectionStore(db *sqlx.DB) *PostgresCollectionStore {
	return &PostgresCollectionStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the collections table when missing.
func (s *PostgresCollectionStore) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure collections table: %w", err)
	}
	return nil
}

// Load fetches the stored payload of a collection.
func (s *PostgresCollectionStore) Load(ctx context.Context, collection string) (json.RawMessage, error) {
	const query = `SELECT payload FROM collections WHERE name = $1`
	var payload []byte
	if err := s.db.GetContext(ctx, &payload, query, collection); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return payload, nil
}

// ReplaceAll upserts the collection row.
func (s *PostgresCollectionStore) ReplaceAll(ctx context.Context, collection string, payload json.RawMessage) error {
	if _, err := s.db.ExecContext(ctx, upsertCollectionQuery, collection, []byte(payload), s.now()); err != nil {
		return fmt.Errorf("replace collection %s: %w", collection, err)
	}
	return nil
}

// ReplaceBatch upserts several collections in one transaction.
func (s *PostgresCollectionStore) ReplaceBatch(ctx context.Context, payloads map[string]json.RawMessage) error {
	if len(payloads) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin collections tx: %w", err)
	}
	ts := s.now()
	for _, name := range sortedNames(payloads) {
		if _, err := tx.ExecContext(ctx, upsertCollectionQuery, name, []byte(payloads[name]), ts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replace collection %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit collections tx: %w", err)
	}
	return nil
}

func sortedNames(payloads map[string]json.RawMessage) []string {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
