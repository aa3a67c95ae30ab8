// Package metadata persists per-vector metadata in an embedded DuckDB
// database, keeping it durable across restarts independently of index
// snapshots.
package metadata

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS vector_metadata (
	id    BIGINT NOT NULL,
	key   VARCHAR NOT NULL,
	value VARCHAR NOT NULL,
	PRIMARY KEY (id, key)
)`

// Store is a DuckDB-backed metadata table keyed by vector ID.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path. An empty path uses an
// in-memory database, which is useful for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}
	logger.Info("metadata store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Upsert writes all key/value pairs for one vector, replacing existing keys.
func (s *Store) Upsert(ctx context.Context, id int64, meta map[string]string) error {
	return s.UpsertBatch(ctx, []core.VectorEntry{{ID: id, Metadata: meta}})
}

// UpsertBatch writes metadata for many vectors in one transaction.
func (s *Store) UpsertBatch(ctx context.Context, entries []core.VectorEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO vector_metadata (id, key, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare metadata upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		for k, v := range e.Metadata {
			if _, err := stmt.ExecContext(ctx, e.ID, k, v); err != nil {
				return fmt.Errorf("upsert metadata for id %d: %w", e.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Get returns the metadata map for one vector, or an empty map.
func (s *Store) Get(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM vector_metadata WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query metadata for id %d: %w", id, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Delete removes all metadata for the given vector IDs.
func (s *Store) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM vector_metadata WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare metadata delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete metadata for id %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadAll streams the whole table into memory, grouped by vector ID.
// Used at startup to reconcile the table against a loaded index snapshot.
func (s *Store) LoadAll(ctx context.Context) (map[int64]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, key, value FROM vector_metadata ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]string)
	for rows.Next() {
		var id int64
		var k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		m, ok := out[id]
		if !ok {
			m = make(map[string]string)
			out[id] = m
		}
		m[k] = v
	}
	return out, rows.Err()
}

// Count returns the number of distinct vector IDs with metadata.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT id) FROM vector_metadata").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count metadata: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
