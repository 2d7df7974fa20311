package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed EntityStore.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	// Enable WAL mode (Write-Ahead Logging)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// Entities keyed by (kind, id); payload holds the defining state as a
	// JSON blob, geometry the committed derived output for display.
	query := `
	CREATE TABLE IF NOT EXISTS entities (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		payload JSON NOT NULL,
		geometry JSON,
		ts_commit DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);

	CREATE TABLE IF NOT EXISTS edges (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, type)
	);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Get returns one entity record, or nil when absent.
func (s *Store) Get(ctx context.Context, kind EntityKind, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, version, payload, geometry, ts_commit
		FROM entities WHERE kind = ? AND id = ?
	`, kind, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

// List returns every record of a kind, ordered by id for determinism.
func (s *Store) List(ctx context.Context, kind EntityKind) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, version, payload, geometry, ts_commit
		FROM entities WHERE kind = ? ORDER BY id
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", kind, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEdges returns every persisted relationship.
func (s *Store) ListEdges(ctx context.Context) ([]EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id, type FROM edges ORDER BY from_id, to_id, type`)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var out []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Type); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Commit applies the staged change set in a single SQL transaction. Either
// every staged write lands or none do.
func (s *Store) Commit(ctx context.Context, tx *Tx) error {
	if tx.Empty() {
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC()
	for _, rec := range tx.Puts {
		var geometry interface{}
		if len(rec.Geometry) > 0 {
			geometry = []byte(rec.Geometry)
		}
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO entities (kind, id, version, payload, geometry, ts_commit)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (kind, id) DO UPDATE SET
				version = excluded.version,
				payload = excluded.payload,
				geometry = excluded.geometry,
				ts_commit = excluded.ts_commit
		`, rec.Kind, rec.ID, rec.Version, []byte(rec.Payload), geometry, now); err != nil {
			return fmt.Errorf("failed to stage %s/%s: %w", rec.Kind, rec.ID, err)
		}
	}

	for _, key := range tx.Deletes {
		if _, err := sqlTx.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, key.Kind, key.ID); err != nil {
			return fmt.Errorf("failed to stage delete of %s/%s: %w", key.Kind, key.ID, err)
		}
	}

	for _, e := range tx.EdgeDeletes {
		if _, err := sqlTx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? AND to_id = ? AND type = ?`,
			e.FromID, e.ToID, e.Type); err != nil {
			return fmt.Errorf("failed to stage edge delete %s->%s: %w", e.FromID, e.ToID, err)
		}
	}

	for _, e := range tx.EdgePuts {
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, type) VALUES (?, ?, ?)
			ON CONFLICT (from_id, to_id, type) DO NOTHING
		`, e.FromID, e.ToID, e.Type); err != nil {
			return fmt.Errorf("failed to stage edge %s->%s: %w", e.FromID, e.ToID, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var payload, geometry []byte
	if err := row.Scan(&rec.Kind, &rec.ID, &rec.Version, &payload, &geometry, &rec.TsCommit); err != nil {
		return nil, err
	}
	rec.Payload = payload
	if len(geometry) > 0 {
		rec.Geometry = geometry
	}
	return &rec, nil
}
