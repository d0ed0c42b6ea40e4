package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested fruit does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a fruit id is taken. Stored fruits are never rewritten.
	ErrAlreadyExists = errors.New("already exists")
)

const schemaVersion = 1

type DB struct {
	Pool *sql.DB
}

// Open opens the sqlite database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	// modernc sqlite takes pragmas through the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// sqlite wants a single writer.
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	db := &DB{Pool: pool}
	if err := db.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// Migrate brings the schema to schemaVersion, tracked through PRAGMA user_version.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if v >= schemaVersion {
		return tx.Commit()
	}

	statements := []string{`
CREATE TABLE IF NOT EXISTS fruits (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  attributes TEXT NOT NULL DEFAULT '{}',
  preferences TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL
);`, `
CREATE INDEX IF NOT EXISTS idx_fruits_type
ON fruits(type);`, `
CREATE TABLE IF NOT EXISTS matches (
  seeker_id TEXT NOT NULL REFERENCES fruits(id) ON DELETE CASCADE,
  candidate_id TEXT NOT NULL REFERENCES fruits(id) ON DELETE CASCADE,
  score REAL NOT NULL,
  reverse_score REAL NOT NULL,
  mutual_score REAL NOT NULL,
  matched_at TEXT NOT NULL,
  PRIMARY KEY (seeker_id, candidate_id)
);`,
		fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion),
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	return tx.Commit()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
