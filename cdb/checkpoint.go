// Package cdb provides a checkpoint store backed by CockroachDB or any other
// PostgreSQL-compatible database.
package cdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // Register the postgres driver.
)

// DefaultTableName is the table used when no table name is given.
const DefaultTableName = "feed_checkpoints"

// Compile-time check for ensuring CheckpointStore implements checkpoint.Store.
var _ checkpoint.Store = (*CheckpointStore)(nil)

// CheckpointStore persists feed cursors in a SQL table with one row per feed.
type CheckpointStore struct {
	db *sql.DB

	getQuery    string
	upsertQuery string
	tableName   string
}

// NewCheckpointStore opens a connection to the database at dsn and ensures the
// checkpoint table exists.
func NewCheckpointStore(dsn, tableName string) (*CheckpointStore, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	s := newCheckpointStore(db, tableName)
	if err = s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newCheckpointStore(db *sql.DB, tableName string) *CheckpointStore {
	table := quoteIdentifier(tableName)
	return &CheckpointStore{
		db:        db,
		tableName: tableName,
		getQuery:  fmt.Sprintf("SELECT cursor FROM %s WHERE feed_id = $1", table),
		upsertQuery: fmt.Sprintf(`INSERT INTO %s (feed_id, cursor, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (feed_id) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at`, table),
	}
}

func (s *CheckpointStore) initSchema() error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	feed_id TEXT PRIMARY KEY,
	cursor UUID NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, quoteIdentifier(s.tableName))

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// Close terminates the connection to the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// Checkpoint implements checkpoint.Store.
func (s *CheckpointStore) Checkpoint(ctx context.Context, feedID string) (uuid.UUID, error) {
	if feedID == "" {
		return uuid.Nil, fmt.Errorf("checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	var cursor uuid.UUID
	err := s.db.QueryRowContext(ctx, s.getQuery, feedID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	} else if err != nil {
		return uuid.Nil, fmt.Errorf("checkpoint: %w", err)
	}
	return cursor, nil
}

// SetCheckpoint implements checkpoint.Store.
func (s *CheckpointStore) SetCheckpoint(ctx context.Context, feedID string, cursor uuid.UUID) error {
	if feedID == "" {
		return fmt.Errorf("set checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	if _, err := s.db.ExecContext(ctx, s.upsertQuery, feedID, cursor); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

// quoteIdentifier quotes a SQL identifier, escaping embedded double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
