// Package bolt provides a checkpoint store backed by an embedded BoltDB file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultFileMode is the file mode used when creating the database file.
	DefaultFileMode = 0600

	// DefaultTimeout bounds how long Open waits for the file lock.
	DefaultTimeout = time.Second
)

// Compile-time check for ensuring CheckpointStore implements checkpoint.Store.
var _ checkpoint.Store = (*CheckpointStore)(nil)

var checkpointBucket = []byte("checkpoints")

// Options configures the BoltDB checkpoint store.
type Options struct {
	// FileMode for the database file.
	FileMode os.FileMode

	// Timeout for acquiring the database file lock.
	Timeout time.Duration
}

// CheckpointStore persists feed cursors in a BoltDB bucket keyed by feed ID.
type CheckpointStore struct {
	db *bolt.DB
}

// NewCheckpointStore opens (creating if needed) the database at path.
func NewCheckpointStore(path string, opts *Options) (*CheckpointStore, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory for checkpoint db: %w", err)
	}

	db, err := bolt.Open(path, opts.FileMode, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}

	return &CheckpointStore{db: db}, nil
}

// Close releases the database file.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// Checkpoint implements checkpoint.Store.
func (s *CheckpointStore) Checkpoint(_ context.Context, feedID string) (uuid.UUID, error) {
	if feedID == "" {
		return uuid.Nil, fmt.Errorf("checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	var cursor uuid.UUID
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(checkpointBucket).Get([]byte(feedID))
		if raw == nil {
			return nil
		}

		var err error
		cursor, err = uuid.FromBytes(raw)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("checkpoint: %w", err)
	}
	return cursor, nil
}

// SetCheckpoint implements checkpoint.Store.
func (s *CheckpointStore) SetCheckpoint(_ context.Context, feedID string, cursor uuid.UUID) error {
	if feedID == "" {
		return fmt.Errorf("set checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put([]byte(feedID), cursor[:])
	})
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}
