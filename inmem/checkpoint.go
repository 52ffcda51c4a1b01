package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/google/uuid"
)

// Compile-time check for ensuring CheckpointStore implements checkpoint.Store.
var _ checkpoint.Store = (*CheckpointStore)(nil)

// CheckpointStore keeps feed cursors in memory. It is safe for concurrent use.
type CheckpointStore struct {
	mu      sync.RWMutex
	cursors map[string]uuid.UUID
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{cursors: make(map[string]uuid.UUID)}
}

// Checkpoint implements checkpoint.Store.
func (s *CheckpointStore) Checkpoint(_ context.Context, feedID string) (uuid.UUID, error) {
	if feedID == "" {
		return uuid.Nil, fmt.Errorf("checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[feedID], nil
}

// SetCheckpoint implements checkpoint.Store.
func (s *CheckpointStore) SetCheckpoint(_ context.Context, feedID string, cursor uuid.UUID) error {
	if feedID == "" {
		return fmt.Errorf("set checkpoint: %w", checkpoint.ErrMissingFeedID)
	}

	s.mu.Lock()
	s.cursors[feedID] = cursor
	s.mu.Unlock()
	return nil
}
