// Package checkpoint defines durable storage for feed cursors.
package checkpoint

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMissingFeedID is returned when a checkpoint operation is attempted
// without a feed ID.
var ErrMissingFeedID = errors.New("missing feed ID")

// Store is implemented by objects that persist the last processed item of a
// feed.
type Store interface {
	// Checkpoint returns the cursor stored for feedID, or uuid.Nil if the
	// feed has never been checkpointed.
	Checkpoint(ctx context.Context, feedID string) (uuid.UUID, error)

	// SetCheckpoint records cursor as the last processed item of feedID,
	// replacing any previous value.
	SetCheckpoint(ctx context.Context, feedID string, cursor uuid.UUID) error
}
