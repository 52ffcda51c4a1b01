package checkpointtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/google/uuid"
)

// Suite defines a re-usable set of checkpoint-related tests that can
// be executed against any type that implements checkpoint.Store.
type Suite struct {
	S checkpoint.Store

	// Optional helper functions.
	BeforeEach func(*testing.T)
	AfterEach  func(*testing.T)
}

// TestStore runs all the checkpoint tests against the store.
func (s *Suite) TestStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*testing.T, checkpoint.Store)
	}{
		{"Unknown feed", TestUnknownFeed},
		{"Set checkpoint", TestSetCheckpoint},
		{"Feeds are isolated", TestFeedsAreIsolated},
		{"Missing feed ID", TestMissingFeedID},
		{"Concurrent writers", TestConcurrentWriters},
	}

	if s.BeforeEach == nil {
		s.BeforeEach = func(t *testing.T) {}
	}

	if s.AfterEach == nil {
		s.AfterEach = func(t *testing.T) {}
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s.BeforeEach(t)
			test.fn(t, s.S)
			s.AfterEach(t)
		})
	}
}

// TestUnknownFeed verifies that an unknown feed reports the empty cursor.
func TestUnknownFeed(t *testing.T, s checkpoint.Store) {
	got, err := s.Checkpoint(context.TODO(), "never-seen")
	if err != nil {
		t.Fatalf("could not get checkpoint: %v", err)
	}
	if got != uuid.Nil {
		t.Errorf("got %s, want %s", got, uuid.Nil)
	}
}

// TestSetCheckpoint verifies that checkpoints are stored and overwritten.
func TestSetCheckpoint(t *testing.T, s checkpoint.Store) {
	feedID := "feed-" + uuid.NewString()

	first := uuid.New()
	if err := s.SetCheckpoint(context.TODO(), feedID, first); err != nil {
		t.Fatalf("could not set checkpoint: %v", err)
	}
	got, err := s.Checkpoint(context.TODO(), feedID)
	if err != nil {
		t.Fatalf("could not get checkpoint: %v", err)
	}
	if got != first {
		t.Errorf("got %s, want %s", got, first)
	}

	second := uuid.New()
	if err = s.SetCheckpoint(context.TODO(), feedID, second); err != nil {
		t.Fatalf("could not overwrite checkpoint: %v", err)
	}
	if got, err = s.Checkpoint(context.TODO(), feedID); err != nil {
		t.Fatalf("could not get checkpoint: %v", err)
	}
	if got != second {
		t.Errorf("got %s, want %s", got, second)
	}
}

// TestFeedsAreIsolated verifies that checkpoints of different feeds do not
// overwrite each other.
func TestFeedsAreIsolated(t *testing.T, s checkpoint.Store) {
	cursors := make(map[string]uuid.UUID)
	for i := 0; i < 5; i++ {
		feedID := fmt.Sprintf("feed-%d-%s", i, uuid.NewString())
		cursors[feedID] = uuid.New()
		if err := s.SetCheckpoint(context.TODO(), feedID, cursors[feedID]); err != nil {
			t.Fatalf("could not set checkpoint: %v", err)
		}
	}

	for feedID, want := range cursors {
		got, err := s.Checkpoint(context.TODO(), feedID)
		if err != nil {
			t.Fatalf("could not get checkpoint: %v", err)
		}
		if got != want {
			t.Errorf("feed %s: got %s, want %s", feedID, got, want)
		}
	}
}

// TestMissingFeedID verifies that an empty feed ID is rejected.
func TestMissingFeedID(t *testing.T, s checkpoint.Store) {
	if err := s.SetCheckpoint(context.TODO(), "", uuid.New()); !errors.Is(err, checkpoint.ErrMissingFeedID) {
		t.Errorf("unexpected error %v, want %v", err, checkpoint.ErrMissingFeedID)
	}
	if _, err := s.Checkpoint(context.TODO(), ""); !errors.Is(err, checkpoint.ErrMissingFeedID) {
		t.Errorf("unexpected error %v, want %v", err, checkpoint.ErrMissingFeedID)
	}
}

// TestConcurrentWriters verifies that the store can be written from multiple
// goroutines, each owning its own feed.
func TestConcurrentWriters(t *testing.T, s checkpoint.Store) {
	var (
		wg      sync.WaitGroup
		numFeed = 10
		feedIDs = make([]string, numFeed)
		final   = make([]uuid.UUID, numFeed)
		errCh   = make(chan error, numFeed)
	)

	for i := 0; i < numFeed; i++ {
		feedIDs[i] = fmt.Sprintf("concurrent-%d-%s", i, uuid.NewString())
		final[i] = uuid.New()
	}

	wg.Add(numFeed)
	for i := 0; i < numFeed; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := s.SetCheckpoint(context.TODO(), feedIDs[i], uuid.New()); err != nil {
					errCh <- err
					return
				}
			}
			if err := s.SetCheckpoint(context.TODO(), feedIDs[i], final[i]); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent write failed: %v", err)
	}

	for i, feedID := range feedIDs {
		got, err := s.Checkpoint(context.TODO(), feedID)
		if err != nil {
			t.Fatalf("could not get checkpoint: %v", err)
		}
		if got != final[i] {
			t.Errorf("feed %s: got %s, want %s", feedID, got, final[i])
		}
	}
}
