// Package guidcursor resumes archived feeds whose items carry a GUID in their
// id, such as "uuid:7d444840-9dc0-11d1-b245-5ffdce74fad2".
package guidcursor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ejacobg/feedcursor/archive"
	"github.com/ejacobg/feedcursor/feed"
	"github.com/google/uuid"
)

// Compile-time check for ensuring Cursor implements archive.Cursor.
var _ archive.Cursor = Cursor{}

// Prefixes stripped from item IDs before parsing.
var idPrefixes = []string{"urn:uuid:", "uuid:"}

// InvalidItemIDError is returned when an item ID does not hold a GUID.
type InvalidItemIDError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *InvalidItemIDError) Error() string {
	return fmt.Sprintf("item id %q is not a GUID: %v", e.ID, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *InvalidItemIDError) Unwrap() error {
	return e.Err
}

// ErrBookmarkNotReplayed is returned by Iterator.Error when the cursor was
// located but the forward walk reached the head without passing it. This
// happens when the archive is repaginated between the two walks, e.g. when
// the live page at the feed URL rolls over into a new archive page. No cursor
// is stored and a later read locates the cursor again.
var ErrBookmarkNotReplayed = errors.New("cursor was not passed during replay")

// BookmarkNotMatchedError is returned when a non-empty cursor cannot be found
// anywhere in the archive, e.g. because the archive was pruned. The stored
// cursor is stale and needs operator attention.
type BookmarkNotMatchedError struct {
	Cursor uuid.UUID

	// URL is the oldest page that was reached.
	URL string
}

// Error implements the error interface.
func (e *BookmarkNotMatchedError) Error() string {
	return fmt.Sprintf("cursor %s not found in archive (oldest page %q)", e.Cursor, e.URL)
}

// Unwrap allows errors.Is(err, archive.ErrBookmarkNotMatched).
func (e *BookmarkNotMatchedError) Unwrap() error {
	return archive.ErrBookmarkNotMatched
}

// ExtractGUID parses the GUID held in the item's ID.
func ExtractGUID(item feed.Item) (uuid.UUID, error) {
	id := strings.TrimSpace(item.ID)
	for _, prefix := range idPrefixes {
		if len(id) >= len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
			id = id[len(prefix):]
			break
		}
	}

	guid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, &InvalidItemIDError{ID: item.ID, Err: err}
	}
	return guid, nil
}

// Cursor is an archive.Cursor that identifies the last processed item by its
// GUID. The zero value (uuid.Nil) is the empty cursor.
type Cursor struct {
	GUID uuid.UUID
}

// Matches implements archive.Bookmark. The empty cursor matches no item, not
// even one whose ID is the nil GUID.
func (c Cursor) Matches(item feed.Item) (bool, error) {
	guid, err := ExtractGUID(item)
	if err != nil {
		return false, err
	}
	return !c.Empty() && guid == c.GUID, nil
}

// Empty implements archive.Cursor.
func (c Cursor) Empty() bool {
	return c.GUID == uuid.Nil
}

// String implements archive.Cursor.
func (c Cursor) String() string {
	return c.GUID.String()
}

// StoreFunc persists a new cursor value.
type StoreFunc func(cursor uuid.UUID) error

// ReadAndProcess returns an iterator over every item recorded after
// lastCursor in the archive reachable from initialURL. uuid.Nil replays the
// whole archive.
//
// storeNewCursor is invoked exactly once, after the iterator has walked to the
// head of the archive without error. It receives the GUID of the last item
// seen, or lastCursor if the archive held no items. It is never invoked if the
// walk fails, so a failed read leaves the persisted cursor untouched. If the
// forward walk never passes a non-empty lastCursor, Error returns
// ErrBookmarkNotReplayed and nothing is stored.
func ReadAndProcess[T any](ctx context.Context, f feed.Fetcher, initialURL string, lastCursor uuid.UUID, project archive.ProjectFunc[T], storeNewCursor StoreFunc) (*Iterator[T], error) {
	replay, err := archive.ReadAndProcess(ctx, f, initialURL, Cursor{GUID: lastCursor}, project)
	if err != nil {
		var notMatched *archive.BookmarkNotMatchedError
		if errors.As(err, &notMatched) {
			return nil, &BookmarkNotMatchedError{Cursor: lastCursor, URL: notMatched.URL}
		}
		return nil, err
	}

	return &Iterator[T]{
		replay:     replay,
		lastCursor: lastCursor,
		store:      storeNewCursor,
	}, nil
}

// Iterator yields the projected items that follow a GUID cursor.
type Iterator[T any] struct {
	replay     *archive.Replay[T]
	lastCursor uuid.UUID
	store      StoreFunc

	newCursor uuid.UUID
	stored    bool
	lastErr   error
}

// Next advances the iterator. When the head of the archive is reached the new
// cursor is computed and handed to the store callback.
func (it *Iterator[T]) Next() bool {
	if it.lastErr != nil {
		return false
	}
	if it.replay.Next() {
		return true
	}
	if it.replay.Error() != nil || !it.replay.Done() || it.stored {
		return false
	}

	if it.lastCursor != uuid.Nil && !it.replay.Emitting() {
		it.lastErr = fmt.Errorf("cursor %s at %q: %w", it.lastCursor, it.replay.PageURL(), ErrBookmarkNotReplayed)
		return false
	}

	it.stored = true
	it.newCursor = it.lastCursor
	if last := it.replay.LastItem(); last != nil {
		if it.newCursor, it.lastErr = ExtractGUID(*last); it.lastErr != nil {
			it.newCursor = it.lastCursor
			return false
		}
	}

	if it.store != nil {
		if err := it.store(it.newCursor); err != nil {
			it.lastErr = fmt.Errorf("store cursor %s: %w", it.newCursor, err)
		}
	}
	return false
}

// Value returns the value produced for the current item.
func (it *Iterator[T]) Value() T {
	return it.replay.Value()
}

// Error returns the last error encountered by the iterator.
func (it *Iterator[T]) Error() error {
	if it.lastErr != nil {
		return it.lastErr
	}
	return it.replay.Error()
}

// Close stops the walk without storing a new cursor.
func (it *Iterator[T]) Close() error {
	return it.replay.Close()
}

// Cursor returns the cursor handed to the store callback. It is only
// meaningful once Next has returned false and Error returns nil.
func (it *Iterator[T]) Cursor() uuid.UUID {
	if !it.stored {
		return it.lastCursor
	}
	return it.newCursor
}
