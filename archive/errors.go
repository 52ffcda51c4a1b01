package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyArchivePage is matched by errors.Is for every
	// *EmptyArchivePageError.
	ErrEmptyArchivePage = errors.New("empty archive page")

	// ErrBookmarkNotMatched is matched by errors.Is for every
	// *BookmarkNotMatchedError.
	ErrBookmarkNotMatched = errors.New("bookmark not matched")
)

// EmptyArchivePageError is returned when a page that advertises a further
// archive link in the walk direction contains no items. Non-terminal pages of
// an append-only archive are never empty, so this indicates a provider-side
// integrity problem.
type EmptyArchivePageError struct {
	// URL is the target of the outbound link advertised by the empty page:
	// the prev-archive target for backward walks and the next-archive
	// target for forward walks.
	URL string

	// PageURL is the URL of the empty page itself.
	PageURL string

	// Rel is the relation of the outbound link.
	Rel string
}

// Error implements the error interface.
func (e *EmptyArchivePageError) Error() string {
	return fmt.Sprintf("empty archive page %q advertises %s link to %q", e.PageURL, e.Rel, e.URL)
}

// Is reports whether target is ErrEmptyArchivePage.
func (e *EmptyArchivePageError) Is(target error) bool {
	return target == ErrEmptyArchivePage
}

// BookmarkNotMatchedError is returned when a backward walk reaches the oldest
// archive page without finding the item identified by a non-empty cursor.
type BookmarkNotMatchedError struct {
	// Cursor is the string form of the cursor that could not be located.
	Cursor string

	// URL is the oldest page that was reached.
	URL string
}

// Error implements the error interface.
func (e *BookmarkNotMatchedError) Error() string {
	return fmt.Sprintf("bookmark %s not found in archive (oldest page %q)", e.Cursor, e.URL)
}

// Is reports whether target is ErrBookmarkNotMatched.
func (e *BookmarkNotMatchedError) Is(target error) bool {
	return target == ErrBookmarkNotMatched
}
