// Package archive implements resumable ingestion of RFC 5005 archived feeds.
//
// A read happens in two passes. Locate walks backward through prev-archive
// links until it finds the page holding the caller's bookmark. Replay then
// walks forward through next-archive links from that page and lazily yields
// every item strictly after the bookmark.
package archive

import "github.com/ejacobg/feedcursor/feed"

// Bookmark decides whether an item is the last one a consumer has already
// processed. The same Bookmark must be used for the Locate and Replay passes
// of a single read.
type Bookmark interface {
	Matches(item feed.Item) (bool, error)
}

// BookmarkFunc is an adapter to allow the use of plain functions as
// Bookmarks.
type BookmarkFunc func(item feed.Item) (bool, error)

// Matches calls f(item).
func (f BookmarkFunc) Matches(item feed.Item) (bool, error) {
	return f(item)
}

// Cursor is a Bookmark backed by a durable value that the caller persists
// between reads.
type Cursor interface {
	Bookmark

	// Empty reports whether the cursor carries no prior state, in which
	// case the whole archive is replayed from its oldest page.
	Empty() bool

	// String returns a printable form of the cursor.
	String() string
}
