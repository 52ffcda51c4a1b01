// Package index defines the searchable catalogue of ingested feed items.
package index

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by the indexer when attempting to look up
	// a document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingItemID is returned when attempting to index a document
	// that does not specify a valid item ID.
	ErrMissingItemID = errors.New("document does not provide a valid item ID")
)

// Document describes a feed item that has been indexed.
type Document struct {
	// The GUID of the feed item.
	ItemID uuid.UUID

	// The feed the item was ingested from.
	FeedID string

	// The item's alternate link.
	URL string

	Title   string
	Content string

	// The time the item was last updated by the feed.
	PublishedAt time.Time

	// The time the document was last indexed.
	IndexedAt time.Time
}

// Indexer is implemented by objects that can index and search documents
// ingested from feeds.
type Indexer interface {
	// Index inserts a new document to the index or updates the index entry
	// for an existing document.
	Index(doc *Document) error

	// FindByID looks up a document by its item ID.
	FindByID(itemID uuid.UUID) (*Document, error)

	// Search the index for a particular query and return back a result
	// iterator. Results are ordered by publication time, newest first.
	Search(query Query) (Iterator, error)
}

// Iterator is implemented by objects that can paginate search results.
type Iterator interface {
	// Close the iterator and release any allocated resources.
	Close() error

	// Next loads the next document matching the search query.
	// It returns false if no more documents are available.
	Next() bool

	// Error returns the last error encountered by the iterator.
	Error() error

	// Document returns the current document from the result set.
	Document() *Document

	// TotalCount returns the approximate number of search results.
	TotalCount() uint64
}

// QueryType describes the types of queries supported by the indexer
// implementations.
type QueryType uint8

const (
	// QueryTypeMatch requests the indexer to match each expression term.
	QueryTypeMatch QueryType = iota

	// QueryTypePhrase searches for an exact phrase match.
	QueryTypePhrase
)

// Query encapsulates a set of parameters to use when searching indexed
// documents.
type Query struct {
	// The way that the indexer should interpret the search expression.
	Type QueryType

	// The search expression.
	Expression string

	// The number of search results to skip.
	Offset uint64
}
