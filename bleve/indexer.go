// Package bleve provides an in-memory index.Indexer backed by bleve.
package bleve

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ejacobg/feedcursor/index"
	"github.com/google/uuid"
)

// The size of each page of results that is cached locally by the iterator.
const batchSize = 10

// Compile-time check to ensure Indexer implements index.Indexer.
var _ index.Indexer = (*Indexer)(nil)

// document is the subset of index.Document stored in bleve.
type document struct {
	Title   string
	Content string

	// Published holds the publication time as Unix seconds so that results
	// can be sorted numerically.
	Published float64
}

// Indexer is an index.Indexer implementation that uses an in-memory
// bleve instance to catalogue and search documents.
type Indexer struct {
	mu sync.RWMutex

	// docs maps an item ID to the document it represents.
	// Documents in this map are considered immutable.
	docs map[string]*index.Document

	idx bleve.Index
}

// NewIndexer creates a text indexer that uses an in-memory
// bleve instance for indexing documents.
func NewIndexer() (*Indexer, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}

	return &Indexer{
		idx:  idx,
		docs: make(map[string]*index.Document),
	}, nil
}

// Close the indexer and release any allocated resources.
func (i *Indexer) Close() error {
	return i.idx.Close()
}

// Index inserts a new document to the index or updates the index entry
// for an existing document.
func (i *Indexer) Index(doc *index.Document) error {
	if doc.ItemID == uuid.Nil {
		return fmt.Errorf("index: %w", index.ErrMissingItemID)
	}

	doc.IndexedAt = time.Now()

	// Keep a private copy so that the caller cannot mutate indexed
	// documents.
	dcopy := copyDoc(doc)
	key := dcopy.ItemID.String()

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.idx.Index(key, makeDoc(dcopy)); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	i.docs[key] = dcopy
	return nil
}

// FindByID looks up a document by its item ID.
func (i *Indexer) FindByID(itemID uuid.UUID) (*index.Document, error) {
	return i.findByID(itemID.String())
}

func (i *Indexer) findByID(itemID string) (*index.Document, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if d, found := i.docs[itemID]; found {
		return copyDoc(d), nil
	}

	return nil, fmt.Errorf("find by ID: %w", index.ErrNotFound)
}

// Search the index for a particular query and return back a result
// iterator.
func (i *Indexer) Search(q index.Query) (index.Iterator, error) {
	var bq query.Query
	switch q.Type {
	case index.QueryTypePhrase:
		bq = bleve.NewMatchPhraseQuery(q.Expression)
	default:
		bq = bleve.NewMatchQuery(q.Expression)
	}

	searchReq := bleve.NewSearchRequest(bq)
	searchReq.SortBy([]string{"-Published", "-_score"})
	searchReq.Size = batchSize
	searchReq.From = int(q.Offset)
	rs, err := i.idx.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return &iterator{idx: i, searchReq: searchReq, rs: rs, cumIdx: q.Offset}, nil
}

func copyDoc(d *index.Document) *index.Document {
	dcopy := new(index.Document)
	*dcopy = *d
	return dcopy
}

func makeDoc(d *index.Document) document {
	return document{
		Title:     d.Title,
		Content:   d.Content,
		Published: float64(d.PublishedAt.Unix()),
	}
}
