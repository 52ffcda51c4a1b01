package bleve

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/ejacobg/feedcursor/index"
)

// iterator implements index.Iterator. Search results are fetched from bleve
// one batch of batchSize hits at a time, newest item first.
type iterator struct {
	// idx is the indexer that owns the stored item documents. Hits only
	// carry the item ID, so every document is looked up there.
	idx *Indexer

	// searchReq is the original request. Its From field is advanced to
	// fetch the following batch.
	searchReq *bleve.SearchRequest

	cumIdx uint64 // position across the whole result set
	rsIdx  int    // position within the current batch
	rs     *bleve.SearchResult

	latchedDoc *index.Document
	lastErr    error
}

// Close the iterator and release any allocated resources.
func (it *iterator) Close() error {
	it.idx = nil
	it.searchReq = nil
	if it.rs != nil {
		it.cumIdx = it.rs.Total
	}
	return nil
}

// Next loads the next item document matching the search query.
// It returns false if no more documents are available.
func (it *iterator) Next() bool {
	if it.lastErr != nil || it.rs == nil || it.cumIdx >= it.rs.Total {
		return false
	}

	// The current batch is drained; request the next one.
	if it.rsIdx >= it.rs.Hits.Len() {
		it.searchReq.From += it.searchReq.Size
		if it.rs, it.lastErr = it.idx.idx.Search(it.searchReq); it.lastErr != nil {
			return false
		}

		// Items indexed or replaced since the first batch can shrink the
		// result set under us.
		if it.rs.Hits.Len() == 0 {
			return false
		}
		it.rsIdx = 0
	}

	// findByID returns a copy, so callers cannot mutate the indexed item.
	nextID := it.rs.Hits[it.rsIdx].ID
	if it.latchedDoc, it.lastErr = it.idx.findByID(nextID); it.lastErr != nil {
		return false
	}

	it.cumIdx++
	it.rsIdx++
	return true
}

// Error returns the last error encountered by the iterator.
func (it *iterator) Error() error {
	return it.lastErr
}

// Document returns the current item document from the result set.
func (it *iterator) Document() *index.Document {
	return it.latchedDoc
}

// TotalCount returns the approximate number of search results.
func (it *iterator) TotalCount() uint64 {
	if it.rs == nil {
		return 0
	}
	return it.rs.Total
}
