package elasticsearch

import (
	"github.com/ejacobg/feedcursor/index"
	"github.com/elastic/go-elasticsearch/v8"
)

// iterator implements index.Iterator, paging through search results one
// batch at a time. It works like the bleve iterator, except that each hit
// already carries the full item document in its _source.
type iterator struct {
	es *elasticsearch.Client

	// searchReq is the original query body. Its "from" key is advanced to
	// fetch the following batch.
	searchReq map[string]interface{}

	cumIdx uint64 // position across the whole result set
	rsIdx  int    // position within the current batch
	rs     *searchResult

	latchedDoc *index.Document
	lastErr    error
}

// Close the iterator and release any allocated resources.
func (it *iterator) Close() error {
	it.es = nil
	it.searchReq = nil
	it.cumIdx = it.rs.Hits.Total.Count
	return nil
}

// Next loads the next item document matching the search query.
// It returns false if no more documents are available.
func (it *iterator) Next() bool {
	if it.lastErr != nil || it.rs == nil || it.cumIdx >= it.rs.Hits.Total.Count {
		return false
	}

	// The current batch is drained; request the next one.
	if it.rsIdx >= len(it.rs.Hits.HitList) {
		it.searchReq["from"] = it.searchReq["from"].(uint64) + batchSize
		if it.rs, it.lastErr = runSearch(it.es, it.searchReq); it.lastErr != nil {
			return false
		}

		// The total is approximate, so a later batch may come back empty.
		if len(it.rs.Hits.HitList) == 0 {
			return false
		}
		it.rsIdx = 0
	}

	it.latchedDoc = mapDoc(&it.rs.Hits.HitList[it.rsIdx].DocSource)
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
	return it.rs.Hits.Total.Count
}
