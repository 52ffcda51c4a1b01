// Package elasticsearch provides an index.Indexer backed by an Elasticsearch
// cluster.
package elasticsearch

import (
	"fmt"
	"time"
)

// The name of the elasticsearch index to use.
const indexName = "feeditems"

// The size of each page of results that is cached locally by the iterator.
const batchSize = 10

var mappings = `
{
  "mappings" : {
    "properties": {
      "ItemID": {"type": "keyword"},
      "FeedID": {"type": "keyword"},
      "URL": {"type": "keyword"},
      "Content": {"type": "text"},
      "Title": {"type": "text"},
      "PublishedAt": {"type": "date"},
      "IndexedAt": {"type": "date"}
    }
  }
}`

type searchResult struct {
	Hits searchResultHits `json:"hits"`
}

type searchResultHits struct {
	Total   total        `json:"total"`
	HitList []hitWrapper `json:"hits"`
}

type total struct {
	Count uint64 `json:"value"`
}

type hitWrapper struct {
	DocSource document `json:"_source"`
}

type document struct {
	ItemID      string    `json:"ItemID"`
	FeedID      string    `json:"FeedID"`
	URL         string    `json:"URL"`
	Title       string    `json:"Title"`
	Content     string    `json:"Content"`
	PublishedAt time.Time `json:"PublishedAt"`
	IndexedAt   time.Time `json:"IndexedAt"`
}

type updateResult struct {
	Result string `json:"result"`
}

type errorResult struct {
	Error esError `json:"error"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}
