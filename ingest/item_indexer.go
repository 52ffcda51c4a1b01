package ingest

import (
	"context"

	"github.com/ejacobg/feedcursor/index"
	"github.com/ejacobg/feedcursor/pipeline"
)

// Indexer is implemented by objects that can index the items ingested from
// a feed.
type Indexer interface {
	// Index inserts a new document to the index or updates the index entry
	// for an existing document.
	Index(doc *index.Document) error
}

type itemIndexer struct {
	feedID  string
	indexer Indexer
}

func newItemIndexer(feedID string, indexer Indexer) *itemIndexer {
	return &itemIndexer{
		feedID:  feedID,
		indexer: indexer,
	}
}

func (i *itemIndexer) Process(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*itemPayload)

	doc := &index.Document{
		ItemID:      payload.ItemID,
		FeedID:      i.feedID,
		URL:         payload.URL,
		Title:       payload.Title,
		Content:     payload.TextContent,
		PublishedAt: payload.PublishedAt,
	}
	if err := i.indexer.Index(doc); err != nil {
		return nil, err
	}

	return p, nil
}
