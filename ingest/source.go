package ingest

import (
	"context"

	"github.com/ejacobg/feedcursor/feed"
	"github.com/ejacobg/feedcursor/guidcursor"
	"github.com/ejacobg/feedcursor/pipeline"
)

// newPayload projects a feed item into a pooled pipeline payload. Items
// without a valid GUID abort the read.
func newPayload(item feed.Item) (*itemPayload, error) {
	id, err := guidcursor.ExtractGUID(item)
	if err != nil {
		return nil, err
	}

	p := payloadPool.Get().(*itemPayload)
	p.ItemID = id
	p.URL = item.Link
	p.RawTitle = item.Title
	p.RawContent = item.Content
	if p.RawContent == "" {
		p.RawContent = item.Summary
	}
	p.PublishedAt = item.Updated
	return p, nil
}

type itemSource struct {
	it *guidcursor.Iterator[*itemPayload]

	// The number of payloads handed to the pipeline.
	yielded int
}

func (s *itemSource) Error() error              { return s.it.Error() }
func (s *itemSource) Payload() pipeline.Payload { return s.it.Value() }

func (s *itemSource) Next(context.Context) bool {
	if !s.it.Next() {
		return false
	}
	s.yielded++
	return true
}

type countingSink struct {
	count int
}

func (s *countingSink) Consume(context.Context, pipeline.Payload) error {
	s.count++
	return nil
}
