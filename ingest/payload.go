package ingest

import (
	"sync"
	"time"

	"github.com/ejacobg/feedcursor/pipeline"
	"github.com/google/uuid"
)

var (
	_ pipeline.Payload = (*itemPayload)(nil)

	// Payloads are recycled once they leave the pipeline.
	payloadPool = sync.Pool{
		New: func() interface{} { return new(itemPayload) },
	}
)

type itemPayload struct {
	// feed.Item fields populated by the input source.
	ItemID      uuid.UUID
	URL         string
	RawTitle    string
	RawContent  string
	PublishedAt time.Time

	// Title and TextContent are populated by the text extractor.
	Title       string
	TextContent string
}

// Clone implements pipeline.Payload.
func (p *itemPayload) Clone() pipeline.Payload {
	newP := payloadPool.Get().(*itemPayload)
	*newP = *p
	return newP
}

// MarkAsProcessed implements pipeline.Payload.
func (p *itemPayload) MarkAsProcessed() {
	*p = itemPayload{}
	payloadPool.Put(p)
}
