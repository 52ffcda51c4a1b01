package ingest

import (
	"context"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/ejacobg/feedcursor/pipeline"
	"github.com/microcosm-cc/bluemonday"
)

var repeatedSpaceRegex = regexp.MustCompile(`\s+`)

type textExtractor struct {
	// bluemonday policies are not thread-safe.
	policyPool sync.Pool
}

func newTextExtractor() *textExtractor {
	return &textExtractor{
		policyPool: sync.Pool{
			New: func() interface{} {
				return bluemonday.StrictPolicy()
			},
		},
	}
}

func (te *textExtractor) Process(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*itemPayload)
	policy := te.policyPool.Get().(*bluemonday.Policy)
	defer te.policyPool.Put(policy)

	payload.Title = plainText(policy, payload.RawTitle)
	payload.TextContent = plainText(policy, payload.RawContent)
	return payload, nil
}

func plainText(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(repeatedSpaceRegex.ReplaceAllString(
		policy.Sanitize(s), " ",
	)))
}
