// Package feedtest provides in-process archives and fetch recorders for
// exercising code that walks paginated feeds.
package feedtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ejacobg/feedcursor/feed"
)

// ErrPageNotFound is returned by Static when asked for an unknown URL.
var ErrPageNotFound = errors.New("page not found")

// Static is a Fetcher backed by a fixed set of pages keyed by URL.
type Static map[string]*feed.Page

// Fetch implements feed.Fetcher. A copy of the stored page is returned.
func (s Static) Fetch(ctx context.Context, url string) (*feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, ok := s[url]
	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", url, ErrPageNotFound)
	}

	pCopy := &feed.Page{
		URL:   p.URL,
		Items: append([]feed.Item(nil), p.Items...),
		Links: append([]feed.Link(nil), p.Links...),
	}
	return pCopy, nil
}

// BuildArchive links the given pages, ordered oldest first, into an archive
// rooted at base. Page i is served at "<base>/<i>" and carries prev-archive
// and next-archive links to its neighbours. The last page is the head: it has
// no next-archive link. It returns the archive and the page URLs in the same
// order as pages.
func BuildArchive(base string, pages ...[]feed.Item) (Static, []string) {
	urls := make([]string, len(pages))
	for i := range pages {
		urls[i] = fmt.Sprintf("%s/%d", base, i)
	}

	archive := make(Static, len(pages))
	for i, items := range pages {
		p := &feed.Page{
			URL:   urls[i],
			Items: append([]feed.Item(nil), items...),
			Links: []feed.Link{{Rel: feed.RelSelf, Href: urls[i]}},
		}
		if i > 0 {
			p.Links = append(p.Links, feed.Link{Rel: feed.RelPrevArchive, Href: urls[i-1]})
		}
		if i < len(pages)-1 {
			p.Links = append(p.Links, feed.Link{Rel: feed.RelNextArchive, Href: urls[i+1]})
		}
		archive[urls[i]] = p
	}

	return archive, urls
}

// Items returns a page worth of items with the given IDs.
func Items(ids ...string) []feed.Item {
	items := make([]feed.Item, len(ids))
	for i, id := range ids {
		items[i] = feed.Item{ID: id, Title: "item " + id}
	}
	return items
}

// IDs returns the IDs of the given items.
func IDs(items []feed.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Recorder wraps a Fetcher and records every URL it is asked to fetch.
type Recorder struct {
	Fetcher feed.Fetcher

	mu      sync.Mutex
	fetched []string
}

// Fetch implements feed.Fetcher.
func (r *Recorder) Fetch(ctx context.Context, url string) (*feed.Page, error) {
	r.mu.Lock()
	r.fetched = append(r.fetched, url)
	r.mu.Unlock()
	return r.Fetcher.Fetch(ctx, url)
}

// Fetched returns the URLs requested so far, in request order.
func (r *Recorder) Fetched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fetched...)
}

// Reset clears the recorded URLs.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.fetched = nil
	r.mu.Unlock()
}
