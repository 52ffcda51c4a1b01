// Package inmem provides in-memory implementations of the feed archive and
// checkpoint store.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ejacobg/feedcursor/feed"
)

// Compile-time check for ensuring Archive implements feed.Fetcher.
var _ feed.Fetcher = (*Archive)(nil)

var (
	// ErrPageNotFound is returned when fetching a URL that the archive
	// does not serve.
	ErrPageNotFound = errors.New("page not found")

	// ErrDuplicateItem is returned when appending an item whose ID is
	// already present in the archive.
	ErrDuplicateItem = errors.New("duplicate item id")
)

// Archive is an append-only, paginated feed archive that can be concurrently
// accessed by multiple clients.
//
// Items are split into pages of a fixed size. The newest page is the head
// document served at the base URL; every older page is an archive document
// served at "<base>/archive/<n>", numbered from zero. Pages are linked with
// prev-archive and next-archive relations.
//
// The base URL is not a stable page: once the head page fills up, an Append
// moves its items to a new archive page. A reader that located a cursor on
// the head page before such an Append will not find it there again
// (see guidcursor.ErrBookmarkNotReplayed).
type Archive struct {
	mu sync.RWMutex

	baseURL  string
	pageSize int

	items []feed.Item

	// Item IDs are expected to be unique. Use this to check for uniqueness.
	itemIDs map[string]struct{}

	// Pages below this index have been pruned and are no longer served.
	firstPage int
}

// NewArchive creates an empty archive served at baseURL.
func NewArchive(baseURL string, pageSize int) *Archive {
	if pageSize <= 0 {
		panic("NewArchive: pageSize must be > 0")
	}

	return &Archive{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: pageSize,
		itemIDs:  make(map[string]struct{}),
	}
}

// HeadURL returns the URL of the newest page.
func (a *Archive) HeadURL() string {
	return a.baseURL
}

// PageURL returns the archive URL for page n.
func (a *Archive) PageURL(n int) string {
	return fmt.Sprintf("%s/archive/%d", a.baseURL, n)
}

// Append adds items to the head of the archive. Either all items are appended
// or none are.
func (a *Archive) Append(items ...feed.Item) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, exists := a.itemIDs[item.ID]; exists {
			return fmt.Errorf("append %q: %w", item.ID, ErrDuplicateItem)
		}
		if _, exists := batch[item.ID]; exists {
			return fmt.Errorf("append %q: %w", item.ID, ErrDuplicateItem)
		}
		batch[item.ID] = struct{}{}
	}

	for _, item := range items {
		a.itemIDs[item.ID] = struct{}{}
		a.items = append(a.items, item)
	}
	return nil
}

// Prune stops serving the oldest pages so that page n becomes the oldest one.
// The head page is never pruned.
func (a *Archive) Prune(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if last := a.numPages() - 1; n > last {
		n = last
	}
	if n > a.firstPage {
		a.firstPage = n
	}
}

// Fetch implements feed.Fetcher.
func (a *Archive) Fetch(ctx context.Context, url string) (*feed.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	head := a.numPages() - 1
	n, err := a.pageIndex(url, head)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", url, err)
	}

	p := &feed.Page{URL: url}

	// Copy the page items so that future appends do not race with the
	// caller.
	from, to := n*a.pageSize, (n+1)*a.pageSize
	if to > len(a.items) {
		to = len(a.items)
	}
	if from < to {
		p.Items = append([]feed.Item(nil), a.items[from:to]...)
	}

	p.Links = append(p.Links, feed.Link{Rel: feed.RelSelf, Href: url})
	if n > a.firstPage {
		p.Links = append(p.Links, feed.Link{Rel: feed.RelPrevArchive, Href: a.urlFor(n-1, head)})
	}
	if n < head {
		p.Links = append(p.Links, feed.Link{Rel: feed.RelNextArchive, Href: a.urlFor(n+1, head)})
	}
	return p, nil
}

// numPages returns the number of pages including the head, which always
// exists even when the archive holds no items.
func (a *Archive) numPages() int {
	if len(a.items) == 0 {
		return 1
	}
	return (len(a.items) + a.pageSize - 1) / a.pageSize
}

func (a *Archive) urlFor(n, head int) string {
	if n == head {
		return a.baseURL
	}
	return a.PageURL(n)
}

func (a *Archive) pageIndex(url string, head int) (int, error) {
	if url == a.baseURL {
		return head, nil
	}

	prefix := a.baseURL + "/archive/"
	if !strings.HasPrefix(url, prefix) {
		return 0, ErrPageNotFound
	}

	n, err := strconv.Atoi(strings.TrimPrefix(url, prefix))
	if err != nil || n < a.firstPage || n >= head {
		return 0, ErrPageNotFound
	}
	return n, nil
}
