package archive

import (
	"context"
	"fmt"

	"github.com/ejacobg/feedcursor/feed"
)

// ProjectFunc maps a feed item to the value yielded by a Replay.
type ProjectFunc[T any] func(item feed.Item) (T, error)

// Replay is a lazy iterator over the items that follow a bookmark. Pages are
// fetched on demand as the consumer advances; no page is requested before the
// previous one has been drained. A Replay cannot be restarted.
type Replay[T any] struct {
	ctx     context.Context
	fetcher feed.Fetcher
	bm      Bookmark
	project ProjectFunc[T]

	// emitting flips to true once the bookmark has been passed.
	emitting bool

	nextURL string
	pageURL string
	items   []feed.Item
	itemIdx int

	lastItem *feed.Item
	latched  T
	lastErr  error
	done     bool
	closed   bool
}

// NewReplay returns an iterator that walks forward from resumeURL through
// next-archive links. If startFromBeginning is false, items are skipped up to
// and including the first one for which bm matches; otherwise every item is
// yielded. Each yielded item is passed through project.
func NewReplay[T any](ctx context.Context, f feed.Fetcher, resumeURL string, startFromBeginning bool, bm Bookmark, project ProjectFunc[T]) *Replay[T] {
	return &Replay[T]{
		ctx:      ctx,
		fetcher:  f,
		bm:       bm,
		project:  project,
		emitting: startFromBeginning,
		nextURL:  resumeURL,
	}
}

// Next advances the iterator. It returns false once the head of the archive
// has been reached or an error occurs.
func (r *Replay[T]) Next() bool {
	for {
		if r.lastErr != nil || r.done || r.closed {
			return false
		}

		// Fetch the next page once the current one has been drained.
		if r.itemIdx >= len(r.items) {
			if r.nextURL == "" {
				r.done = true
				return false
			}
			if r.lastErr = r.fetchNext(); r.lastErr != nil {
				return false
			}
			continue
		}

		item := r.items[r.itemIdx]
		r.itemIdx++
		r.lastItem = &item

		if !r.emitting {
			matched, err := r.bm.Matches(item)
			if err != nil {
				r.lastErr = fmt.Errorf("replay: match item %q: %w", item.ID, err)
				return false
			}
			// The bookmarked item itself was processed by an earlier read.
			if matched {
				r.emitting = true
			}
			continue
		}

		if r.latched, r.lastErr = r.project(item); r.lastErr != nil {
			r.lastErr = fmt.Errorf("replay: project item %q: %w", item.ID, r.lastErr)
			return false
		}
		return true
	}
}

func (r *Replay[T]) fetchNext() error {
	url := r.nextURL
	page, err := r.fetcher.Fetch(r.ctx, url)
	if err != nil {
		return fmt.Errorf("replay: fetch %q: %w", url, err)
	}

	next, hasNext := page.Link(feed.RelNextArchive)
	if hasNext && len(page.Items) == 0 {
		return &EmptyArchivePageError{URL: next, PageURL: url, Rel: feed.RelNextArchive}
	}

	r.pageURL = url
	r.items = page.Items
	r.itemIdx = 0
	r.nextURL = next
	return nil
}

// Value returns the value produced for the current item.
func (r *Replay[T]) Value() T {
	return r.latched
}

// Error returns the last error encountered by the iterator.
func (r *Replay[T]) Error() error {
	return r.lastErr
}

// Close stops the walk. Subsequent calls to Next return false and the replay
// is not reported as done.
func (r *Replay[T]) Close() error {
	r.closed = true
	r.items = nil
	return nil
}

// Done reports whether the walk reached the head of the archive without
// error.
func (r *Replay[T]) Done() bool {
	return r.done
}

// Emitting reports whether the bookmark has been passed, or the replay
// started from the beginning of the archive.
func (r *Replay[T]) Emitting() bool {
	return r.emitting
}

// PageURL returns the URL of the page currently being walked.
func (r *Replay[T]) PageURL() string {
	return r.pageURL
}

// LastItem returns the last item seen across the whole walk, whether or not
// it was yielded. It returns nil if no item has been seen.
func (r *Replay[T]) LastItem() *feed.Item {
	return r.lastItem
}
