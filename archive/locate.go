package archive

import (
	"context"
	"fmt"

	"github.com/ejacobg/feedcursor/feed"
)

// Location is the outcome of a backward walk.
type Location struct {
	// URL is the page where the forward walk should start. When Matched is
	// set it is the page containing the bookmark; otherwise it is the
	// oldest page of the archive.
	URL string

	// Matched reports whether the bookmark was found.
	Matched bool

	// LastItem is the last item scanned before the walk stopped, or nil if
	// every page visited was empty.
	LastItem *feed.Item
}

// Exhausted reports whether the walk reached the oldest page without finding
// the bookmark.
func (l Location) Exhausted() bool {
	return !l.Matched
}

// Locate walks backward from initialURL through prev-archive links and
// returns the page containing the first item for which bm matches. Items are
// scanned in page order and the walk stops at the first match.
//
// A page without items that advertises a prev-archive link yields an
// *EmptyArchivePageError. Fetcher errors are returned wrapped and are never
// retried.
func Locate(ctx context.Context, f feed.Fetcher, initialURL string, bm Bookmark) (Location, error) {
	var (
		url      = initialURL
		lastItem *feed.Item
	)

	for {
		page, err := f.Fetch(ctx, url)
		if err != nil {
			return Location{}, fmt.Errorf("locate: fetch %q: %w", url, err)
		}

		for i := range page.Items {
			item := page.Items[i]
			lastItem = &item

			matched, err := bm.Matches(item)
			if err != nil {
				return Location{}, fmt.Errorf("locate: match item %q: %w", item.ID, err)
			}
			if matched {
				return Location{URL: url, Matched: true, LastItem: lastItem}, nil
			}
		}

		prev, ok := page.Link(feed.RelPrevArchive)
		if !ok {
			return Location{URL: url, LastItem: lastItem}, nil
		}

		if len(page.Items) == 0 {
			return Location{}, &EmptyArchivePageError{URL: prev, PageURL: url, Rel: feed.RelPrevArchive}
		}

		url = prev
	}
}
