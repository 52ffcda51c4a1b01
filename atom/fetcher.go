// Package atom retrieves paged Atom feed documents over HTTP.
package atom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ejacobg/feedcursor/feed"
	atomxml "github.com/mmcdole/gofeed/atom"
)

// Compile-time check for ensuring Fetcher implements feed.Fetcher.
var _ feed.Fetcher = (*Fetcher)(nil)

// URLGetter is implemented by objects that can perform HTTP requests.
// http.DefaultClient satisfies it.
type URLGetter interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when a feed page is served with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %q: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetcher retrieves Atom documents and converts them into feed pages.
type Fetcher struct {
	urlGetter URLGetter
}

// NewFetcher returns a Fetcher that issues its requests through urlGetter.
func NewFetcher(urlGetter URLGetter) *Fetcher {
	return &Fetcher{urlGetter: urlGetter}
}

// Fetch implements feed.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*feed.Page, error) {
	relTo, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9")

	res, err := f.urlGetter.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, StatusCode: res.StatusCode}
	}

	doc, err := new(atomxml.Parser).Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", pageURL, err)
	}

	return makePage(pageURL, relTo, doc), nil
}

func makePage(pageURL string, relTo *url.URL, doc *atomxml.Feed) *feed.Page {
	page := &feed.Page{
		URL:   pageURL,
		Items: make([]feed.Item, 0, len(doc.Entries)),
		Links: makeLinks(relTo, doc.Links),
	}

	for _, entry := range doc.Entries {
		if entry == nil {
			continue
		}

		item := feed.Item{
			ID:      strings.TrimSpace(entry.ID),
			Title:   entry.Title,
			Summary: entry.Summary,
		}
		if entry.Content != nil {
			item.Content = entry.Content.Value
		}
		if entry.UpdatedParsed != nil {
			item.Updated = entry.UpdatedParsed.UTC()
		} else if entry.PublishedParsed != nil {
			item.Updated = entry.PublishedParsed.UTC()
		}
		for _, l := range makeLinks(relTo, entry.Links) {
			if l.Rel == feed.RelAlternate {
				item.Link = l.Href
				break
			}
		}
		page.Items = append(page.Items, item)
	}

	return page
}

// makeLinks converts Atom links into feed links with absolute hrefs. A link
// without a rel attribute is an alternate link. Links whose href cannot be
// resolved are dropped.
func makeLinks(relTo *url.URL, links []*atomxml.Link) []feed.Link {
	out := make([]feed.Link, 0, len(links))
	for _, l := range links {
		if l == nil {
			continue
		}

		href := resolveURL(relTo, strings.TrimSpace(l.Href))
		if href == nil {
			continue
		}

		rel := strings.TrimSpace(l.Rel)
		if rel == "" {
			rel = feed.RelAlternate
		}
		out = append(out, feed.Link{Rel: rel, Href: href.String()})
	}
	return out
}

// resolveURL expands target into an absolute URL using the following rules:
//   - targets starting with '//' are treated as absolute URLs that inherit the
//     protocol from relTo.
//   - targets starting with '/' are absolute URLs that are appended to the host
//     from relTo.
//   - all other targets are assumed to be relative to relTo.
//
// If the target URL cannot be parsed, a nil URL wil be returned.
func resolveURL(relTo *url.URL, target string) *url.URL {
	if len(target) == 0 {
		return nil
	}

	if strings.HasPrefix(target, "//") {
		target = relTo.Scheme + ":" + target
	}

	if targetURL, err := url.Parse(target); err == nil {
		return relTo.ResolveReference(targetURL)
	}

	return nil
}
