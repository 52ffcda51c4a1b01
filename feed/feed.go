// Package feed describes the pages and items of a paginated, archived Atom
// feed as defined by RFC 5005.
package feed

import (
	"context"
	"time"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/ejacobg/feedcursor/feed Fetcher

// Link relations used to navigate between archive pages.
const (
	// RelPrevArchive points to the chronologically earlier page.
	RelPrevArchive = "prev-archive"

	// RelNextArchive points to the chronologically later page.
	RelNextArchive = "next-archive"

	RelSelf      = "self"
	RelAlternate = "alternate"
)

// Item is a single entry of a feed page.
type Item struct {
	// The entry identifier. For GUID cursors this holds an optionally
	// prefixed GUID such as "uuid:7d444840-9dc0-11d1-b245-5ffdce74fad2".
	ID string

	Title   string
	Summary string

	// Content holds the raw (possibly HTML) entry content.
	Content string

	// Link is the href of the entry's alternate link, if any.
	Link string

	// The timestamp when the entry was last updated.
	Updated time.Time
}

// Link is a navigation link advertised by a page.
type Link struct {
	Rel  string
	Href string
}

// Page is one fetched unit of a paginated feed. Items are ordered oldest to
// newest.
type Page struct {
	// The URL the page was fetched from.
	URL string

	Items []Item
	Links []Link
}

// Link returns the href of the first link with the given relation.
func (p *Page) Link(rel string) (string, bool) {
	for _, l := range p.Links {
		if l.Rel == rel && l.Href != "" {
			return l.Href, true
		}
	}
	return "", false
}

// Fetcher is implemented by objects that can retrieve a feed page.
type Fetcher interface {
	// Fetch retrieves and parses the page at url. Transport and parse
	// errors are returned as-is; Fetch is not expected to retry.
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherFunc is an adapter to allow the use of plain functions as Fetchers.
type FetcherFunc func(ctx context.Context, url string) (*Page, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}
