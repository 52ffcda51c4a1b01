package archive

import (
	"context"
	"fmt"

	"github.com/ejacobg/feedcursor/feed"
)

// ReadAndProcess locates cursor c starting at initialURL and returns a Replay
// over every item recorded after it. An empty cursor replays the whole
// archive from its oldest page.
//
// If c is not empty and the backward walk reaches the oldest page without
// finding it, a *BookmarkNotMatchedError is returned and nothing is replayed.
func ReadAndProcess[T any](ctx context.Context, f feed.Fetcher, initialURL string, c Cursor, project ProjectFunc[T]) (*Replay[T], error) {
	loc, err := Locate(ctx, f, initialURL, c)
	if err != nil {
		return nil, err
	}

	if loc.Exhausted() && !c.Empty() {
		return nil, &BookmarkNotMatchedError{Cursor: c.String(), URL: loc.URL}
	}

	return NewReplay(ctx, f, loc.URL, c.Empty(), Bookmark(c), project), nil
}

// Collect drains r and returns the yielded values.
func Collect[T any](r *Replay[T]) ([]T, error) {
	var out []T
	for r.Next() {
		out = append(out, r.Value())
	}
	if err := r.Error(); err != nil {
		return out, fmt.Errorf("collect: %w", err)
	}
	return out, nil
}
