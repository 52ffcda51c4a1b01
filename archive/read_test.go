package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ejacobg/feedcursor/archive"
	"github.com/ejacobg/feedcursor/feed/feedtest"
	"github.com/google/go-cmp/cmp"
)

func TestReadAndProcess(t *testing.T) {
	specs := []struct {
		descr       string
		cursor      string
		wantItems   []string
		wantFetched []int
	}{
		{
			descr:       "bookmark on middle page",
			cursor:      "C",
			wantItems:   []string{"D", "E", "F"},
			wantFetched: []int{2, 1, 1, 2},
		},
		{
			descr:       "bookmark on head page",
			cursor:      "E",
			wantItems:   []string{"F"},
			wantFetched: []int{2, 2},
		},
		{
			descr:       "bookmark is the newest item",
			cursor:      "F",
			wantItems:   nil,
			wantFetched: []int{2, 2},
		},
		{
			descr:       "cold start",
			cursor:      "",
			wantItems:   []string{"A", "B", "C", "D", "E", "F"},
			wantFetched: []int{2, 1, 0, 0, 1, 2},
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			static, urls := threePageArchive()
			rec := &feedtest.Recorder{Fetcher: static}

			r, err := archive.ReadAndProcess(context.TODO(), rec, urls[2], idCursor(spec.cursor), projectID)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}

			got, err := archive.Collect(r)
			if err != nil {
				t.Fatalf("replay failed: %v", err)
			}
			if diff := cmp.Diff(spec.wantItems, got); diff != "" {
				t.Errorf("replayed items mismatch (-want +got):\n%s", diff)
			}

			var wantFetched []string
			for _, idx := range spec.wantFetched {
				wantFetched = append(wantFetched, urls[idx])
			}
			if diff := cmp.Diff(wantFetched, rec.Fetched()); diff != "" {
				t.Errorf("fetched pages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadAndProcessStaleCursor(t *testing.T) {
	static, urls := threePageArchive()

	r, err := archive.ReadAndProcess(context.TODO(), static, urls[2], idCursor("pruned"), projectID)
	if !errors.Is(err, archive.ErrBookmarkNotMatched) {
		t.Fatalf("unexpected error %v, want %v", err, archive.ErrBookmarkNotMatched)
	}
	if r != nil {
		t.Errorf("expected no replay to be returned")
	}

	var notMatched *archive.BookmarkNotMatchedError
	if !errors.As(err, &notMatched) {
		t.Fatalf("expected a *BookmarkNotMatchedError")
	}
	if notMatched.URL != urls[0] {
		t.Errorf("oldest page = %q, want %q", notMatched.URL, urls[0])
	}
	if notMatched.Cursor != "pruned" {
		t.Errorf("cursor = %q, want %q", notMatched.Cursor, "pruned")
	}
}

func TestReadAndProcessRetryAfterFailure(t *testing.T) {
	static, urls := feedtest.BuildArchive("http://example.com/archive",
		feedtest.Items("A", "B"),
		feedtest.Items("C", "D"),
		nil,
		feedtest.Items("G", "H"),
	)

	// Empty pages with a next-archive link are only reached by the forward
	// walk here since the backward walk stops at the bookmark.
	for attempt := 0; attempt < 2; attempt++ {
		r, err := archive.ReadAndProcess(context.TODO(), static, urls[1], idCursor("B"), projectID)
		if err != nil {
			t.Fatalf("attempt %d: read failed: %v", attempt, err)
		}

		got, err := archive.Collect(r)
		if !errors.Is(err, archive.ErrEmptyArchivePage) {
			t.Fatalf("attempt %d: unexpected error %v, want %v", attempt, err, archive.ErrEmptyArchivePage)
		}
		if diff := cmp.Diff([]string{"C", "D"}, got); diff != "" {
			t.Errorf("attempt %d: replayed items mismatch (-want +got):\n%s", attempt, diff)
		}
	}
}
