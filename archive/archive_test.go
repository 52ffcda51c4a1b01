package archive_test

import (
	"testing"

	"github.com/ejacobg/feedcursor/feed"
	gc "gopkg.in/check.v1"
)

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

// idCursor is an archive.Cursor matching items by their raw ID.
type idCursor string

func (c idCursor) Matches(item feed.Item) (bool, error) { return item.ID == string(c), nil }
func (c idCursor) Empty() bool                          { return c == "" }
func (c idCursor) String() string                       { return string(c) }

func projectID(item feed.Item) (string, error) { return item.ID, nil }
