package archive_test

import (
	"context"
	"errors"

	"github.com/ejacobg/feedcursor/archive"
	"github.com/ejacobg/feedcursor/feed"
	"github.com/ejacobg/feedcursor/feed/feedtest"
	"github.com/ejacobg/feedcursor/feed/mocks"
	"github.com/golang/mock/gomock"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(LocateTestSuite))

type LocateTestSuite struct{}

func (s *LocateTestSuite) TestMatchOnHeadPage(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(&feed.Page{
		URL:   "http://example.com/feed",
		Items: feedtest.Items("a", "b", "c"),
		Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/feed/1"}},
	}, nil)

	loc, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", idCursor("b"))
	c.Assert(err, gc.IsNil)
	c.Assert(loc.Matched, gc.Equals, true)
	c.Assert(loc.URL, gc.Equals, "http://example.com/feed")
	c.Assert(loc.LastItem.ID, gc.Equals, "b")
}

func (s *LocateTestSuite) TestWalksPrevArchiveLinks(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/2").Return(&feed.Page{
			Items: feedtest.Items("e", "f"),
			Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/1"}},
		}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/1").Return(&feed.Page{
			Items: feedtest.Items("c", "d"),
			Links: []feed.Link{
				{Rel: feed.RelPrevArchive, Href: "http://example.com/0"},
				{Rel: feed.RelNextArchive, Href: "http://example.com/2"},
			},
		}, nil),
	)

	loc, err := archive.Locate(context.TODO(), fetcher, "http://example.com/2", idCursor("c"))
	c.Assert(err, gc.IsNil)
	c.Assert(loc.Matched, gc.Equals, true)
	c.Assert(loc.URL, gc.Equals, "http://example.com/1")
}

func (s *LocateTestSuite) TestExhaustedArchive(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/1").Return(&feed.Page{
			Items: feedtest.Items("c", "d"),
			Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/0"}},
		}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/0").Return(&feed.Page{
			Items: feedtest.Items("a", "b"),
			Links: []feed.Link{{Rel: feed.RelNextArchive, Href: "http://example.com/1"}},
		}, nil),
	)

	loc, err := archive.Locate(context.TODO(), fetcher, "http://example.com/1", idCursor("zz"))
	c.Assert(err, gc.IsNil)
	c.Assert(loc.Exhausted(), gc.Equals, true)
	c.Assert(loc.URL, gc.Equals, "http://example.com/0")
	c.Assert(loc.LastItem, gc.NotNil)
	c.Assert(loc.LastItem.ID, gc.Equals, "b")
}

func (s *LocateTestSuite) TestSinglePageWithoutMatchIsExhausted(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(&feed.Page{
		Items: feedtest.Items("a"),
	}, nil)

	loc, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", idCursor("zz"))
	c.Assert(err, gc.IsNil)
	c.Assert(loc.Exhausted(), gc.Equals, true)
	c.Assert(loc.URL, gc.Equals, "http://example.com/feed")
}

func (s *LocateTestSuite) TestEmptyOldestPageIsNotAnError(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(&feed.Page{}, nil)

	loc, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", idCursor(""))
	c.Assert(err, gc.IsNil)
	c.Assert(loc.Exhausted(), gc.Equals, true)
	c.Assert(loc.LastItem, gc.IsNil)
}

func (s *LocateTestSuite) TestEmptyIntermediatePage(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/2").Return(&feed.Page{
			Items: feedtest.Items("e"),
			Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/1"}},
		}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/1").Return(&feed.Page{
			Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/0"}},
		}, nil),
	)

	_, err := archive.Locate(context.TODO(), fetcher, "http://example.com/2", idCursor("a"))
	c.Assert(errors.Is(err, archive.ErrEmptyArchivePage), gc.Equals, true)

	var emptyErr *archive.EmptyArchivePageError
	c.Assert(errors.As(err, &emptyErr), gc.Equals, true)
	c.Assert(emptyErr.URL, gc.Equals, "http://example.com/0")
	c.Assert(emptyErr.PageURL, gc.Equals, "http://example.com/1")
	c.Assert(emptyErr.Rel, gc.Equals, feed.RelPrevArchive)
}

func (s *LocateTestSuite) TestEmptyInitialPageWithPrevArchiveLink(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(&feed.Page{
		Links: []feed.Link{{Rel: feed.RelPrevArchive, Href: "http://example.com/0"}},
	}, nil)

	// Even a cold start treats this as fatal.
	_, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", idCursor(""))
	c.Assert(errors.Is(err, archive.ErrEmptyArchivePage), gc.Equals, true)
}

func (s *LocateTestSuite) TestFetcherErrorPropagates(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetchErr := errors.New("connection reset")
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(nil, fetchErr)

	_, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", idCursor("a"))
	c.Assert(errors.Is(err, fetchErr), gc.Equals, true)
}

func (s *LocateTestSuite) TestBookmarkErrorPropagates(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://example.com/feed").Return(&feed.Page{
		Items: feedtest.Items("a"),
	}, nil)

	matchErr := errors.New("bad id")
	bm := archive.BookmarkFunc(func(feed.Item) (bool, error) { return false, matchErr })
	_, err := archive.Locate(context.TODO(), fetcher, "http://example.com/feed", bm)
	c.Assert(errors.Is(err, matchErr), gc.Equals, true)
}

func (s *LocateTestSuite) TestFetchCountIsBoundedByBookmarkDistance(c *gc.C) {
	var pages [][]feed.Item
	for i := 0; i < 10; i++ {
		pages = append(pages, feedtest.Items(string(rune('a'+2*i)), string(rune('a'+2*i+1))))
	}
	static, urls := feedtest.BuildArchive("http://example.com/archive", pages...)
	head := urls[len(urls)-1]

	for k := 0; k < len(pages); k++ {
		rec := &feedtest.Recorder{Fetcher: static}
		bookmark := pages[k][1].ID

		loc, err := archive.Locate(context.TODO(), rec, head, idCursor(bookmark))
		c.Assert(err, gc.IsNil)
		c.Assert(loc.URL, gc.Equals, urls[k])
		c.Assert(rec.Fetched(), gc.HasLen, len(pages)-k, gc.Commentf("bookmark on page %d", k))
	}
}
