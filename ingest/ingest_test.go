package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ejacobg/feedcursor/archive"
	"github.com/ejacobg/feedcursor/bleve"
	"github.com/ejacobg/feedcursor/feed"
	"github.com/ejacobg/feedcursor/feed/feedtest"
	"github.com/ejacobg/feedcursor/guidcursor"
	"github.com/ejacobg/feedcursor/index"
	"github.com/ejacobg/feedcursor/inmem"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ServiceTestSuite))

func Test(t *testing.T) { gc.TestingT(t) }

const feedID = "test-feed"

type ServiceTestSuite struct {
	archive *inmem.Archive
	store   *inmem.CheckpointStore
	indexer *bleve.Indexer
	guids   []uuid.UUID
}

func (s *ServiceTestSuite) SetUpTest(c *gc.C) {
	var err error
	s.archive = inmem.NewArchive("http://example.com/feed", 2)
	s.store = inmem.NewCheckpointStore()
	s.indexer, err = bleve.NewIndexer()
	c.Assert(err, gc.IsNil)
	s.guids = nil
}

func (s *ServiceTestSuite) TearDownTest(c *gc.C) {
	c.Assert(s.indexer.Close(), gc.IsNil)
}

// appendItems adds n items to the archive and records their GUIDs.
func (s *ServiceTestSuite) appendItems(c *gc.C, n int) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]feed.Item, n)
	for i := range items {
		id := uuid.New()
		seq := len(s.guids) + i
		items[i] = feed.Item{
			ID:      "urn:uuid:" + id.String(),
			Title:   fmt.Sprintf("<b>Item</b> %d", seq),
			Content: fmt.Sprintf("<p>Body of item %d &amp; more</p>", seq),
			Link:    fmt.Sprintf("http://example.com/items/%d", seq),
			Updated: base.Add(time.Duration(seq) * time.Minute),
		}
		s.guids = append(s.guids, id)
	}
	c.Assert(s.archive.Append(items...), gc.IsNil)
}

func (s *ServiceTestSuite) newService(c *gc.C, fetcher feed.Fetcher, indexer Indexer) *Service {
	svc, err := NewService(ServiceConfig{
		FeedID:       feedID,
		FeedURL:      s.archive.HeadURL(),
		Fetcher:      fetcher,
		Checkpoints:  s.store,
		Indexer:      indexer,
		PollInterval: time.Minute,
	})
	c.Assert(err, gc.IsNil)
	return svc
}

func (s *ServiceTestSuite) cursor(c *gc.C) uuid.UUID {
	cursor, err := s.store.Checkpoint(context.TODO(), feedID)
	c.Assert(err, gc.IsNil)
	return cursor
}

func (s *ServiceTestSuite) TestPollIndexesNewItems(c *gc.C) {
	s.appendItems(c, 5)
	svc := s.newService(c, s.archive, s.indexer)

	count, err := svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 5)
	c.Assert(s.cursor(c), gc.Equals, s.guids[4])

	doc, err := s.indexer.FindByID(s.guids[2])
	c.Assert(err, gc.IsNil)
	c.Assert(doc.FeedID, gc.Equals, feedID)
	c.Assert(doc.Title, gc.Equals, "Item 2")
	c.Assert(doc.Content, gc.Equals, "Body of item 2 & more")
	c.Assert(doc.URL, gc.Equals, "http://example.com/items/2")

	// Nothing new: the cursor stays put.
	count, err = svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 0)
	c.Assert(s.cursor(c), gc.Equals, s.guids[4])

	// Only the items appended since the last poll are delivered.
	s.appendItems(c, 3)
	count, err = svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 3)
	c.Assert(s.cursor(c), gc.Equals, s.guids[7])
}

func (s *ServiceTestSuite) TestPollEmptyFeed(c *gc.C) {
	svc := s.newService(c, s.archive, s.indexer)

	count, err := svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 0)
	c.Assert(s.cursor(c), gc.Equals, uuid.Nil)
}

func (s *ServiceTestSuite) TestPollWithStaleCursor(c *gc.C) {
	s.appendItems(c, 3)
	stale := uuid.New()
	c.Assert(s.store.SetCheckpoint(context.TODO(), feedID, stale), gc.IsNil)
	svc := s.newService(c, s.archive, s.indexer)

	_, err := svc.Poll(context.TODO())
	var notMatched *guidcursor.BookmarkNotMatchedError
	c.Assert(errors.As(err, &notMatched), gc.Equals, true)
	c.Assert(notMatched.Cursor, gc.Equals, stale)
	c.Assert(requiresOperator(err), gc.Equals, true)
	c.Assert(s.cursor(c), gc.Equals, stale)
}

func (s *ServiceTestSuite) TestPollWithEmptyArchivePage(c *gc.C) {
	a := mustGUIDItem(c)
	b := mustGUIDItem(c)
	pages, urls := feedtest.BuildArchive("http://example.com/feed", []feed.Item{a}, nil, []feed.Item{b})
	svc, err := NewService(ServiceConfig{
		FeedID:       feedID,
		FeedURL:      urls[2],
		Fetcher:      pages,
		Checkpoints:  s.store,
		Indexer:      s.indexer,
		PollInterval: time.Minute,
	})
	c.Assert(err, gc.IsNil)

	_, err = svc.Poll(context.TODO())
	var emptyPage *archive.EmptyArchivePageError
	c.Assert(errors.As(err, &emptyPage), gc.Equals, true)
	c.Assert(emptyPage.URL, gc.Equals, urls[0])
	c.Assert(requiresOperator(err), gc.Equals, true)
	c.Assert(s.cursor(c), gc.Equals, uuid.Nil)
}

func (s *ServiceTestSuite) TestIndexerFailureRedeliversOnNextPoll(c *gc.C) {
	s.appendItems(c, 5)
	flaky := &flakyIndexer{Indexer: s.indexer, failAt: 3}

	svc := s.newService(c, s.archive, flaky)
	_, err := svc.Poll(context.TODO())
	c.Assert(err, gc.ErrorMatches, "(?s).*indexer unavailable.*")
	c.Assert(requiresOperator(err), gc.Equals, false)
	c.Assert(s.cursor(c), gc.Equals, uuid.Nil)

	flaky.failAt = 0
	count, err := svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 5)
	c.Assert(s.cursor(c), gc.Equals, s.guids[4])
}

func (s *ServiceTestSuite) TestCancellationMidPipelineLeavesCursor(c *gc.C) {
	s.appendItems(c, 2)
	c.Assert(s.store.SetCheckpoint(context.TODO(), feedID, uuid.Nil), gc.IsNil)

	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()
	cancelling := &cancellingIndexer{Indexer: s.indexer, cancelFn: cancelFn}

	svc := s.newService(c, s.archive, cancelling)
	_, err := svc.Poll(ctx)
	c.Assert(errors.Is(err, context.Canceled), gc.Equals, true, gc.Commentf("got error %v", err))
	c.Assert(s.cursor(c), gc.Equals, uuid.Nil)

	// The next poll delivers both items again.
	count, err := svc.Poll(context.TODO())
	c.Assert(err, gc.IsNil)
	c.Assert(count, gc.Equals, 2)
	c.Assert(s.cursor(c), gc.Equals, s.guids[1])
}

func (s *ServiceTestSuite) TestInvalidItemIDAbortsPoll(c *gc.C) {
	c.Assert(s.archive.Append(feed.Item{ID: "tag:example.com,2024:1"}), gc.IsNil)
	svc := s.newService(c, s.archive, s.indexer)

	_, err := svc.Poll(context.TODO())
	var invalid *guidcursor.InvalidItemIDError
	c.Assert(errors.As(err, &invalid), gc.Equals, true)
	c.Assert(s.cursor(c), gc.Equals, uuid.Nil)
}

func (s *ServiceTestSuite) TestRunPollsOnEveryTick(c *gc.C) {
	s.appendItems(c, 2)
	clk := testclock.NewClock(time.Now())
	svc, err := NewService(ServiceConfig{
		FeedID:       feedID,
		FeedURL:      s.archive.HeadURL(),
		Fetcher:      s.archive,
		Checkpoints:  s.store,
		Indexer:      s.indexer,
		Clock:        clk,
		PollInterval: time.Minute,
	})
	c.Assert(err, gc.IsNil)

	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- svc.Run(ctx) }()

	c.Assert(clk.WaitAdvance(time.Minute, 10*time.Second, 1), gc.IsNil)
	s.waitForCursor(c, s.guids[1])

	s.appendItems(c, 1)
	c.Assert(clk.WaitAdvance(time.Minute, 10*time.Second, 1), gc.IsNil)
	s.waitForCursor(c, s.guids[2])

	cancelFn()
	select {
	case err = <-runErrCh:
		c.Assert(err, gc.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for service to exit")
	}
}

func (s *ServiceTestSuite) waitForCursor(c *gc.C, exp uuid.UUID) {
	deadline := time.Now().Add(10 * time.Second)
	for s.cursor(c) != exp {
		if time.Now().After(deadline) {
			c.Fatalf("timed out waiting for cursor %s", exp)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *ServiceTestSuite) TestConfigValidation(c *gc.C) {
	_, err := NewService(ServiceConfig{})
	c.Assert(err, gc.ErrorMatches, "(?s)ingest service: config validation failed.*feed ID.*feed URL.*fetcher.*checkpoint store.*indexer.*poll interval.*")
}

func (s *ServiceTestSuite) TestTextExtractor(c *gc.C) {
	p := &itemPayload{
		RawTitle:   "  <i>Breaking</i>   news ",
		RawContent: "<div><p>Hello&amp; <b>world</b></p>\n\n<script>alert(1)</script></div>",
	}

	out, err := newTextExtractor().Process(context.TODO(), p)
	c.Assert(err, gc.IsNil)
	c.Assert(out.(*itemPayload).Title, gc.Equals, "Breaking news")
	c.Assert(out.(*itemPayload).TextContent, gc.Equals, "Hello& world")
}

func (s *ServiceTestSuite) TestNewPayloadFallsBackToSummary(c *gc.C) {
	id := uuid.New()
	p, err := newPayload(feed.Item{ID: "uuid:" + id.String(), Summary: "summary only"})
	c.Assert(err, gc.IsNil)
	c.Assert(p.ItemID, gc.Equals, id)
	c.Assert(p.RawContent, gc.Equals, "summary only")
	p.MarkAsProcessed()
}

func mustGUIDItem(c *gc.C) feed.Item {
	return feed.Item{ID: "urn:uuid:" + uuid.New().String(), Title: "item"}
}

// flakyIndexer fails the failAt-th call to Index.
type flakyIndexer struct {
	Indexer

	mu     sync.Mutex
	calls  int
	failAt int
}

func (f *flakyIndexer) Index(doc *index.Document) error {
	f.mu.Lock()
	f.calls++
	fail := f.failAt != 0 && f.calls == f.failAt
	f.mu.Unlock()

	if fail {
		return errors.New("indexer unavailable")
	}
	return f.Indexer.Index(doc)
}

// cancellingIndexer cancels the poll context while indexing the first item.
type cancellingIndexer struct {
	Indexer

	once     sync.Once
	cancelFn context.CancelFunc
}

func (ci *cancellingIndexer) Index(doc *index.Document) error {
	ci.once.Do(ci.cancelFn)
	return ci.Indexer.Index(doc)
}
