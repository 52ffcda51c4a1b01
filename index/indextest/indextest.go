package indextest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ejacobg/feedcursor/index"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// Suite defines a re-usable set of index-related tests that can
// be executed against any type that implements index.Indexer.
type Suite struct {
	Idx index.Indexer

	// Optional helper functions.
	BeforeEach func(t *testing.T)
	AfterEach  func(t *testing.T)
}

// TestIndexer runs all the below functions on the index.
func (s *Suite) TestIndexer(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*testing.T, index.Indexer)
	}{
		{"Index document", TestIndexDocument},
		{"Find by ID", TestFindByID},
		{"Phrase search", TestPhraseSearch},
		{"Match search", TestMatchSearch},
		{"Match search with offset", TestMatchSearchWithOffset},
	}

	if s.BeforeEach == nil {
		s.BeforeEach = func(t *testing.T) {}
	}

	if s.AfterEach == nil {
		s.AfterEach = func(t *testing.T) {}
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s.BeforeEach(t)
			test.fn(t, s.Idx)
			s.AfterEach(t)
		})
	}
}

// TestIndexDocument verifies the indexing logic for new and existing documents.
func TestIndexDocument(t *testing.T, idx index.Indexer) {
	// Insert a document without an ID.
	incompleteDoc := &index.Document{
		URL: "http://example.com/items/1",
	}

	if err := idx.Index(incompleteDoc); !errors.Is(err, index.ErrMissingItemID) {
		t.Errorf("unexpected error %v, want %v", err, index.ErrMissingItemID)
	}

	// Insert a new document.
	doc := &index.Document{
		ItemID:      uuid.New(),
		FeedID:      "example",
		URL:         "http://example.com/items/1",
		Title:       "Illustrious examples",
		Content:     "Lorem ipsum dolor",
		PublishedAt: time.Now().Add(-12 * time.Hour).Truncate(time.Second).UTC(),
	}

	if err := idx.Index(doc); err != nil {
		t.Fatalf("could not index document: %v", err)
	}

	// Update existing document; re-ingesting an item must be idempotent.
	doc.Title = "A more exciting title"
	doc.Content = "Ovidius poeta in terra pontica"

	if err := idx.Index(doc); err != nil {
		t.Fatalf("could not update document: %v", err)
	}

	got, err := idx.FindByID(doc.ItemID)
	if err != nil {
		t.Fatalf("could not find document: %v", err)
	}
	if got.Title != doc.Title {
		t.Errorf("title = %q, want %q", got.Title, doc.Title)
	}
}

// TestFindByID verifies the document lookup logic.
func TestFindByID(t *testing.T, idx index.Indexer) {
	// Insert a new document.
	doc := &index.Document{
		ItemID:      uuid.New(),
		FeedID:      "example",
		URL:         "http://example.com/items/2",
		Title:       "Illustrious examples",
		Content:     "Lorem ipsum dolor",
		PublishedAt: time.Now().Add(-12 * time.Hour).Truncate(time.Second).UTC(),
	}

	if err := idx.Index(doc); err != nil {
		t.Fatalf("could not index document: %v", err)
	}

	// Look up document and confirm all fields match.
	got, err := idx.FindByID(doc.ItemID)
	if err != nil {
		t.Fatalf("could not find document: %v", err)
	}

	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("document returned by FindByID does not match inserted document (-want +got):\n%s", diff)
	}

	// Look up unknown ID.
	_, err = idx.FindByID(uuid.New())
	if !errors.Is(err, index.ErrNotFound) {
		t.Errorf("unexpected error %v, want %v", err, index.ErrNotFound)
	}
}

// TestPhraseSearch verifies the document search logic when searching for
// exact phrases.
func TestPhraseSearch(t *testing.T, idx index.Indexer) {
	var (
		numDocs = 50
		expIDs  []uuid.UUID
	)
	base := time.Now().Truncate(time.Second).UTC()
	for i := 0; i < numDocs; i++ {
		id := uuid.New()
		doc := &index.Document{
			ItemID:      id,
			Title:       fmt.Sprintf("doc with ID %s", id.String()),
			Content:     "Lorem Ipsum Dolor",
			PublishedAt: base.Add(-time.Duration(i) * time.Minute),
		}

		if i%5 == 0 {
			doc.Content = "Lorem Dolor Ipsum"
			expIDs = append(expIDs, id)
		}

		if err := idx.Index(doc); err != nil {
			t.Fatalf("could not index document: %v", err)
		}
	}

	it, err := idx.Search(index.Query{
		Type:       index.QueryTypePhrase,
		Expression: "lorem dolor ipsum",
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	ids := iterateDocs(t, it)
	if diff := cmp.Diff(expIDs, ids); diff != "" {
		t.Errorf("search returned incorrect IDs (-want +got):\n%s", diff)
	}
}

// TestMatchSearch verifies the document search logic when searching for
// keyword matches.
func TestMatchSearch(t *testing.T, idx index.Indexer) {
	var (
		numDocs = 50
		expIDs  []uuid.UUID
	)
	base := time.Now().Truncate(time.Second).UTC()
	for i := 0; i < numDocs; i++ {
		id := uuid.New()
		doc := &index.Document{
			ItemID:      id,
			Title:       fmt.Sprintf("doc with ID %s", id.String()),
			Content:     "Ovidius poeta in terra pontica",
			PublishedAt: base.Add(-time.Duration(i) * time.Minute),
		}

		if i%5 == 0 {
			doc.Content = "Lorem Dolor Ipsum"
			expIDs = append(expIDs, id)
		}

		if err := idx.Index(doc); err != nil {
			t.Fatalf("could not index document: %v", err)
		}
	}

	it, err := idx.Search(index.Query{
		Type:       index.QueryTypeMatch,
		Expression: "lorem ipsum",
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	ids := iterateDocs(t, it)
	if diff := cmp.Diff(expIDs, ids); diff != "" {
		t.Errorf("search returned incorrect IDs (-want +got):\n%s", diff)
	}
}

// TestMatchSearchWithOffset verifies the document search logic when searching
// for keyword matches and skipping some results.
func TestMatchSearchWithOffset(t *testing.T, idx index.Indexer) {
	var (
		numDocs = 50
		expIDs  []uuid.UUID
	)
	base := time.Now().Truncate(time.Second).UTC()
	for i := 0; i < numDocs; i++ {
		id := uuid.New()
		expIDs = append(expIDs, id)
		doc := &index.Document{
			ItemID:      id,
			Title:       fmt.Sprintf("doc with ID %s", id.String()),
			Content:     "Ovidius poeta in terra pontica",
			PublishedAt: base.Add(-time.Duration(i) * time.Minute),
		}

		if err := idx.Index(doc); err != nil {
			t.Fatalf("could not index document: %v", err)
		}
	}

	it, err := idx.Search(index.Query{
		Type:       index.QueryTypeMatch,
		Expression: "poeta",
		Offset:     20,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	ids := iterateDocs(t, it)
	if diff := cmp.Diff(expIDs[20:], ids); diff != "" {
		t.Errorf("search returned incorrect IDs (-want +got):\n%s", diff)
	}

	// Search with offset beyond the total number of results.
	it, err = idx.Search(index.Query{
		Type:       index.QueryTypeMatch,
		Expression: "poeta",
		Offset:     200,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	ids = iterateDocs(t, it)
	if len(ids) != 0 {
		t.Errorf("got %d IDs, want %d", len(ids), 0)
	}
}

func iterateDocs(t *testing.T, it index.Iterator) []uuid.UUID {
	var seen []uuid.UUID
	for it.Next() {
		seen = append(seen, it.Document().ItemID)
	}

	if err := it.Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := it.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return seen
}
