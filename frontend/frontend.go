// Package frontend exposes the indexed feed items over a JSON HTTP API.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ejacobg/feedcursor/index"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const (
	searchEndpoint  = "/search"
	itemEndpoint    = "/items/{id}"
	healthzEndpoint = "/healthz"
)

// IndexAPI defines a set of API methods for searching indexed feed items.
type IndexAPI interface {
	FindByID(itemID uuid.UUID) (*index.Document, error)
	Search(query index.Query) (index.Iterator, error)
}

// Config encapsulates the settings for configuring the front-end service.
type Config struct {
	// An API for executing queries against indexed items.
	IndexAPI IndexAPI

	// The port to listen for incoming requests.
	ListenAddr string

	// The number of results to display per page. If not specified, a
	// default value of 10 results per page will be used instead.
	ResultsPerPage int

	// The maximum length (in characters) of the highlighted content summary
	// for matching documents. If not specified, a default value of 256
	// will be used instead.
	MaxSummaryLength int

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 10
	}
	if cfg.MaxSummaryLength <= 0 {
		cfg.MaxSummaryLength = 256
	}
	if cfg.IndexAPI == nil {
		err = multierror.Append(err, fmt.Errorf("index API has not been provided"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Service implements the front-end component of the feedcursor application.
type Service struct {
	cfg    Config
	router *mux.Router
}

// NewService creates a new front-end service instance with the specified config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("front-end service: config validation failed: %w", err)
	}

	svc := &Service{
		router: mux.NewRouter(),
		cfg:    cfg,
	}

	svc.router.HandleFunc(searchEndpoint, svc.renderSearchResults).Methods(http.MethodGet)
	svc.router.HandleFunc(itemEndpoint, svc.renderItem).Methods(http.MethodGet)
	svc.router.HandleFunc(healthzEndpoint, svc.renderHealthz).Methods(http.MethodGet)
	svc.router.NotFoundHandler = http.HandlerFunc(svc.render404)
	return svc, nil
}

// Name implements service.Service
func (svc *Service) Name() string { return "front-end" }

// Run implements service.Service
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:    svc.cfg.ListenAddr,
		Handler: svc.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFn()
		_ = srv.Shutdown(shutdownCtx)
	}()

	svc.cfg.Logger.WithField("addr", svc.cfg.ListenAddr).Info("starting front-end server")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		// Ignore error when the server shuts down.
		err = nil
	}

	return err
}

type searchResponse struct {
	Query      string        `json:"query"`
	Offset     uint64        `json:"offset"`
	TotalCount uint64        `json:"total_count"`
	NextOffset *uint64       `json:"next_offset,omitempty"`
	Results    []matchedItem `json:"results"`
}

type matchedItem struct {
	ItemID      string    `json:"item_id"`
	FeedID      string    `json:"feed_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

func (svc *Service) renderSearchResults(w http.ResponseWriter, r *http.Request) {
	searchTerms := strings.TrimSpace(r.URL.Query().Get("q"))
	if searchTerms == "" {
		svc.renderError(w, http.StatusBadRequest, "missing search query")
		return
	}

	offset, err := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64)
	if err != nil && r.URL.Query().Get("offset") != "" {
		svc.renderError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	matchedDocs, total, err := svc.runQuery(searchTerms, offset)
	if err != nil {
		svc.cfg.Logger.WithField("err", err).Errorf("search query execution failed")
		svc.renderError(w, http.StatusInternalServerError, "search failed")
		return
	}

	res := searchResponse{
		Query:      searchTerms,
		Offset:     offset,
		TotalCount: total,
		Results:    make([]matchedItem, 0, len(matchedDocs)),
	}
	for _, doc := range matchedDocs {
		res.Results = append(res.Results, svc.makeMatchedItem(doc))
	}
	if next := offset + uint64(len(matchedDocs)); next < total {
		res.NextOffset = &next
	}

	svc.renderJSON(w, http.StatusOK, res)
}

func (svc *Service) runQuery(searchTerms string, offset uint64) ([]*index.Document, uint64, error) {
	var query = index.Query{Type: index.QueryTypeMatch, Expression: searchTerms, Offset: offset}
	if strings.HasPrefix(searchTerms, `"`) && strings.HasSuffix(searchTerms, `"`) && len(searchTerms) > 1 {
		query.Type = index.QueryTypePhrase
		query.Expression = strings.Trim(searchTerms, `"`)
	}

	resultIt, err := svc.cfg.IndexAPI.Search(query)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resultIt.Close() }()

	matchedDocs := make([]*index.Document, 0, svc.cfg.ResultsPerPage)
	for resCount := 0; resCount < svc.cfg.ResultsPerPage && resultIt.Next(); resCount++ {
		matchedDocs = append(matchedDocs, resultIt.Document())
	}

	if err = resultIt.Error(); err != nil {
		return nil, 0, err
	}

	return matchedDocs, resultIt.TotalCount(), nil
}

func (svc *Service) renderItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		svc.renderError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	doc, err := svc.cfg.IndexAPI.FindByID(itemID)
	switch {
	case errors.Is(err, index.ErrNotFound):
		svc.renderError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		svc.cfg.Logger.WithField("err", err).Errorf("item lookup failed")
		svc.renderError(w, http.StatusInternalServerError, "item lookup failed")
		return
	}

	item := svc.makeMatchedItem(doc)
	item.Summary = doc.Content
	svc.renderJSON(w, http.StatusOK, item)
}

func (svc *Service) renderHealthz(w http.ResponseWriter, _ *http.Request) {
	svc.renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (svc *Service) render404(w http.ResponseWriter, _ *http.Request) {
	svc.renderError(w, http.StatusNotFound, "not found")
}

func (svc *Service) renderError(w http.ResponseWriter, status int, msg string) {
	svc.renderJSON(w, status, map[string]string{"error": msg})
}

func (svc *Service) renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		svc.cfg.Logger.WithField("err", err).Error("unable to encode response")
	}
}

func (svc *Service) makeMatchedItem(doc *index.Document) matchedItem {
	return matchedItem{
		ItemID:      doc.ItemID.String(),
		FeedID:      doc.FeedID,
		URL:         doc.URL,
		Title:       doc.Title,
		Summary:     summarize(doc.Content, svc.cfg.MaxSummaryLength),
		PublishedAt: doc.PublishedAt,
	}
}

// summarize truncates content to at most maxLen runes, cutting at the last
// word boundary and appending an ellipsis.
func summarize(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}

	cut := string(runes[:maxLen])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}
