// Package ingest polls a paged feed archive and indexes every item recorded
// since the last persisted cursor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/ejacobg/feedcursor/archive"
	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/ejacobg/feedcursor/feed"
	"github.com/ejacobg/feedcursor/guidcursor"
	"github.com/ejacobg/feedcursor/pipeline"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
)

// ServiceConfig encapsulates the settings for configuring the ingest service.
type ServiceConfig struct {
	// The identifier under which the feed cursor is persisted.
	FeedID string

	// The URL of the feed's live document.
	FeedURL string

	// The fetcher used to retrieve feed pages.
	Fetcher feed.Fetcher

	// The store that persists the feed cursor between polls.
	Checkpoints checkpoint.Store

	// The indexer that ingested items are written to.
	Indexer Indexer

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The time between subsequent polls.
	PollInterval time.Duration

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *ServiceConfig) validate() error {
	var err error
	if cfg.FeedID == "" {
		err = multierror.Append(err, fmt.Errorf("feed ID has not been provided"))
	}
	if cfg.FeedURL == "" {
		err = multierror.Append(err, fmt.Errorf("feed URL has not been provided"))
	}
	if cfg.Fetcher == nil {
		err = multierror.Append(err, fmt.Errorf("feed fetcher has not been provided"))
	}
	if cfg.Checkpoints == nil {
		err = multierror.Append(err, fmt.Errorf("checkpoint store has not been provided"))
	}
	if cfg.Indexer == nil {
		err = multierror.Append(err, fmt.Errorf("indexer has not been provided"))
	}
	if cfg.PollInterval <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for poll interval"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Service polls a single feed and indexes the items it has not seen yet.
type Service struct {
	cfg  ServiceConfig
	pipe *pipeline.Pipeline
}

// NewService creates a new ingest service instance with the specified config.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("ingest service: config validation failed: %w", err)
	}

	return &Service{
		cfg: cfg,
		pipe: pipeline.New(
			pipeline.FIFO(newTextExtractor()),
			pipeline.FIFO(newItemIndexer(cfg.FeedID, cfg.Indexer)),
		),
	}, nil
}

// Name implements service.Service
func (svc *Service) Name() string { return "ingest" }

// Run implements service.Service. It polls the feed every PollInterval
// until the context expires. A failed poll is logged and leaves the cursor
// unchanged, so the next poll retries from the same position.
func (svc *Service) Run(ctx context.Context) error {
	svc.cfg.Logger.WithField("poll_interval", svc.cfg.PollInterval.String()).Info("starting service")
	defer svc.cfg.Logger.Info("stopped service")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-svc.cfg.Clock.After(svc.cfg.PollInterval):
			svc.pollAndLog(ctx)
		}
	}
}

func (svc *Service) pollAndLog(ctx context.Context) {
	tick := svc.cfg.Clock.Now()
	count, err := svc.Poll(ctx)
	logger := svc.cfg.Logger.WithFields(logrus.Fields{
		"feed_id":      svc.cfg.FeedID,
		"items":        count,
		"processed_in": svc.cfg.Clock.Now().Sub(tick).String(),
	})

	switch {
	case err == nil:
		logger.Info("completed feed poll")
	case ctx.Err() != nil:
		// Shutting down.
	case requiresOperator(err):
		logger.WithField("alert", true).WithField("err", err).Error("feed archive cannot be read from the stored cursor")
	default:
		logger.WithField("err", err).Warn("feed poll failed")
	}
}

// requiresOperator reports whether err will recur on every poll until the
// archive or the stored cursor is repaired.
func requiresOperator(err error) bool {
	return errors.Is(err, archive.ErrEmptyArchivePage) || errors.Is(err, archive.ErrBookmarkNotMatched)
}

// Poll indexes every item recorded since the persisted cursor and returns the
// number of items indexed. The new cursor is persisted only after every item
// has passed through the indexer, so a failed poll may index an item again
// on the next attempt but never skips one.
func (svc *Service) Poll(ctx context.Context) (int, error) {
	lastCursor, err := svc.cfg.Checkpoints.Checkpoint(ctx, svc.cfg.FeedID)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	var (
		newCursor uuid.UUID
		walked    bool
	)
	it, err := guidcursor.ReadAndProcess(ctx, svc.cfg.Fetcher, svc.cfg.FeedURL, lastCursor, newPayload,
		func(cursor uuid.UUID) error {
			newCursor, walked = cursor, true
			return nil
		},
	)
	if err != nil {
		return 0, err
	}
	defer func() { _ = it.Close() }()

	source := &itemSource{it: it}
	sink := new(countingSink)
	if err = svc.pipe.Process(ctx, source, sink); err != nil {
		return sink.count, err
	}

	// Stages stop silently on cancellation, possibly with items still in
	// flight, so the cursor may only move if every yielded item reached the
	// sink.
	if err = ctx.Err(); err != nil {
		return sink.count, fmt.Errorf("poll interrupted: %w", err)
	}
	if !walked || source.yielded != sink.count {
		return sink.count, fmt.Errorf("poll interrupted: %d of %d items indexed", sink.count, source.yielded)
	}

	if err = svc.cfg.Checkpoints.SetCheckpoint(ctx, svc.cfg.FeedID, newCursor); err != nil {
		return sink.count, fmt.Errorf("store cursor: %w", err)
	}
	return sink.count, nil
}
