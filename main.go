package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ejacobg/feedcursor/atom"
	"github.com/ejacobg/feedcursor/bleve"
	"github.com/ejacobg/feedcursor/bolt"
	"github.com/ejacobg/feedcursor/cdb"
	"github.com/ejacobg/feedcursor/checkpoint"
	"github.com/ejacobg/feedcursor/elasticsearch"
	"github.com/ejacobg/feedcursor/frontend"
	"github.com/ejacobg/feedcursor/index"
	"github.com/ejacobg/feedcursor/ingest"
	"github.com/ejacobg/feedcursor/inmem"
	"github.com/ejacobg/feedcursor/service"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	appName = "feedcursor"
	appSha  = "populated-at-link-time"
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	logger := rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	app := cli.NewApp()
	app.Name = appName
	app.Usage = "Index the items of a paged Atom feed, resuming from the last seen item"
	app.Version = appSha
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "feed-url",
			EnvVar: "FEED_URL",
			Usage:  "The URL of the feed's live document",
		},
		cli.StringFlag{
			Name:   "feed-id",
			EnvVar: "FEED_ID",
			Usage:  "The identifier under which the feed cursor is persisted (defaults to the feed URL)",
		},
		cli.DurationFlag{
			Name:   "poll-interval",
			EnvVar: "POLL_INTERVAL",
			Value:  time.Minute,
			Usage:  "The time between subsequent feed polls",
		},
		cli.DurationFlag{
			Name:   "fetch-timeout",
			EnvVar: "FETCH_TIMEOUT",
			Value:  30 * time.Second,
			Usage:  "The timeout for retrieving a single feed page",
		},
		cli.StringFlag{
			Name:   "checkpoint-store-uri",
			EnvVar: "CHECKPOINT_STORE_URI",
			Value:  "in-memory://",
			Usage:  "The URI for connecting to the checkpoint store (supported URIs: in-memory://, postgresql://user@host:26257/feedcursor?sslmode=disable, bolt:///path/to/file.db)",
		},
		cli.StringFlag{
			Name:   "text-indexer-uri",
			EnvVar: "TEXT_INDEXER_URI",
			Value:  "in-memory://",
			Usage:  "The URI for connecting to the text indexer (supported URIs: in-memory://, es://node1:9200,...,nodeN:9200)",
		},
		cli.StringFlag{
			Name:   "frontend-listen-addr",
			EnvVar: "FRONTEND_LISTEN_ADDR",
			Value:  ":8080",
			Usage:  "The address to listen for incoming front-end requests",
		},
		cli.IntFlag{
			Name:   "frontend-results-per-page",
			EnvVar: "FRONTEND_RESULTS_PER_PAGE",
			Value:  10,
			Usage:  "The number of entries for each search result page",
		},
		cli.StringFlag{
			Name:   "log-level",
			EnvVar: "LOG_LEVEL",
			Value:  "info",
			Usage:  "The minimum level of log entries to emit",
		},
	}
	app.Action = func(appCtx *cli.Context) error {
		level, err := logrus.ParseLevel(appCtx.String("log-level"))
		if err != nil {
			return err
		}
		rootLogger.SetLevel(level)

		return runMain(appCtx, logger)
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func runMain(appCtx *cli.Context, logger *logrus.Entry) error {
	svcGroup, err := setupServices(appCtx, logger)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return svcGroup.Run(ctx)
}

func setupServices(appCtx *cli.Context, logger *logrus.Entry) (service.Group, error) {
	feedURL := appCtx.String("feed-url")
	if feedURL == "" {
		return nil, fmt.Errorf("feed URL must be specified with --feed-url")
	}
	feedID := appCtx.String("feed-id")
	if feedID == "" {
		feedID = feedURL
	}

	// Retrieve a suitable checkpoint store and text indexer implementation
	// and plug them into the service configurations.
	checkpoints, err := getCheckpointStore(appCtx.String("checkpoint-store-uri"), logger)
	if err != nil {
		return nil, err
	}
	textIndexer, err := getTextIndexer(appCtx.String("text-indexer-uri"), logger)
	if err != nil {
		return nil, err
	}

	var svc service.Service
	var svcGroup service.Group

	if svc, err = frontend.NewService(frontend.Config{
		IndexAPI:       textIndexer,
		ListenAddr:     appCtx.String("frontend-listen-addr"),
		ResultsPerPage: appCtx.Int("frontend-results-per-page"),
		Logger:         logger.WithField("service", "front-end"),
	}); err == nil {
		svcGroup = append(svcGroup, svc)
	} else {
		return nil, err
	}

	if svc, err = ingest.NewService(ingest.ServiceConfig{
		FeedID:       feedID,
		FeedURL:      feedURL,
		Fetcher:      atom.NewFetcher(&http.Client{Timeout: appCtx.Duration("fetch-timeout")}),
		Checkpoints:  checkpoints,
		Indexer:      textIndexer,
		PollInterval: appCtx.Duration("poll-interval"),
		Logger:       logger.WithField("service", "ingest"),
	}); err == nil {
		svcGroup = append(svcGroup, svc)
	} else {
		return nil, err
	}

	return svcGroup, nil
}

func getCheckpointStore(checkpointStoreURI string, logger *logrus.Entry) (checkpoint.Store, error) {
	if checkpointStoreURI == "" {
		return nil, fmt.Errorf("checkpoint store URI must be specified with --checkpoint-store-uri")
	}

	uri, err := url.Parse(checkpointStoreURI)
	if err != nil {
		return nil, fmt.Errorf("could not parse checkpoint store URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		logger.Info("using in-memory checkpoint store")
		return inmem.NewCheckpointStore(), nil
	case "postgresql":
		logger.Info("using CDB checkpoint store")
		return cdb.NewCheckpointStore(checkpointStoreURI, cdb.DefaultTableName)
	case "bolt":
		logger.WithField("path", uri.Path).Info("using bolt checkpoint store")
		return bolt.NewCheckpointStore(uri.Path, nil)
	default:
		return nil, fmt.Errorf("unsupported checkpoint store URI scheme: %q", uri.Scheme)
	}
}

func getTextIndexer(textIndexerURI string, logger *logrus.Entry) (index.Indexer, error) {
	if textIndexerURI == "" {
		return nil, fmt.Errorf("text indexer URI must be specified with --text-indexer-uri")
	}

	uri, err := url.Parse(textIndexerURI)
	if err != nil {
		return nil, fmt.Errorf("could not parse text indexer URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		logger.Info("using in-memory indexer")
		return bleve.NewIndexer()
	case "es":
		nodes := strings.Split(uri.Host, ",")
		for i := 0; i < len(nodes); i++ {
			nodes[i] = "http://" + nodes[i]
		}
		logger.Info("using ES indexer")
		return elasticsearch.NewIndexer(nodes, false)
	default:
		return nil, fmt.Errorf("unsupported text indexer URI scheme: %q", uri.Scheme)
	}
}
