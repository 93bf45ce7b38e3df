package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/api"
	"github.com/feedlens/feedlens/internal/app"
	"github.com/feedlens/feedlens/internal/browser"
	"github.com/feedlens/feedlens/internal/clock/system"
	"github.com/feedlens/feedlens/internal/config"
	"github.com/feedlens/feedlens/internal/discover"
	"github.com/feedlens/feedlens/internal/fetch"
	"github.com/feedlens/feedlens/internal/id/uuid"
	"github.com/feedlens/feedlens/internal/metrics"
	"github.com/feedlens/feedlens/internal/parse"
	"github.com/feedlens/feedlens/internal/pipeline"
	pubsubpublisher "github.com/feedlens/feedlens/internal/publisher/pubsub"
	"github.com/feedlens/feedlens/internal/storage/gcs"
	"github.com/feedlens/feedlens/internal/storage/local"
	"github.com/feedlens/feedlens/internal/storage/postgres"
	"github.com/feedlens/feedlens/internal/storage/snapshot"
)

// newRunCmd creates the 'run' subcommand: full discovery plus extraction.
func newRunCmd() *cobra.Command {
	var target string
	var serve bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover feed posts and extract engagement metrics",
		Long: `Runs the full pipeline: scrolls the configured feed to collect post
URLs, fetches each post's text rendition through the rotating backends,
parses engagement fields, and writes the finalized run report to the
configured sinks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), target, serve)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "label for the feed being processed (defaults to the feed URL)")
	cmd.Flags().BoolVar(&serve, "serve", false, "keep the status server running after the run completes")
	return cmd
}

func runPipeline(parent context.Context, target string, serve bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Discovery.FeedURL == "" {
		return errors.New("discovery.feed_url is required")
	}
	if cfg.Discovery.LinkPattern == "" {
		return errors.New("discovery.link_pattern is required")
	}
	if target == "" {
		target = cfg.Discovery.FeedURL
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pattern, err := discover.NewLinkPattern(cfg.Discovery.LinkPattern)
	if err != nil {
		return err
	}

	session, err := browser.NewSession(browser.Config{
		UserAgent:         cfg.Discovery.UserAgent,
		Headless:          cfg.Discovery.Headless,
		NavigationTimeout: cfg.NavTimeout(),
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	engine, err := discover.NewEngine(session, pattern, metrics.NewRecorder(), discover.Config{
		FeedURL:        cfg.Discovery.FeedURL,
		TargetCount:    cfg.Discovery.TargetCount,
		MaxRounds:      cfg.Discovery.MaxRounds,
		StaleThreshold: cfg.Discovery.StaleThreshold,
	}, logger.Named("discover"))
	if err != nil {
		return err
	}

	scheduler, cleanupSinks, err := buildScheduler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupSinks()

	writer, cleanupWriter, err := buildReportWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupWriter()

	apiServer := api.NewServer(logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(err))
		}
	}()

	runner, err := app.NewRunner(app.RunnerOptions{
		Target:     target,
		Discoverer: engine,
		Extractor:  scheduler,
		Aggregator: pipeline.NewAggregator(system.New()),
		Writer:     writer,
		Clock:      system.New(),
		IDs:        uuid.NewGenerator(),
		Logger:     logger,
		OnReport:   apiServer.SetLatestReport,
	})
	if err != nil {
		return err
	}

	report, runErr := runner.Execute(ctx)
	if summary, err := json.MarshalIndent(summarize(report), "", "  "); err == nil {
		fmt.Println(string(summary))
	}

	if serve && runErr == nil {
		logger.Info("run finished, status server still serving")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("status server shutdown error", zap.Error(err))
	}
	return runErr
}

// buildScheduler wires both fetch lanes, the parser, and optional
// snapshot retention into a rotation scheduler.
func buildScheduler(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Scheduler, func(), error) {
	cleanup := func() {}

	primary, err := fetch.NewPrimary(fetch.PrimaryConfig{
		Endpoint:    cfg.Primary.Endpoint,
		UserAgent:   cfg.Primary.UserAgent,
		Timeout:     cfg.PrimaryTimeout(),
		MaxParallel: cfg.Primary.MaxParallel,
		QPS:         cfg.Primary.QPS,
	}, logger.Named("primary"))
	if err != nil {
		return nil, cleanup, fmt.Errorf("init primary backend: %w", err)
	}

	secondary, err := fetch.NewSecondary(fetch.SecondaryConfig{
		Endpoint:     cfg.Secondary.Endpoint,
		UserAgent:    cfg.Secondary.UserAgent,
		Timeout:      cfg.SecondaryTimeout(),
		MaxParallel:  cfg.Secondary.MaxParallel,
		WaitSelector: cfg.Secondary.WaitSelector,
		NoCache:      cfg.Secondary.NoCache,
	}, logger.Named("secondary"))
	if err != nil {
		return nil, cleanup, fmt.Errorf("init secondary backend: %w", err)
	}

	var sink pipeline.SnapshotSink
	if cfg.Storage.RetainSnapshots {
		blobs, blobCleanup, err := buildBlobStore(ctx, cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("init snapshot store: %w", err)
		}
		cleanup = blobCleanup
		sink, err = snapshot.New(blobs, cfg.Storage.Prefix)
		if err != nil {
			return nil, cleanup, err
		}
	}

	parser := parse.New(parse.Bounds{Min: cfg.Parser.MinCount, Max: cfg.Parser.MaxCount})
	scheduler, err := pipeline.NewScheduler(
		primary,
		secondary,
		parser,
		sink,
		metrics.NewRecorder(),
		system.New(),
		pipeline.SchedulerConfig{
			PrimaryBatchSize:   cfg.Scheduler.PrimaryBatchSize,
			SecondaryBatchSize: cfg.Scheduler.SecondaryBatchSize,
			Workers:            cfg.Scheduler.Workers,
			FallbackTimeout:    cfg.FallbackTimeout(),
			InterBatchDelay:    cfg.InterBatchDelay(),
		},
		logger.Named("scheduler"),
	)
	if err != nil {
		return nil, cleanup, err
	}
	return scheduler, cleanup, nil
}

// buildReportWriter assembles the configured report sinks. Every sink is
// optional; with none configured the writer is a no-op.
func buildReportWriter(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.ReportWriter, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	blobs, blobCleanup, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("init report blob store: %w", err)
	}
	cleanups = append(cleanups, blobCleanup)

	var store pipeline.ReportStore
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.NewReportStore(ctx, postgres.ReportStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns),
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("init report store: %w", err)
		}
		cleanups = append(cleanups, pgStore.Close)
		store = pgStore
	}

	var pub pipeline.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, cleanup, fmt.Errorf("init pubsub client: %w", err)
		}
		publisher, err := pubsubpublisher.New(client)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() {
			publisher.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("pubsub client close failed", zap.Error(err))
			}
		})
		pub = publisher
	}

	return pipeline.NewReportWriter(store, blobs, pub, cfg.PubSub.TopicName, logger.Named("report")), cleanup, nil
}

// buildBlobStore prefers GCS when a bucket is configured and falls back
// to the local filesystem store.
func buildBlobStore(ctx context.Context, cfg config.Config) (pipeline.BlobStore, func(), error) {
	if cfg.Storage.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, func() {}, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = client.Close() }, nil
	}
	store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	if err != nil {
		return nil, func() {}, err
	}
	return store, func() {}, nil
}

// runSummary is the compact stdout summary printed after a run.
type runSummary struct {
	RunID                string  `json:"run_id"`
	Target               string  `json:"target"`
	TotalURLs            int     `json:"total_urls"`
	FullySuccessful      int     `json:"fully_successful"`
	DiscoverySeconds     float64 `json:"discovery_seconds"`
	ExtractionSeconds    float64 `json:"extraction_seconds"`
	ExtractionThroughput float64 `json:"extraction_urls_per_second"`
	Incomplete           bool    `json:"incomplete"`
}

func summarize(report pipeline.Report) runSummary {
	return runSummary{
		RunID:                report.RunID,
		Target:               report.Target,
		TotalURLs:            report.TotalURLs,
		FullySuccessful:      report.FullySuccessful,
		DiscoverySeconds:     report.DiscoverySeconds,
		ExtractionSeconds:    report.ExtractionSeconds,
		ExtractionThroughput: report.ExtractionThroughput,
		Incomplete:           report.Incomplete,
	}
}
