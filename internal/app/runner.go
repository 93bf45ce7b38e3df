// Package app orchestrates one full discovery and extraction run.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/discover"
	"github.com/feedlens/feedlens/internal/logging"
	"github.com/feedlens/feedlens/internal/metrics"
	"github.com/feedlens/feedlens/internal/pipeline"
)

// Discoverer produces the ordered list of post URLs for a run.
type Discoverer interface {
	Discover(ctx context.Context) discover.Result
}

// Extractor turns discovered URLs into one result per input.
type Extractor interface {
	Run(ctx context.Context, urls []pipeline.DiscoveredURL) []pipeline.ExtractionResult
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Runner executes the two pipeline phases and fans the finalized report
// out to the configured sinks.
type Runner struct {
	target     string
	discoverer Discoverer
	extractor  Extractor
	aggregator *pipeline.Aggregator
	writer     *pipeline.ReportWriter
	clock      pipeline.Clock
	ids        IDGenerator
	logger     *zap.Logger
	onReport   func(pipeline.Report)
}

// RunnerOptions collects the Runner collaborators.
type RunnerOptions struct {
	Target     string
	Discoverer Discoverer
	Extractor  Extractor
	Aggregator *pipeline.Aggregator
	Writer     *pipeline.ReportWriter
	Clock      pipeline.Clock
	IDs        IDGenerator
	Logger     *zap.Logger
	// OnReport runs after every finalized report, e.g. to refresh the
	// status server. Optional.
	OnReport func(pipeline.Report)
}

// NewRunner validates and assembles a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if opts.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		target:     opts.Target,
		discoverer: opts.Discoverer,
		extractor:  opts.Extractor,
		aggregator: opts.Aggregator,
		writer:     opts.Writer,
		clock:      opts.Clock,
		ids:        opts.IDs,
		logger:     opts.Logger,
		onReport:   opts.OnReport,
	}, nil
}

// Execute runs discovery, extraction, aggregation, and persistence. A
// partial discovery still produces a report, flagged incomplete.
func (r *Runner) Execute(ctx context.Context) (pipeline.Report, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("mint run id: %w", err)
	}
	logger := logging.ForRun(r.logger, runID, r.target)
	logger.Info("pipeline run starting")

	var timings pipeline.PhaseTimings
	timings.DiscoveryStart = r.clock.Now()
	discovered := r.discoverer.Discover(ctx)
	timings.DiscoveryEnd = r.clock.Now()
	if discovered.Err != nil {
		logger.Warn("discovery ended early",
			zap.Error(discovered.Err),
			zap.Int("collected", len(discovered.URLs)),
		)
	}

	timings.ExtractionStart = r.clock.Now()
	results := r.extractor.Run(ctx, discovered.URLs)
	timings.ExtractionEnd = r.clock.Now()

	run := pipeline.PipelineRun{
		RunID:      runID,
		Target:     r.target,
		Discovered: discovered.URLs,
		Results:    results,
		Timings:    timings,
		Incomplete: !discovered.Complete,
	}
	report := r.aggregator.Finalize(run)

	status := "complete"
	if report.Incomplete {
		status = "incomplete"
	}
	metrics.ObserveRun(status)

	if r.writer != nil {
		if err := r.writer.Write(ctx, report); err != nil {
			logger.Error("report persistence failed", zap.Error(err))
			return report, fmt.Errorf("persist report: %w", err)
		}
	}
	if r.onReport != nil {
		r.onReport(report)
	}

	logger.Info("pipeline run finished",
		zap.Int("discovered", len(discovered.URLs)),
		zap.Int("results", len(results)),
		zap.Int("fully_successful", report.FullySuccessful),
		zap.Bool("incomplete", report.Incomplete),
	)
	return report, nil
}
