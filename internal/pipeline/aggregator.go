package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// fieldNames are the engagement fields tracked in per-field rates.
var fieldNames = []string{"views", "likes", "comments", "reposts", "shares", "content"}

// Aggregator folds a finished run into a Report.
type Aggregator struct {
	clock Clock
}

// NewAggregator returns an aggregator stamping reports with the given clock.
func NewAggregator(clock Clock) *Aggregator {
	return &Aggregator{clock: clock}
}

// Finalize computes lane counts, field extraction rates, and phase
// throughputs for one run.
func (a *Aggregator) Finalize(run PipelineRun) Report {
	report := Report{
		RunID:       run.RunID,
		Target:      run.Target,
		GeneratedAt: a.clock.Now(),
		TotalURLs:   len(run.Results),
		Lanes:       make(map[Lane]LaneCounts),
		Fields:      make(map[string]FieldRate),
		Incomplete:  run.Incomplete,
		Results:     run.Results,
	}

	extracted := make(map[string]int, len(fieldNames))
	for _, res := range run.Results {
		counts := report.Lanes[res.Lane]
		counts.Attempted++
		if res.Success() {
			counts.Successful++
			report.FullySuccessful++
		}
		report.Lanes[res.Lane] = counts

		if res.HasViews {
			extracted["views"]++
		}
		if res.HasLikes {
			extracted["likes"]++
		}
		if res.HasComments {
			extracted["comments"]++
		}
		if res.HasReposts {
			extracted["reposts"]++
		}
		if res.HasShares {
			extracted["shares"]++
		}
		if res.HasContent {
			extracted["content"]++
		}
	}

	for _, name := range fieldNames {
		rate := FieldRate{Extracted: extracted[name], Total: report.TotalURLs}
		if rate.Total > 0 {
			rate.Rate = float64(rate.Extracted) / float64(rate.Total)
		}
		report.Fields[name] = rate
	}

	discovery := run.Timings.DiscoveryDuration().Seconds()
	extraction := run.Timings.ExtractionDuration().Seconds()
	report.DiscoverySeconds = discovery
	report.ExtractionSeconds = extraction
	if discovery > 0 {
		report.DiscoveryThroughput = float64(len(run.Discovered)) / discovery
	}
	if extraction > 0 {
		report.ExtractionThroughput = float64(len(run.Results)) / extraction
	}
	return report
}

// ReportWriter fans a finalized report out to the configured sinks.
// Every sink is optional; a nil writer component is skipped.
type ReportWriter struct {
	store  ReportStore
	blobs  BlobStore
	pub    Publisher
	topic  string
	logger *zap.Logger
}

// NewReportWriter builds a writer over the available sinks.
func NewReportWriter(store ReportStore, blobs BlobStore, pub Publisher, topic string, logger *zap.Logger) *ReportWriter {
	return &ReportWriter{
		store:  store,
		blobs:  blobs,
		pub:    pub,
		topic:  topic,
		logger: logger,
	}
}

// runCompletedEvent is the notification payload published after a run.
type runCompletedEvent struct {
	RunID           string  `json:"run_id"`
	Target          string  `json:"target"`
	TotalURLs       int     `json:"total_urls"`
	FullySuccessful int     `json:"fully_successful"`
	SuccessRate     float64 `json:"success_rate"`
	Incomplete      bool    `json:"incomplete"`
	ReportURI       string  `json:"report_uri,omitempty"`
}

// Write persists the report to every configured sink. Sink failures are
// collected so one bad sink does not silently drop the others.
func (w *ReportWriter) Write(ctx context.Context, report Report) error {
	var errs []error
	var reportURI string

	if w.blobs != nil {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal report: %w", err))
		} else {
			path := fmt.Sprintf("reports/%s.json", report.RunID)
			uri, err := w.blobs.PutObject(ctx, path, "application/json", bytes.NewReader(payload))
			if err != nil {
				errs = append(errs, fmt.Errorf("write report blob: %w", err))
			} else {
				reportURI = uri
				w.logger.Info("report blob written", zap.String("uri", uri))
			}
		}
	}

	if w.store != nil {
		if err := w.store.StoreReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("store report: %w", err))
		}
	}

	if w.pub != nil && w.topic != "" {
		event := runCompletedEvent{
			RunID:           report.RunID,
			Target:          report.Target,
			TotalURLs:       report.TotalURLs,
			FullySuccessful: report.FullySuccessful,
			Incomplete:      report.Incomplete,
			ReportURI:       reportURI,
		}
		if report.TotalURLs > 0 {
			event.SuccessRate = float64(report.FullySuccessful) / float64(report.TotalURLs)
		}
		id, err := w.pub.Publish(ctx, w.topic, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run event: %w", err))
		} else {
			w.logger.Info("run event published",
				zap.String("message_id", id),
				zap.String("run_id", report.RunID),
			)
		}
	}

	return errors.Join(errs...)
}
