package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/parse"
)

// Extractor parses one raw rendition into validated engagement fields.
// *parse.Parser satisfies it.
type Extractor interface {
	Parse(raw string) parse.Extraction
}

// MetricsRecorder receives per-fetch and per-extraction observations.
// A nil recorder disables instrumentation.
type MetricsRecorder interface {
	ObserveFetch(lane string, d time.Duration, failed bool)
	IncExtraction(lane string, outcome string)
	ObserveFields(fields map[string]bool)
}

// SchedulerConfig tunes the dual-backend rotation.
type SchedulerConfig struct {
	PrimaryBatchSize   int
	SecondaryBatchSize int
	Workers            int
	FallbackTimeout    time.Duration
	InterBatchDelay    time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.PrimaryBatchSize <= 0 {
		c.PrimaryBatchSize = 10
	}
	if c.SecondaryBatchSize <= 0 {
		c.SecondaryBatchSize = 20
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = 10 * time.Second
	}
	return c
}

// Scheduler splits the discovered URLs into alternating primary and
// secondary batches and runs each batch through a bounded worker pool.
// Failed secondary items are retried exactly once through the primary
// lane, immediately after their batch and before the next one starts.
type Scheduler struct {
	primary   Fetcher
	secondary Fetcher
	extractor Extractor
	snapshots SnapshotSink
	recorder  MetricsRecorder
	clock     Clock
	cfg       SchedulerConfig
	logger    *zap.Logger
}

// NewScheduler wires the two fetch lanes to the extractor. snapshots and
// recorder may be nil.
func NewScheduler(
	primary, secondary Fetcher,
	extractor Extractor,
	snapshots SnapshotSink,
	recorder MetricsRecorder,
	clock Clock,
	cfg SchedulerConfig,
	logger *zap.Logger,
) (*Scheduler, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("both fetch lanes are required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Scheduler{
		primary:   primary,
		secondary: secondary,
		extractor: extractor,
		snapshots: snapshots,
		recorder:  recorder,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}, nil
}

// Run processes every discovered URL and returns exactly one result per
// input, in input order.
func (s *Scheduler) Run(ctx context.Context, urls []DiscoveredURL) []ExtractionResult {
	if len(urls) == 0 {
		return nil
	}

	batches := s.planBatches(urls)
	byURL := make(map[string]ExtractionResult, len(urls))
	var mu sync.Mutex

	for _, batch := range batches {
		s.logger.Info("dispatching batch",
			zap.Int("sequence", batch.SequenceNo),
			zap.String("lane", string(batch.Lane)),
			zap.Int("size", len(batch.urls)),
		)
		s.runBatch(ctx, batch, &mu, byURL)
		if batch.Lane == LaneSecondary {
			s.runFallback(ctx, batch.urls, &mu, byURL)
		}
		if s.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(s.cfg.InterBatchDelay):
			case <-ctx.Done():
			}
		}
	}

	results := make([]ExtractionResult, 0, len(urls))
	for _, u := range urls {
		mu.Lock()
		res, ok := byURL[u.URL]
		mu.Unlock()
		if !ok {
			res = ExtractionResult{
				URL:       u.URL,
				PostID:    u.PostID,
				Error:     "never dispatched",
				Timestamp: s.clock.Now(),
			}
		}
		results = append(results, res)
	}
	return results
}

// laneBatch pairs a FetchBatch with its source items.
type laneBatch struct {
	FetchBatch
	urls []DiscoveredURL
}

// planBatches alternates primary- and secondary-sized slices over the
// input until it is exhausted.
func (s *Scheduler) planBatches(urls []DiscoveredURL) []laneBatch {
	var batches []laneBatch
	lane := LanePrimary
	seq := 0
	for i := 0; i < len(urls); {
		size := s.cfg.PrimaryBatchSize
		if lane == LaneSecondary {
			size = s.cfg.SecondaryBatchSize
		}
		end := i + size
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[i:end]
		raw := make([]string, len(chunk))
		for j, u := range chunk {
			raw[j] = u.URL
		}
		batches = append(batches, laneBatch{
			FetchBatch: FetchBatch{URLs: raw, Lane: lane, SequenceNo: seq},
			urls:       chunk,
		})
		i = end
		seq++
		if lane == LanePrimary {
			lane = LaneSecondary
		} else {
			lane = LanePrimary
		}
	}
	return batches
}

// runBatch fetches and parses every item in the batch through a bounded
// worker pool.
func (s *Scheduler) runBatch(ctx context.Context, batch laneBatch, mu *sync.Mutex, byURL map[string]ExtractionResult) {
	fetcher := s.primary
	if batch.Lane == LaneSecondary {
		fetcher = s.secondary
	}

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for _, item := range batch.urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(u DiscoveredURL) {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.processOne(ctx, fetcher, batch.Lane, u)
			mu.Lock()
			byURL[u.URL] = res
			mu.Unlock()
		}(item)
	}
	wg.Wait()
}

// runFallback resubmits the batch's failed secondary items to the
// primary backend once, under a shorter deadline, before the next batch
// is dispatched.
func (s *Scheduler) runFallback(ctx context.Context, urls []DiscoveredURL, mu *sync.Mutex, byURL map[string]ExtractionResult) {
	var retry []DiscoveredURL
	mu.Lock()
	for _, u := range urls {
		res, ok := byURL[u.URL]
		if ok && res.Lane == LaneSecondary && res.Failed() {
			retry = append(retry, u)
		}
	}
	mu.Unlock()
	if len(retry) == 0 {
		return
	}

	s.logger.Info("retrying failed secondary items via primary fallback",
		zap.Int("count", len(retry)),
		zap.Duration("timeout", s.cfg.FallbackTimeout),
	)

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for _, item := range retry {
		wg.Add(1)
		sem <- struct{}{}
		go func(u DiscoveredURL) {
			defer wg.Done()
			defer func() { <-sem }()
			fbCtx, cancel := context.WithTimeout(ctx, s.cfg.FallbackTimeout)
			defer cancel()
			res := s.processOne(fbCtx, s.primary, LanePrimaryFallback, u)
			mu.Lock()
			byURL[u.URL] = res
			mu.Unlock()
		}(item)
	}
	wg.Wait()
}

// processOne fetches one URL on the given lane and parses the rendition.
func (s *Scheduler) processOne(ctx context.Context, fetcher Fetcher, lane Lane, u DiscoveredURL) ExtractionResult {
	res := ExtractionResult{
		URL:       u.URL,
		PostID:    u.PostID,
		Lane:      lane,
		Timestamp: s.clock.Now(),
	}

	start := time.Now()
	raw, err := fetcher.Fetch(ctx, u.URL)
	if s.recorder != nil {
		s.recorder.ObserveFetch(string(lane), time.Since(start), err != nil)
	}
	if err != nil {
		res.Error = err.Error()
		s.logger.Warn("fetch failed",
			zap.String("url", u.URL),
			zap.String("lane", string(lane)),
			zap.Error(err),
		)
		s.recordOutcome(lane, res)
		return res
	}

	res.RawLength = len(raw)
	ext := s.extractor.Parse(raw)
	res.Views, res.HasViews = ext.Views, ext.HasViews
	res.Likes, res.HasLikes = ext.Likes, ext.HasLikes
	res.Comments, res.HasComments = ext.Comments, ext.HasComments
	res.Reposts, res.HasReposts = ext.Reposts, ext.HasReposts
	res.Shares, res.HasShares = ext.Shares, ext.HasShares
	res.Content, res.HasContent = ext.Content, ext.HasContent

	if s.snapshots != nil && u.PostID != "" {
		if _, snapErr := s.snapshots.SaveSnapshot(ctx, u.PostID, raw); snapErr != nil {
			s.logger.Warn("snapshot retention failed",
				zap.String("post_id", u.PostID),
				zap.Error(snapErr),
			)
		}
	}

	s.recordOutcome(lane, res)
	return res
}

func (s *Scheduler) recordOutcome(lane Lane, res ExtractionResult) {
	if s.recorder == nil {
		return
	}
	outcome := "success"
	switch {
	case res.Error != "":
		outcome = "fetch_error"
	case !res.Success():
		outcome = "partial"
	}
	s.recorder.IncExtraction(string(lane), outcome)
	if res.Error == "" {
		s.recorder.ObserveFields(map[string]bool{
			"views":    res.HasViews,
			"likes":    res.HasLikes,
			"comments": res.HasComments,
			"reposts":  res.HasReposts,
			"shares":   res.HasShares,
			"content":  res.HasContent,
		})
	}
}
