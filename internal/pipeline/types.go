// Package pipeline defines core types shared across the extraction subsystems
// and implements the rotation scheduler and result aggregator.
package pipeline

import (
	"time"
)

// Lane identifies which fetch backend produced an extraction result.
type Lane string

// Lane values recorded on every ExtractionResult.
const (
	LanePrimary         Lane = "primary"
	LaneSecondary       Lane = "secondary"
	LanePrimaryFallback Lane = "primary_fallback"
)

// DiscoveredURL is one feed item found during the scroll loop.
// Immutable once recorded.
type DiscoveredURL struct {
	URL           string `json:"url"`
	PostID        string `json:"post_id"`
	DiscoveryRank int    `json:"discovery_rank"`
}

// FetchBatch is one slice of URLs dispatched to a single lane.
type FetchBatch struct {
	URLs       []string
	Lane       Lane
	SequenceNo int
}

// ExtractionResult holds everything extracted for one URL. Exactly one is
// produced per input URL, whether the fetch succeeded or not.
type ExtractionResult struct {
	URL         string    `json:"url"`
	PostID      string    `json:"post_id,omitempty"`
	Views       int64     `json:"views,omitempty"`
	Likes       int64     `json:"likes,omitempty"`
	Comments    int64     `json:"comments,omitempty"`
	Reposts     int64     `json:"reposts,omitempty"`
	Shares      int64     `json:"shares,omitempty"`
	Content     string    `json:"content,omitempty"`
	HasViews    bool      `json:"has_views"`
	HasLikes    bool      `json:"has_likes"`
	HasComments bool      `json:"has_comments"`
	HasReposts  bool      `json:"has_reposts"`
	HasShares   bool      `json:"has_shares"`
	HasContent  bool      `json:"has_content"`
	Lane        Lane      `json:"lane"`
	RawLength   int       `json:"raw_length"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Success reports whether both the primary engagement count and the main
// content validated. Partial extractions are recorded but not successful.
func (r ExtractionResult) Success() bool {
	return r.HasViews && r.HasContent
}

// Failed reports whether the fetch or required-field validation missed,
// which makes the URL eligible for the primary fallback lane.
func (r ExtractionResult) Failed() bool {
	return r.Error != "" || !r.Success()
}

// PhaseTimings records wall-clock spans for the two pipeline phases.
type PhaseTimings struct {
	DiscoveryStart  time.Time `json:"discovery_start"`
	DiscoveryEnd    time.Time `json:"discovery_end"`
	ExtractionStart time.Time `json:"extraction_start"`
	ExtractionEnd   time.Time `json:"extraction_end"`
}

// DiscoveryDuration returns the elapsed discovery phase time.
func (t PhaseTimings) DiscoveryDuration() time.Duration {
	return t.DiscoveryEnd.Sub(t.DiscoveryStart)
}

// ExtractionDuration returns the elapsed extraction phase time.
func (t PhaseTimings) ExtractionDuration() time.Duration {
	return t.ExtractionEnd.Sub(t.ExtractionStart)
}

// PipelineRun is the assembled output of one discovery+extraction cycle.
// Results preserve input URL order regardless of internal batch interleaving.
type PipelineRun struct {
	RunID      string             `json:"run_id"`
	Target     string             `json:"target"`
	Discovered []DiscoveredURL    `json:"discovered"`
	Results    []ExtractionResult `json:"results"`
	Timings    PhaseTimings       `json:"timings"`
	Incomplete bool               `json:"incomplete"`
}

// LaneCounts aggregates per-lane outcomes.
type LaneCounts struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
}

// FieldRate records how often one engagement field validated.
type FieldRate struct {
	Extracted int     `json:"extracted"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

// Report is the finalized, persistable summary of a PipelineRun.
type Report struct {
	RunID                string               `json:"run_id"`
	Target               string               `json:"target"`
	GeneratedAt          time.Time            `json:"generated_at"`
	TotalURLs            int                  `json:"total_urls"`
	FullySuccessful      int                  `json:"fully_successful"`
	Lanes                map[Lane]LaneCounts  `json:"lanes"`
	Fields               map[string]FieldRate `json:"fields"`
	DiscoverySeconds     float64              `json:"discovery_seconds"`
	ExtractionSeconds    float64              `json:"extraction_seconds"`
	DiscoveryThroughput  float64              `json:"discovery_urls_per_second"`
	ExtractionThroughput float64              `json:"extraction_urls_per_second"`
	Incomplete           bool                 `json:"incomplete"`
	Results              []ExtractionResult   `json:"results"`
}
