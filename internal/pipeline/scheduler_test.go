package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/parse"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	respond func(url string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.respond(rawURL)
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// markerExtractor maps raw-text markers to extraction shapes so tests
// can steer success and partial outcomes per URL.
type markerExtractor struct{}

func (markerExtractor) Parse(raw string) parse.Extraction {
	var out parse.Extraction
	if strings.Contains(raw, "views-ok") {
		out.Views, out.HasViews = 1000, true
	}
	if strings.Contains(raw, "content-ok") {
		out.Content, out.HasContent = "a full sentence of content.", true
	}
	return out
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func makeURLs(n int) []DiscoveredURL {
	urls := make([]DiscoveredURL, n)
	for i := range urls {
		urls[i] = DiscoveredURL{
			URL:           fmt.Sprintf("https://feed.example/p/post%03d", i),
			PostID:        fmt.Sprintf("post%03d", i),
			DiscoveryRank: i,
		}
	}
	return urls
}

func fullBody(string) (string, error) { return "views-ok content-ok", nil }

func newTestScheduler(t *testing.T, primary, secondary Fetcher, cfg SchedulerConfig) *Scheduler {
	t.Helper()
	s, err := NewScheduler(primary, secondary, markerExtractor{}, nil, nil,
		fixedClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}, cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSchedulerBatchAssignment(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: fullBody}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   10,
		SecondaryBatchSize: 20,
		Workers:            4,
	})

	urls := makeURLs(25)
	results := s.Run(context.Background(), urls)

	require.Len(t, results, 25)
	require.Equal(t, 10, primary.total())
	require.Equal(t, 15, secondary.total())

	for i, res := range results {
		require.Equal(t, urls[i].URL, res.URL, "input order must be preserved")
		if i < 10 {
			require.Equal(t, LanePrimary, res.Lane)
		} else {
			require.Equal(t, LaneSecondary, res.Lane)
		}
		require.True(t, res.Success())
	}
}

func TestSchedulerRotationWrapsAround(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: fullBody}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   3,
		SecondaryBatchSize: 5,
		Workers:            2,
	})

	results := s.Run(context.Background(), makeURLs(14))
	require.Len(t, results, 14)
	// 3 primary, 5 secondary, 3 primary, 3 secondary
	require.Equal(t, 6, primary.total())
	require.Equal(t, 8, secondary.total())
	wantLanes := []Lane{
		LanePrimary, LanePrimary, LanePrimary,
		LaneSecondary, LaneSecondary, LaneSecondary, LaneSecondary, LaneSecondary,
		LanePrimary, LanePrimary, LanePrimary,
		LaneSecondary, LaneSecondary, LaneSecondary,
	}
	for i, res := range results {
		require.Equal(t, wantLanes[i], res.Lane, "index %d", i)
	}
}

func TestSchedulerFallbackRetriesFailedSecondaryOnce(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: func(string) (string, error) {
		return "", errors.New("renderer crashed")
	}}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   10,
		SecondaryBatchSize: 20,
		Workers:            4,
	})

	urls := makeURLs(25)
	results := s.Run(context.Background(), urls)
	require.Len(t, results, 25)

	for i, res := range results {
		if i < 10 {
			require.Equal(t, LanePrimary, res.Lane)
			continue
		}
		require.Equal(t, LanePrimaryFallback, res.Lane)
		require.True(t, res.Success(), "fallback should have recovered %s", res.URL)
		require.Equal(t, 1, secondary.callCount(res.URL), "exactly one secondary attempt")
		require.Equal(t, 1, primary.callCount(res.URL), "exactly one fallback attempt")
	}
	// 10 original + 15 fallback retries.
	require.Equal(t, 25, primary.total())
}

func TestSchedulerFallbackRunsBeforeNextBatch(t *testing.T) {
	var mu sync.Mutex
	var order []string
	logged := func(label string, respond func(string) (string, error)) func(string) (string, error) {
		return func(url string) (string, error) {
			mu.Lock()
			order = append(order, label+":"+url[strings.LastIndex(url, "/")+1:])
			mu.Unlock()
			return respond(url)
		}
	}
	primary := &fakeFetcher{respond: logged("primary", fullBody)}
	secondary := &fakeFetcher{respond: logged("secondary", func(string) (string, error) {
		return "", errors.New("renderer crashed")
	})}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   1,
		SecondaryBatchSize: 1,
		Workers:            1,
	})

	results := s.Run(context.Background(), makeURLs(4))
	require.Len(t, results, 4)
	require.Equal(t, LanePrimaryFallback, results[1].Lane)
	require.Equal(t, LanePrimaryFallback, results[3].Lane)

	// Each secondary failure is retried through primary before the
	// rotation moves on to the next batch.
	want := []string{
		"primary:post000",
		"secondary:post001",
		"primary:post001",
		"primary:post002",
		"secondary:post003",
		"primary:post003",
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, order)
}

func TestSchedulerPartialSecondaryTriggersFallback(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: func(string) (string, error) {
		// Fetch succeeds but views never validate.
		return "content-ok", nil
	}}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   2,
		SecondaryBatchSize: 2,
		Workers:            2,
	})

	results := s.Run(context.Background(), makeURLs(4))
	require.Len(t, results, 4)
	require.Equal(t, LanePrimaryFallback, results[2].Lane)
	require.Equal(t, LanePrimaryFallback, results[3].Lane)
	require.True(t, results[2].Success())
}

func TestSchedulerPrimaryFailureIsNotRetried(t *testing.T) {
	primary := &fakeFetcher{respond: func(string) (string, error) {
		return "", errors.New("rate limited")
	}}
	secondary := &fakeFetcher{respond: fullBody}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   2,
		SecondaryBatchSize: 2,
		Workers:            2,
	})

	urls := makeURLs(2)
	results := s.Run(context.Background(), urls)
	require.Len(t, results, 2)
	for _, res := range results {
		require.Equal(t, LanePrimary, res.Lane)
		require.True(t, res.Failed())
		require.Equal(t, 1, primary.callCount(res.URL))
	}
}

func TestSchedulerFallbackHonorsShorterTimeout(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	slowOnRetry := false
	var mu sync.Mutex
	primary.respond = func(string) (string, error) {
		mu.Lock()
		slow := slowOnRetry
		mu.Unlock()
		if slow {
			time.Sleep(50 * time.Millisecond)
			return "", context.DeadlineExceeded
		}
		return "views-ok content-ok", nil
	}
	secondary := &fakeFetcher{respond: func(string) (string, error) {
		mu.Lock()
		slowOnRetry = true
		mu.Unlock()
		return "", errors.New("renderer crashed")
	}}
	s := newTestScheduler(t, primary, secondary, SchedulerConfig{
		PrimaryBatchSize:   1,
		SecondaryBatchSize: 1,
		Workers:            1,
		FallbackTimeout:    10 * time.Millisecond,
	})

	results := s.Run(context.Background(), makeURLs(2))
	require.Len(t, results, 2)
	require.Equal(t, LanePrimaryFallback, results[1].Lane)
	require.True(t, results[1].Failed())
	require.NotEmpty(t, results[1].Error)
}

type recordingRecorder struct {
	mu       sync.Mutex
	fetches  []string
	outcomes map[string]int
	fields   map[string]int
}

func (r *recordingRecorder) ObserveFetch(lane string, _ time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, fmt.Sprintf("%s/%t", lane, failed))
}

func (r *recordingRecorder) IncExtraction(lane string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[lane+"/"+outcome]++
}

func (r *recordingRecorder) ObserveFields(fields map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fields == nil {
		r.fields = map[string]int{}
	}
	for name, ok := range fields {
		if ok {
			r.fields[name]++
		}
	}
}

func TestSchedulerRecordsOutcomesAndFields(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: func(string) (string, error) {
		return "", errors.New("renderer crashed")
	}}
	rec := &recordingRecorder{}
	s, err := NewScheduler(primary, secondary, markerExtractor{}, nil, rec,
		fixedClock{t: time.Now()}, SchedulerConfig{
			PrimaryBatchSize:   2,
			SecondaryBatchSize: 2,
			Workers:            2,
		}, zap.NewNop())
	require.NoError(t, err)

	s.Run(context.Background(), makeURLs(4))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 2, rec.outcomes["primary/success"])
	require.Equal(t, 2, rec.outcomes["secondary/fetch_error"])
	require.Equal(t, 2, rec.outcomes["primary_fallback/success"])
	// Validated fields are only observed for fetches that returned a body:
	// two primary plus two recovered fallback extractions.
	require.Equal(t, 4, rec.fields["views"])
	require.Equal(t, 4, rec.fields["content"])
	require.Zero(t, rec.fields["likes"])
	require.Len(t, rec.fetches, 6)
}

type recordingSink struct {
	mu    sync.Mutex
	saved map[string]string
}

func (r *recordingSink) SaveSnapshot(_ context.Context, postID, raw string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = map[string]string{}
	}
	r.saved[postID] = raw
	return "mem://" + postID, nil
}

func TestSchedulerRetainsSnapshots(t *testing.T) {
	primary := &fakeFetcher{respond: fullBody}
	secondary := &fakeFetcher{respond: fullBody}
	sink := &recordingSink{}
	s, err := NewScheduler(primary, secondary, markerExtractor{}, sink, nil,
		fixedClock{t: time.Now()}, SchedulerConfig{Workers: 2}, zap.NewNop())
	require.NoError(t, err)

	s.Run(context.Background(), makeURLs(3))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.saved, 3)
	require.Contains(t, sink.saved["post000"], "views-ok")
}

func TestNewSchedulerValidation(t *testing.T) {
	clk := fixedClock{t: time.Now()}
	f := &fakeFetcher{respond: fullBody}

	_, err := NewScheduler(nil, f, markerExtractor{}, nil, nil, clk, SchedulerConfig{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewScheduler(f, f, nil, nil, nil, clk, SchedulerConfig{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewScheduler(f, f, markerExtractor{}, nil, nil, nil, SchedulerConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestSchedulerEmptyInput(t *testing.T) {
	s := newTestScheduler(t, &fakeFetcher{respond: fullBody}, &fakeFetcher{respond: fullBody}, SchedulerConfig{})
	require.Nil(t, s.Run(context.Background(), nil))
}
