package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/metrics"
	"github.com/feedlens/feedlens/internal/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	metrics.Init()
	return NewServer(zap.NewNop())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestRunNotFoundBeforeFirstRun(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunReturnsReport(t *testing.T) {
	s := newTestServer(t)
	s.SetLatestReport(pipeline.Report{
		RunID:           "run-42",
		Target:          "acct",
		TotalURLs:       25,
		FullySuccessful: 21,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "run-42", report.RunID)
	require.Equal(t, 25, report.TotalURLs)
}

func TestLatestRunReflectsNewerRuns(t *testing.T) {
	s := newTestServer(t)
	s.SetLatestReport(pipeline.Report{RunID: "run-1"})
	s.SetLatestReport(pipeline.Report{RunID: "run-2"})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "run-2", report.RunID)
}
