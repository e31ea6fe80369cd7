package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, cfg), st
}

func seedReport(t *testing.T, st store.Store) *model.Report {
	t.Helper()
	report := &model.Report{
		Ticker:      "ACME",
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Analyst: model.AnalystSection{
			Headline: "Mature path. Hard gates: PASS. QA: PASS.",
			Path:     model.PathMature,
			Metrics: []model.Metric{
				{Name: "Gross Margin", Value: model.F(0.45), Unit: "ratio", Period: "TTM-2024Q2"},
				{Name: "Revenue", Value: model.F(43e9), Unit: "USD", Period: "TTM-2024Q2"},
			},
		},
		Verifier: model.NewQAResult(nil),
		Delta: map[string]model.DeltaEntry{
			"Revenue": {Current: model.F(11.2e9), QoQ: model.F(0.3e9)},
		},
	}
	require.NoError(t, st.SaveReport(context.Background(), report))
	return report
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{})
	rec := get(t, srv.Handler(config.ServerConfig{}), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ReportFound(t *testing.T) {
	srv, st := newTestServer(t, config.ServerConfig{})
	seedReport(t, st)

	rec := get(t, srv.Handler(config.ServerConfig{}), "/reports/acme")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ACME", got.Ticker)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.QAPass, got.Verifier.Status)
}

func TestServer_ReportMissingIs404(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{})

	rec := get(t, srv.Handler(config.ServerConfig{}), "/reports/GHOST")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no report for GHOST")
}

func TestServer_DeltaProjection(t *testing.T) {
	srv, st := newTestServer(t, config.ServerConfig{})
	seedReport(t, st)

	rec := get(t, srv.Handler(config.ServerConfig{}), "/reports/ACME/delta")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Ticker string                     `json:"ticker"`
		Delta  map[string]model.DeltaEntry `json:"delta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ACME", got.Ticker)
	require.Contains(t, got.Delta, "Revenue")
	assert.InDelta(t, 11.2e9, *got.Delta["Revenue"].Current, 1)
	assert.NotContains(t, rec.Body.String(), "output_0", "delta endpoint omits the analyst section")
}

func TestServer_TriggersListEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{})

	rec := get(t, srv.Handler(config.ServerConfig{}), "/triggers/ACME")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_AlertsAgainstStoredReport(t *testing.T) {
	srv, st := newTestServer(t, config.ServerConfig{})
	seedReport(t, st)
	srv.now = func() time.Time { return time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, st.AddTrigger(context.Background(), model.Trigger{
		ID:        "t-gm",
		Ticker:    "ACME",
		Metric:    "Gross Margin",
		Threshold: 0.50,
		Operator:  model.OpGTE,
		Deadline:  "2024-12-31",
		CreatedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}))

	rec := get(t, srv.Handler(config.ServerConfig{}), "/triggers/ACME/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []model.TriggerAlert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertBreach, alerts[0].Status)
	assert.Equal(t, "Gross Margin", alerts[0].Trigger.Metric)
}

func TestServer_AlertsWithoutReportArePending(t *testing.T) {
	srv, st := newTestServer(t, config.ServerConfig{})
	srv.now = func() time.Time { return time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, st.AddTrigger(context.Background(), model.Trigger{
		ID:        "t-rev",
		Ticker:    "ACME",
		Metric:    "Revenue",
		Threshold: 1e9,
		Operator:  model.OpGTE,
		Deadline:  "2024-12-31",
	}))

	rec := get(t, srv.Handler(config.ServerConfig{}), "/triggers/ACME/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []model.TriggerAlert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPending, alerts[0].Status)
}

func TestServer_RateLimitReturns429(t *testing.T) {
	cfg := config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}
	srv, _ := newTestServer(t, cfg)
	handler := srv.Handler(cfg)

	first := get(t, handler, "/health")
	assert.Equal(t, http.StatusOK, first.Code)

	second := get(t, handler, "/health")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "rate limit exceeded")
}
