package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/triggers"
)

func newCmdTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCmdTrigger(t *testing.T, st store.Store, ticker, metric string, threshold float64) model.Trigger {
	t.Helper()

	trig, err := triggers.NewTrigger(ticker, metric, threshold, model.OpGTE, "2024-12-31")
	require.NoError(t, err)
	require.NoError(t, st.AddTrigger(context.Background(), trig))
	return trig
}

func TestEvaluateTickerTriggers_NoReportProjectsPending(t *testing.T) {
	st := newCmdTestStore(t)
	seedCmdTrigger(t, st, "ACME", "Gross Margin", 0.50)

	today := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	alerts, err := evaluateTickerTriggers(context.Background(), st, "ACME", today)
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPending, alerts[0].Status)
}

func TestEvaluateTickerTriggers_BreachAgainstStoredReport(t *testing.T) {
	st := newCmdTestStore(t)
	seedCmdTrigger(t, st, "ACME", "Gross Margin", 0.50)

	report := &model.Report{
		Ticker:      "ACME",
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Analyst: model.AnalystSection{
			Metrics: []model.Metric{
				{Name: "Gross Margin", Value: model.F(0.45), Unit: "ratio"},
			},
		},
		Verifier: model.NewQAResult(nil),
	}
	require.NoError(t, st.SaveReport(context.Background(), report))

	today := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	alerts, err := evaluateTickerTriggers(context.Background(), st, "ACME", today)
	require.NoError(t, err)

	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertBreach, alerts[0].Status)
	assert.Contains(t, alerts[0].Message, "Gross Margin")
}

func TestEvaluateTickerTriggers_NoDefinitionsIsEmpty(t *testing.T) {
	st := newCmdTestStore(t)

	alerts, err := evaluateTickerTriggers(context.Background(), st, "ACME", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestReportMetricValues_SkipsAbstained(t *testing.T) {
	report := &model.Report{
		Analyst: model.AnalystSection{
			Metrics: []model.Metric{
				{Name: "Revenue (TTM)", Value: model.F(43e9)},
				{Name: "NRR", Text: "ABSTAIN"},
			},
		},
	}

	values := reportMetricValues(report)

	assert.Equal(t, map[string]float64{"Revenue (TTM)": 43e9}, values)
}

func TestFormatTriggerList(t *testing.T) {
	trig, err := triggers.NewTrigger("ACME", "Net Leverage", 1.0, model.OpLTE, "2025-03-31")
	require.NoError(t, err)

	var buf bytes.Buffer
	formatTriggerList(&buf, []model.Trigger{trig})

	out := buf.String()
	assert.Contains(t, out, "METRIC")
	assert.Contains(t, out, "Net Leverage")
	assert.Contains(t, out, "lte 1")
	assert.Contains(t, out, "2025-03-31")
}

func TestFormatAlerts(t *testing.T) {
	trig, err := triggers.NewTrigger("ACME", "Gross Margin", 0.50, model.OpGTE, "2024-12-31")
	require.NoError(t, err)

	var buf bytes.Buffer
	formatAlerts(&buf, []model.TriggerAlert{
		{
			Trigger:       trig,
			Status:        model.AlertBreach,
			Message:       "Breach detected for Gross Margin: value 0.45",
			DaysRemaining: 169,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "BREACH")
	assert.Contains(t, out, "169")
	assert.Contains(t, out, "Breach detected for Gross Margin")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0f47a9c2", truncateID("0f47a9c2-77aa-4f30-9c1e-2f6f6f0a1b2c"))
	assert.Equal(t, "short", truncateID("short"))
}
