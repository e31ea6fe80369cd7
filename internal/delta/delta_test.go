package delta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
)

func quarterAt(period string, revenue, cfo float64) *model.CompanyQuarter {
	return &model.CompanyQuarter{
		Ticker:     "AAPL",
		Period:     period,
		IncomeStmt: map[string]float64{"Revenue": revenue},
		CashFlow:   map[string]float64{"CFO": cfo},
	}
}

func TestCompute_QoQAndYoY(t *testing.T) {
	history := []*model.CompanyQuarter{
		quarterAt("2023-Q2", 800, 300),
		quarterAt("2024-Q1", 950, 350),
		quarterAt("2024-Q2", 1000, 400),
	}

	deltas, err := Compute(history)
	require.NoError(t, err)

	revenue := deltas["Revenue"]
	require.NotNil(t, revenue.Current)
	assert.InDelta(t, 1000, *revenue.Current, 1e-9)
	require.NotNil(t, revenue.QoQ)
	assert.InDelta(t, 50, *revenue.QoQ, 1e-9)
	require.NotNil(t, revenue.YoY)
	assert.InDelta(t, 200, *revenue.YoY, 1e-9)
	require.NotNil(t, revenue.YoYPercent)
	assert.InDelta(t, 0.25, *revenue.YoYPercent, 1e-9)

	cfo := deltas["CFO"]
	require.NotNil(t, cfo.QoQPercent)
	assert.InDelta(t, 0.142857, *cfo.QoQPercent, 1e-3)
}

func TestCompute_LatestQuarterWinsRegardlessOfOrder(t *testing.T) {
	history := []*model.CompanyQuarter{
		quarterAt("2024-Q1", 950, 350),
		quarterAt("2023-Q4", 900, 320),
		quarterAt("2023-Q2", 800, 300),
	}

	deltas, err := Compute(history)
	require.NoError(t, err)

	// Current is 2024-Q1; the prior quarter crosses the year boundary.
	revenue := deltas["Revenue"]
	require.NotNil(t, revenue.QoQ)
	assert.InDelta(t, 50, *revenue.QoQ, 1e-9)
	// 2023-Q1 is not in history, so the year-ago legs stay nil.
	assert.Nil(t, revenue.YoY)
	assert.Nil(t, revenue.YoYPercent)
}

func TestCompute_ZeroBaseLeavesPercentNil(t *testing.T) {
	history := []*model.CompanyQuarter{
		quarterAt("2024-Q1", 0, 350),
		quarterAt("2024-Q2", 1000, 400),
	}

	deltas, err := Compute(history)
	require.NoError(t, err)

	revenue := deltas["Revenue"]
	require.NotNil(t, revenue.QoQ)
	assert.InDelta(t, 1000, *revenue.QoQ, 1e-9)
	assert.Nil(t, revenue.QoQPercent, "percent against a zero base is NA, not infinity")
}

func TestCompute_MissingBaseQuarterLeavesDeltasNil(t *testing.T) {
	deltas, err := Compute([]*model.CompanyQuarter{quarterAt("2024-Q2", 1000, 400)})
	require.NoError(t, err)

	revenue := deltas["Revenue"]
	require.NotNil(t, revenue.Current)
	assert.Nil(t, revenue.QoQ)
	assert.Nil(t, revenue.QoQPercent)
	assert.Nil(t, revenue.YoY)
	assert.Nil(t, revenue.YoYPercent)
}

func TestCompute_MetricAbsentFromCurrentIsOmitted(t *testing.T) {
	deltas, err := Compute([]*model.CompanyQuarter{quarterAt("2024-Q2", 1000, 400)})
	require.NoError(t, err)

	_, ok := deltas["Gross Profit"]
	assert.False(t, ok)
	_, ok = deltas["Net Debt"]
	assert.False(t, ok)
}

func TestCompute_DerivedMetrics(t *testing.T) {
	current := &model.CompanyQuarter{
		Ticker: "AAPL",
		Period: "2024-Q2",
		IncomeStmt: map[string]float64{
			"NetIncome": 120,
		},
		BalanceSheet: map[string]float64{
			"TotalDebt":   500,
			"Cash":        200,
			"TotalAssets": 4000,
		},
		CashFlow: map[string]float64{
			"CFO":   400,
			"CapEx": -100,
		},
		Metadata: map[string]any{
			model.MetaValuation: map[string]any{"shares_diluted": 910.0},
		},
	}

	deltas, err := Compute([]*model.CompanyQuarter{current})
	require.NoError(t, err)

	owner := deltas["Owner Earnings"]
	require.NotNil(t, owner.Current)
	assert.InDelta(t, 300, *owner.Current, 1e-9)

	netDebt := deltas["Net Debt"]
	require.NotNil(t, netDebt.Current)
	assert.InDelta(t, 300, *netDebt.Current, 1e-9)

	accruals := deltas["Accruals Ratio"]
	require.NotNil(t, accruals.Current)
	assert.InDelta(t, (120.0-400.0)/4000.0, *accruals.Current, 1e-9)

	shares := deltas["Shares Diluted"]
	require.NotNil(t, shares.Current)
	assert.InDelta(t, 910, *shares.Current, 1e-9)
}

func TestCompute_SharesDilutedFallsBackToMetadata(t *testing.T) {
	current := quarterAt("2024-Q2", 1000, 400)
	current.Metadata = map[string]any{model.MetaSharesDiluted: 450.0}

	deltas, err := Compute([]*model.CompanyQuarter{current})
	require.NoError(t, err)

	shares := deltas["Shares Diluted"]
	require.NotNil(t, shares.Current)
	assert.InDelta(t, 450, *shares.Current, 1e-9)
}

func TestCompute_IsIdempotent(t *testing.T) {
	history := []*model.CompanyQuarter{
		quarterAt("2023-Q2", 800, 300),
		quarterAt("2024-Q1", 950, 350),
		quarterAt("2024-Q2", 1000, 400),
	}

	first, err := Compute(history)
	require.NoError(t, err)
	second, err := Compute(history)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestCompute_InputErrors(t *testing.T) {
	_, err := Compute(nil)
	assert.Error(t, err)

	_, err = Compute([]*model.CompanyQuarter{{Ticker: "AAPL", Period: "FY2024"}})
	assert.Error(t, err)
}

func TestTrackedMetrics_Order(t *testing.T) {
	names := TrackedMetrics()
	require.Len(t, names, 11)
	assert.Equal(t, "Revenue", names[0])
	assert.Equal(t, "Shares Diluted", names[10])
}
