package gates

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
)

func matureHistory() []model.CompanyQuarter {
	history := make([]model.CompanyQuarter, 0, 8)
	for i := 0; i < 8; i++ {
		year := 2022 + i/4
		q := i%4 + 1
		history = append(history, model.CompanyQuarter{
			Ticker:       "ACME",
			Period:       fmt.Sprintf("%d-Q%d", year, q),
			BalanceSheet: map[string]float64{"TotalDebt": 1.0e9, "Cash": 2.0e9},
			Segments: map[string]map[string]float64{
				"Marketplace": {"Revenue": 1.5e9},
			},
			Metadata: map[string]any{
				model.MetaTTM: map[string]float64{
					"FCF":  1.2e9,
					"EBIT": 1.0e9,
				},
			},
		})
	}
	return history
}

func TestDeterminePath_AllChecksHoldMeansMature(t *testing.T) {
	decision := DeterminePath(matureHistory())
	assert.Equal(t, model.PathMature, decision.Path)
	assert.Empty(t, decision.Reasons)
}

func TestDeterminePath_EachFailingCheckIsARecordedReason(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]model.CompanyQuarter) []model.CompanyQuarter
		reason string
	}{
		{
			"negative ttm fcf",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				h[len(h)-1].Metadata[model.MetaTTM].(map[string]float64)["FCF"] = -0.1e9
				return h
			},
			"TTM FCF <= 0",
		},
		{
			"negative operating income",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				h[len(h)-1].Metadata[model.MetaTTM].(map[string]float64)["EBIT"] = -0.2e9
				return h
			},
			"TTM EBIT < 0",
		},
		{
			"leveraged past one turn",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				h[len(h)-1].BalanceSheet = map[string]float64{"TotalDebt": 5.0e9, "Cash": 1.0e9}
				return h
			},
			"Net leverage >1x or net debt positive",
		},
		{
			"short segment history",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				return h[2:]
			},
			"Segment disclosure < 8 quarters",
		},
		{
			"segment gap inside the window",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				h[5].Segments = nil
				return h
			},
			"Segment disclosure < 8 quarters",
		},
		{
			"period gap breaks the streak",
			func(h []model.CompanyQuarter) []model.CompanyQuarter {
				h[3].Period = "2021-Q4"
				return h
			},
			"Segment disclosure < 8 quarters",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := DeterminePath(tc.mutate(matureHistory()))
			assert.Equal(t, model.PathEmergent, decision.Path)
			assert.Contains(t, decision.Reasons, tc.reason)
		})
	}
}

func TestDeterminePath_ZeroOperatingIncomeStillMature(t *testing.T) {
	history := matureHistory()
	history[len(history)-1].Metadata[model.MetaTTM].(map[string]float64)["EBIT"] = 0

	decision := DeterminePath(history)
	assert.NotContains(t, decision.Reasons, "TTM EBIT < 0", "the check is >= 0, break-even qualifies")
}

func TestDeterminePath_NetCashSkipsLeverageRatio(t *testing.T) {
	history := matureHistory()
	// Heavy gross debt fully covered by cash, with no earnings to divide by.
	history[len(history)-1].BalanceSheet = map[string]float64{"TotalDebt": 3.0e9, "Cash": 7.0e9}
	ttm := history[len(history)-1].Metadata[model.MetaTTM].(map[string]float64)
	delete(ttm, "EBITDA")

	decision := DeterminePath(history)
	assert.NotContains(t, decision.Reasons, "Net leverage >1x or net debt positive")
}

func TestDeterminePath_EmptyHistory(t *testing.T) {
	decision := DeterminePath(nil)
	require.Equal(t, model.PathEmergent, decision.Path)
	assert.NotEmpty(t, decision.Reasons)
}
