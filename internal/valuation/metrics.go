package valuation

import (
	"github.com/sells-group/dossier-cli/internal/calc"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Metric names the valuation engine contributes to a dossier. Gate rules
// reference these by name.
const (
	MetricWACCPoint      = "WACC-point"
	MetricWACCLower      = "WACC-lower"
	MetricWACCUpper      = "WACC-upper"
	MetricCostOfEquity   = "Cost of Equity"
	MetricCostOfDebt     = "Cost of Debt (after tax)"
	MetricTerminalGrowth = "Terminal Growth"
	MetricHurdleIRR      = "Hurdle IRR"
)

// Metrics expands a valuation block into dossier metrics. All of them are
// macro-flagged: they derive from market and macro observables, not from the
// company's own filings. Worksheet provenance entries keyed by metric name
// are attached when present.
func Metrics(block *model.ValuationBlock, in *Inputs, period string) []model.Metric {
	build := func(name string, value float64) model.Metric {
		prov, ok := in.Provenance[name]
		if !ok {
			prov = model.Provenance{
				SourceDocID:   calc.SystemDocID,
				PageOrSection: "n/a",
				Quote:         calc.SystemQuote,
				URL:           calc.SystemURL,
			}
		}
		return model.Metric{
			Name:         name,
			Value:        model.F(value),
			Unit:         "ratio",
			Period:       period,
			Provenance:   prov,
			MacroFlagged: true,
		}
	}
	return []model.Metric{
		build(MetricWACCPoint, block.WACC.Point),
		build(MetricWACCLower, block.WACC.Band[0]),
		build(MetricWACCUpper, block.WACC.Band[1]),
		build(MetricCostOfEquity, block.WACC.CostOfEquity),
		build(MetricCostOfDebt, block.WACC.CostOfDebtAfterTax),
		build(MetricTerminalGrowth, block.TerminalGrowth.Value),
		build(MetricHurdleIRR, block.Hurdle.Value),
	}
}
