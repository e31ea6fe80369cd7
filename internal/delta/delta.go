// Package delta tracks quarter-over-quarter and year-over-year changes in a
// fixed set of headline metrics. It is a pure projection of stored quarter
// history: recomputing from identical inputs reproduces identical output.
package delta

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/calc"
	"github.com/sells-group/dossier-cli/internal/model"
)

// extractor pulls one tracked value out of a normalized quarter.
type extractor func(q *model.CompanyQuarter) (float64, bool)

type tracked struct {
	name string
	fn   extractor
}

// trackedMetrics lists every metric the delta table reports, statement lines
// first, derived figures after.
var trackedMetrics = []tracked{
	{"Revenue", fromIncome("Revenue")},
	{"Gross Profit", fromIncome("GrossProfit")},
	{"EBIT", fromIncome("EBIT")},
	{"CFO", fromCash("CFO")},
	{"FCF", fromCash("FCF")},
	{"Owner Earnings", ownerEarnings},
	{"Net Debt", netDebt},
	{"Accruals Ratio", accrualsRatio},
	{"Accounts Receivable", fromBalance("AccountsReceivable")},
	{"Inventory", fromBalance("Inventory")},
	{"Shares Diluted", sharesDiluted},
}

// TrackedMetrics returns the metric names the delta engine reports, in
// presentation order.
func TrackedMetrics() []string {
	names := make([]string, len(trackedMetrics))
	for i, t := range trackedMetrics {
		names[i] = t.name
	}
	return names
}

// Compute builds the delta table for the most recent quarter in history.
// The prior and year-ago quarters are located by period arithmetic, not by
// position, so gaps in the stored history surface as nil deltas rather than
// comparisons against the wrong quarter. A metric absent from the current
// quarter is omitted; a missing base quarter leaves the corresponding delta
// fields nil; a zero base value additionally leaves the percent nil.
func Compute(history []*model.CompanyQuarter) (map[string]model.DeltaEntry, error) {
	if len(history) == 0 {
		return nil, eris.New("delta: empty quarter history")
	}

	byPeriod := make(map[model.Period]*model.CompanyQuarter, len(history))
	var latest model.Period
	for i, q := range history {
		p, err := model.ParsePeriod(q.Period)
		if err != nil {
			return nil, eris.Wrapf(err, "delta: quarter %d", i)
		}
		byPeriod[p] = q
		if i == 0 || latest.Before(p) {
			latest = p
		}
	}

	current := byPeriod[latest]
	prior := byPeriod[latest.Prev()]
	yearAgo := byPeriod[latest.YearAgo()]

	out := make(map[string]model.DeltaEntry, len(trackedMetrics))
	for _, t := range trackedMetrics {
		cur, ok := t.fn(current)
		if !ok {
			continue
		}
		entry := model.DeltaEntry{Current: model.F(cur)}
		entry.QoQ, entry.QoQPercent = change(cur, prior, t.fn)
		entry.YoY, entry.YoYPercent = change(cur, yearAgo, t.fn)
		out[t.name] = entry
	}
	return out, nil
}

// change computes the absolute and percent delta against one base quarter.
func change(cur float64, base *model.CompanyQuarter, fn extractor) (abs, percent *float64) {
	if base == nil {
		return nil, nil
	}
	prev, ok := fn(base)
	if !ok {
		return nil, nil
	}
	abs = model.F(cur - prev)
	if prev != 0 {
		percent = model.F((cur - prev) / prev)
	}
	return abs, percent
}

func fromIncome(key string) extractor {
	return func(q *model.CompanyQuarter) (float64, bool) { return q.Income(key) }
}

func fromBalance(key string) extractor {
	return func(q *model.CompanyQuarter) (float64, bool) { return q.Balance(key) }
}

func fromCash(key string) extractor {
	return func(q *model.CompanyQuarter) (float64, bool) { return q.Cash(key) }
}

func ownerEarnings(q *model.CompanyQuarter) (float64, bool) {
	cfo, ok := q.Cash("CFO")
	if !ok {
		return 0, false
	}
	capex, ok := q.Cash("CapEx")
	if !ok {
		return cfo, true
	}
	return calc.OwnerEarnings(cfo, capex), true
}

// netDebt treats a missing side as zero but reports nothing when the balance
// sheet carries neither debt nor cash.
func netDebt(q *model.CompanyQuarter) (float64, bool) {
	debt, okDebt := q.Balance("TotalDebt")
	cash, okCash := q.Balance("Cash")
	if !okDebt && !okCash {
		return 0, false
	}
	return calc.NetDebt(debt, cash), true
}

func accrualsRatio(q *model.CompanyQuarter) (float64, bool) {
	ni, okNI := q.Income("NetIncome")
	cfo, okCFO := q.Cash("CFO")
	assets, okAssets := q.Balance("TotalAssets")
	if !okNI || !okCFO || !okAssets {
		return 0, false
	}
	return calc.AccrualsRatio(ni, cfo, assets)
}

// sharesDiluted prefers the valuation block's count, then the normalizer's
// top-level metadata, then the TTM rollup.
func sharesDiluted(q *model.CompanyQuarter) (float64, bool) {
	if raw, ok := q.Metadata[model.MetaValuation]; ok {
		if block, ok := raw.(map[string]any); ok {
			if shares, ok := block["shares_diluted"].(float64); ok {
				return shares, true
			}
		}
	}
	if shares, ok := q.Metadata[model.MetaSharesDiluted].(float64); ok {
		return shares, true
	}
	if ttm := q.TTM(); ttm != nil {
		if shares, ok := ttm["SharesDiluted"]; ok {
			return shares, true
		}
	}
	return 0, false
}
