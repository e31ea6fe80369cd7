// Package normalize rescales and aligns raw statement extractions into
// comparable CompanyQuarter records.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
)

// NormalizationError reports statement periods misaligned beyond tolerance
// or an unusable scale hint. It is fatal for the affected period only.
type NormalizationError struct {
	Ticker string
	Period string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s %s: %s", e.Ticker, e.Period, e.Reason)
}

// Normalizer converts RawQuarter extractions into normalized quarters. It
// never mutates its inputs.
type Normalizer struct {
	toleranceDays int
}

// New builds a Normalizer with the configured period-alignment tolerance.
func New(cfg config.NormalizerConfig) *Normalizer {
	days := cfg.AlignmentToleranceDays
	if days <= 0 {
		days = 7
	}
	return &Normalizer{toleranceDays: days}
}

// DetectScale resolves a statement scale hint to a multiplier. Hints are
// either numeric ("1000") or marker text the way filings phrase it
// ("amounts in thousands"). An empty hint means base units.
func DetectScale(hint string) (float64, error) {
	trimmed := strings.TrimSpace(hint)
	if trimmed == "" {
		return 1, nil
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if v <= 0 {
			return 0, fmt.Errorf("non-positive scale %q", hint)
		}
		return v, nil
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "billion"):
		return 1e9, nil
	case strings.Contains(lower, "million"):
		return 1e6, nil
	case strings.Contains(lower, "thousand"):
		return 1e3, nil
	}
	return 0, fmt.Errorf("unrecognized scale hint %q", hint)
}

// Normalize rescales one raw quarter to base currency units and validates
// that its three statements describe the same period end.
func (n *Normalizer) Normalize(raw model.RawQuarter) (*model.CompanyQuarter, error) {
	if _, err := model.ParsePeriod(raw.Period); err != nil {
		return nil, eris.Wrapf(err, "normalize: quarter %s", raw.Ticker)
	}

	if err := n.checkAlignment(raw); err != nil {
		return nil, err
	}

	scales := make(map[string]float64, 3)
	statements := map[string]model.RawStatement{
		"income_stmt":   raw.IncomeStmt,
		"balance_sheet": raw.BalanceSheet,
		"cash_flow":     raw.CashFlow,
	}
	scaled := make(map[string]map[string]float64, 3)
	for name, stmt := range statements {
		scale, err := DetectScale(stmt.Scale)
		if err != nil {
			return nil, &NormalizationError{Ticker: raw.Ticker, Period: raw.Period, Reason: err.Error()}
		}
		scales[name] = scale
		scaled[name] = scaleItems(stmt.Items, scale)
	}

	segments := make(map[string]map[string]float64, len(raw.Segments))
	for seg, items := range raw.Segments {
		segments[seg] = scaleItems(items, scales["income_stmt"])
	}

	metadata := make(map[string]any, len(raw.Metadata)+3)
	for k, v := range raw.Metadata {
		metadata[k] = v
	}
	metadata[model.MetaOriginalScale] = scales
	if raw.Currency != "" {
		metadata[model.MetaCurrency] = raw.Currency
	}

	return &model.CompanyQuarter{
		Ticker:       raw.Ticker,
		Period:       raw.Period,
		IncomeStmt:   scaled["income_stmt"],
		BalanceSheet: scaled["balance_sheet"],
		CashFlow:     scaled["cash_flow"],
		Segments:     segments,
		Metadata:     metadata,
	}, nil
}

// WithTTM returns a copy of current with the trailing-twelve-month rollup in
// metadata. The rollup is only produced when the three prior quarters are
// present and strictly contiguous; otherwise the copy carries no TTM at all,
// it is never extrapolated. Flow items are summed, balance-sheet items are
// taken from the current quarter.
func (n *Normalizer) WithTTM(current *model.CompanyQuarter, history []*model.CompanyQuarter) *model.CompanyQuarter {
	out := cloneQuarter(current)

	period, err := model.ParsePeriod(current.Period)
	if err != nil {
		return out
	}

	byPeriod := make(map[string]*model.CompanyQuarter, len(history))
	for _, q := range history {
		if q != nil {
			byPeriod[canonical(q.Period)] = q
		}
	}

	window := []*model.CompanyQuarter{current}
	cursor := period
	for i := 0; i < 3; i++ {
		cursor = cursor.Prev()
		prior, ok := byPeriod[cursor.String()]
		if !ok {
			return out
		}
		window = append(window, prior)
	}

	ttm := make(map[string]float64)
	for _, q := range window {
		for k, v := range q.IncomeStmt {
			ttm[k] += v
		}
		for k, v := range q.CashFlow {
			ttm[k] += v
		}
	}
	for k, v := range current.BalanceSheet {
		ttm[k] = v
	}

	out.Metadata[model.MetaTTM] = ttm
	out.Metadata[model.MetaTTMPeriod] = period.TTMKey()
	return out
}

func (n *Normalizer) checkAlignment(raw model.RawQuarter) error {
	var ends []time.Time
	for _, stmt := range []model.RawStatement{raw.IncomeStmt, raw.BalanceSheet, raw.CashFlow} {
		if !stmt.PeriodEnd.IsZero() {
			ends = append(ends, stmt.PeriodEnd)
		}
	}
	if len(ends) < 2 {
		return nil
	}
	min, max := ends[0], ends[0]
	for _, e := range ends[1:] {
		if e.Before(min) {
			min = e
		}
		if e.After(max) {
			max = e
		}
	}
	spread := max.Sub(min)
	if spread > time.Duration(n.toleranceDays)*24*time.Hour {
		return &NormalizationError{
			Ticker: raw.Ticker,
			Period: raw.Period,
			Reason: fmt.Sprintf("statement period ends differ by %d days (tolerance %d)", int(spread.Hours()/24), n.toleranceDays),
		}
	}
	return nil
}

func scaleItems(items map[string]float64, scale float64) map[string]float64 {
	out := make(map[string]float64, len(items))
	for k, v := range items {
		out[k] = v * scale
	}
	return out
}

func cloneQuarter(q *model.CompanyQuarter) *model.CompanyQuarter {
	out := &model.CompanyQuarter{
		Ticker:       q.Ticker,
		Period:       q.Period,
		IncomeStmt:   copyMap(q.IncomeStmt),
		BalanceSheet: copyMap(q.BalanceSheet),
		CashFlow:     copyMap(q.CashFlow),
		Segments:     make(map[string]map[string]float64, len(q.Segments)),
		Metadata:     make(map[string]any, len(q.Metadata)+2),
	}
	for seg, items := range q.Segments {
		out.Segments[seg] = copyMap(items)
	}
	for k, v := range q.Metadata {
		out.Metadata[k] = v
	}
	return out
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func canonical(period string) string {
	p, err := model.ParsePeriod(period)
	if err != nil {
		return period
	}
	return p.String()
}
