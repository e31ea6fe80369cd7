package model

import "time"

// RawStatement is one pre-normalization financial statement: line items as
// reported, a scale hint ("thousands", "millions", a bare number, or empty
// for base units), and the statement's period end date.
type RawStatement struct {
	Items     map[string]float64 `json:"items"`
	Scale     string             `json:"scale,omitempty"`
	PeriodEnd time.Time          `json:"period_end"`
}

// RawQuarter is the extraction collaborator's output for one reporting
// period, before scale and alignment normalization.
type RawQuarter struct {
	Ticker       string                        `json:"ticker"`
	Period       string                        `json:"period"`
	Currency     string                        `json:"currency,omitempty"`
	IncomeStmt   RawStatement                  `json:"income_stmt"`
	BalanceSheet RawStatement                  `json:"balance_sheet"`
	CashFlow     RawStatement                  `json:"cash_flow"`
	Segments     map[string]map[string]float64 `json:"segments,omitempty"`
	Metadata     map[string]any                `json:"metadata,omitempty"`
}

// CompanyQuarter is a normalized reporting period: every line item in base
// currency units, segment table rescaled to match, derived trailing-twelve-
// month figures in metadata when four contiguous quarters were available.
type CompanyQuarter struct {
	Ticker       string                        `json:"ticker"`
	Period       string                        `json:"period"`
	IncomeStmt   map[string]float64            `json:"income_stmt"`
	BalanceSheet map[string]float64            `json:"balance_sheet"`
	CashFlow     map[string]float64            `json:"cash_flow"`
	Segments     map[string]map[string]float64 `json:"segments,omitempty"`
	Metadata     map[string]any                `json:"metadata,omitempty"`
}

// Metadata keys populated by the normalizer and consumed downstream.
const (
	MetaTTM           = "ttm"            // map[string]float64, four-quarter rollup
	MetaTTMPeriod     = "ttm_period"     // TTM-YYYYQ# key
	MetaOriginalScale = "original_scale" // numeric scale the filing reported in
	MetaCurrency      = "currency"
	MetaBusinessModel = "business_model" // externally supplied tag, e.g. "subscription"
	MetaSharesDiluted = "shares_diluted" // most recent filing's diluted count
	MetaFootnotes     = "footnotes"      // map[string]float64, e.g. DebtDue24M
	MetaProvenance    = "provenance"     // map[string]map[string]string per metric
	MetaValuation     = "valuation"      // valuation input block
)

// TTM returns the trailing-twelve-month rollup, or nil when the normalizer
// could not assemble four contiguous quarters.
func (q *CompanyQuarter) TTM() map[string]float64 {
	raw, ok := q.Metadata[MetaTTM]
	if !ok {
		return nil
	}
	switch m := raw.(type) {
	case map[string]float64:
		return m
	case map[string]any:
		out := make(map[string]float64, len(m))
		for k, v := range m {
			f, ok := v.(float64)
			if !ok {
				return nil
			}
			out[k] = f
		}
		return out
	}
	return nil
}

func stmtValue(m map[string]float64, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}

// Income looks up an income-statement line item.
func (q *CompanyQuarter) Income(key string) (float64, bool) {
	return stmtValue(q.IncomeStmt, key)
}

// Balance looks up a balance-sheet line item.
func (q *CompanyQuarter) Balance(key string) (float64, bool) {
	return stmtValue(q.BalanceSheet, key)
}

// Cash looks up a cash-flow-statement line item.
func (q *CompanyQuarter) Cash(key string) (float64, bool) {
	return stmtValue(q.CashFlow, key)
}
