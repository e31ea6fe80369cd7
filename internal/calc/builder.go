package calc

import (
	"github.com/sells-group/dossier-cli/internal/model"
)

const (
	unitUSD    = "USD"
	unitDays   = "days"
	unitRatio  = "ratio"
	unitTurns  = "x"
	unitMonths = "months"
	unitShares = "shares"
)

// System provenance applied to metrics derived purely from normalized
// statements, where no verbatim filing quote exists.
const (
	SystemDocID = "SYSTEM-DERIVED"
	SystemURL   = "https://localhost/system"
	SystemQuote = "Derived from normalized statements"
)

// DefaultTaxRate is the statutory rate assumed when no effective rate is
// supplied.
const DefaultTaxRate = 0.21

// Builder derives the full metric set for one company quarter. Metrics are
// produced in registry order so downstream sampling is deterministic.
type Builder struct {
	taxRate float64
}

// NewBuilder returns a Builder using the given tax rate, or DefaultTaxRate
// when the rate is not positive.
func NewBuilder(taxRate float64) *Builder {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &Builder{taxRate: taxRate}
}

// calculator is one named entry in the ordered registry. fn reports the
// value, whether it could be derived, and the inputs that went into it.
type calculator struct {
	name string
	unit string
	fn   func(b *Builder, v view) (float64, bool, map[string]float64)
}

// registry lists every metric in presentation order. Order is part of the
// contract: the verifier samples by position.
var registry = []calculator{
	{"Revenue", unitUSD, calcRevenue},
	{"Gross Margin", unitRatio, calcGrossMargin},
	{"FCF", unitUSD, calcFCF},
	{"Owner Earnings", unitUSD, calcOwnerEarnings},
	{"DSO", unitDays, calcDSO},
	{"DIH", unitDays, calcDIH},
	{"DPO", unitDays, calcDPO},
	{"CCC", unitDays, calcCCC},
	{"Accruals Ratio", unitRatio, calcAccrualsRatio},
	{"Net Debt", unitUSD, calcNetDebt},
	{"Net Debt / EBITDA", unitTurns, calcNetLeverage},
	{"Interest Coverage", unitTurns, calcInterestCoverage},
	{"FCF Interest Coverage", unitTurns, calcFCFInterestCoverage},
	{"Debt Due 24M Coverage", unitTurns, calcDebtDue24MCoverage},
	{"ROIC", unitRatio, calcROIC},
	{"Take Rate", unitRatio, calcTakeRate},
	{"NRR", unitRatio, calcNRR},
	{"Runway", unitMonths, calcRunway},
	{"Shares Diluted", unitShares, calcSharesDiluted},
}

// MetricNames returns the registry's metric names in order.
func MetricNames() []string {
	names := make([]string, len(registry))
	for i, c := range registry {
		names[i] = c.name
	}
	return names
}

// Build runs every registered calculator against the quarter. A metric whose
// inputs are missing comes back with a nil value and an ABSTAIN text, never
// a fabricated number.
func (b *Builder) Build(q *model.CompanyQuarter) []model.Metric {
	v := newView(q)
	period := q.Period
	if ttm, ok := q.Metadata[model.MetaTTMPeriod].(string); ok && ttm != "" {
		period = ttm
	}

	metrics := make([]model.Metric, 0, len(registry))
	for _, c := range registry {
		m := model.Metric{
			Name:       c.name,
			Unit:       c.unit,
			Period:     period,
			Provenance: provenanceFor(q, c.name),
		}
		value, ok, inputs := c.fn(b, v)
		if ok {
			m.Value = model.F(value)
			m.Inputs = inputs
		} else {
			m.Text = "ABSTAIN"
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// view resolves line items against the TTM rollup when one exists, falling
// back to the single normalized quarter otherwise.
type view struct {
	q     *model.CompanyQuarter
	items map[string]float64
	days  float64
}

func newView(q *model.CompanyQuarter) view {
	if ttm := q.TTM(); ttm != nil {
		return view{q: q, items: ttm, days: 365}
	}
	return view{q: q, days: 91}
}

func (v view) item(key string) (float64, bool) {
	if v.items != nil {
		val, ok := v.items[key]
		return val, ok
	}
	if val, ok := v.q.Income(key); ok {
		return val, ok
	}
	if val, ok := v.q.Balance(key); ok {
		return val, ok
	}
	return v.q.Cash(key)
}

func (v view) first(keys ...string) (float64, bool) {
	for _, key := range keys {
		if val, ok := v.item(key); ok {
			return val, ok
		}
	}
	return 0, false
}

func (v view) footnote(name string) (float64, bool) {
	notes, ok := v.q.Metadata[model.MetaFootnotes]
	if !ok {
		return 0, false
	}
	switch m := notes.(type) {
	case map[string]float64:
		val, ok := m[name]
		return val, ok
	case map[string]any:
		val, ok := m[name].(float64)
		return val, ok
	}
	return 0, false
}

func calcRevenue(b *Builder, v view) (float64, bool, map[string]float64) {
	rev, ok := v.item("Revenue")
	if !ok {
		return 0, false, nil
	}
	return rev, true, map[string]float64{"revenue": rev}
}

func calcGrossMargin(b *Builder, v view) (float64, bool, map[string]float64) {
	gp, okGP := v.item("GrossProfit")
	rev, okRev := v.item("Revenue")
	if !okGP || !okRev {
		return 0, false, nil
	}
	margin, ok := GrossMargin(gp, rev)
	if !ok {
		return 0, false, nil
	}
	return margin, true, map[string]float64{"gross_profit": gp, "revenue": rev}
}

func fcfValue(v view) (float64, map[string]float64, bool) {
	if fcf, ok := v.item("FCF"); ok {
		return fcf, map[string]float64{"fcf": fcf}, true
	}
	cfo, okCFO := v.item("CFO")
	capex, okCapex := v.item("CapEx")
	if !okCFO || !okCapex {
		return 0, nil, false
	}
	fcf := cfo + capex
	return fcf, map[string]float64{"cfo": cfo, "capex": capex}, true
}

func calcFCF(b *Builder, v view) (float64, bool, map[string]float64) {
	fcf, inputs, ok := fcfValue(v)
	if !ok {
		return 0, false, nil
	}
	return fcf, true, inputs
}

func calcOwnerEarnings(b *Builder, v view) (float64, bool, map[string]float64) {
	cfo, okCFO := v.item("CFO")
	capex, okCapex := v.item("CapEx")
	if !okCFO || !okCapex {
		return 0, false, nil
	}
	return OwnerEarnings(cfo, capex), true, map[string]float64{"cfo": cfo, "capex": capex}
}

func calcDSO(b *Builder, v view) (float64, bool, map[string]float64) {
	ar, okAR := v.item("AccountsReceivable")
	rev, okRev := v.item("Revenue")
	if !okAR || !okRev {
		return 0, false, nil
	}
	dso, ok := DSO(ar, rev, v.days)
	if !ok {
		return 0, false, nil
	}
	return dso, true, map[string]float64{"accounts_receivable": ar, "revenue": rev, "days": v.days}
}

func calcDIH(b *Builder, v view) (float64, bool, map[string]float64) {
	inv, okInv := v.item("Inventory")
	cogs, okCOGS := v.first("COGS", "CostOfGoodsSold")
	if !okInv || !okCOGS {
		return 0, false, nil
	}
	dih, ok := DIH(inv, cogs, v.days)
	if !ok {
		return 0, false, nil
	}
	return dih, true, map[string]float64{"inventory": inv, "cogs": cogs, "days": v.days}
}

func calcDPO(b *Builder, v view) (float64, bool, map[string]float64) {
	ap, okAP := v.item("AccountsPayable")
	cogs, okCOGS := v.first("COGS", "CostOfGoodsSold")
	if !okAP || !okCOGS {
		return 0, false, nil
	}
	dpo, ok := DPO(ap, cogs, v.days)
	if !ok {
		return 0, false, nil
	}
	return dpo, true, map[string]float64{"accounts_payable": ap, "cogs": cogs, "days": v.days}
}

func calcCCC(b *Builder, v view) (float64, bool, map[string]float64) {
	dso, okDSO, _ := calcDSO(b, v)
	dih, okDIH, _ := calcDIH(b, v)
	dpo, okDPO, _ := calcDPO(b, v)
	if !okDSO || !okDIH || !okDPO {
		return 0, false, nil
	}
	return CCC(dso, dih, dpo), true, map[string]float64{"dso": dso, "dih": dih, "dpo": dpo}
}

func calcAccrualsRatio(b *Builder, v view) (float64, bool, map[string]float64) {
	ni, okNI := v.item("NetIncome")
	cfo, okCFO := v.item("CFO")
	assets, okAssets := v.item("TotalAssets")
	if !okNI || !okCFO || !okAssets {
		return 0, false, nil
	}
	ratio, ok := AccrualsRatio(ni, cfo, assets)
	if !ok {
		return 0, false, nil
	}
	return ratio, true, map[string]float64{"net_income": ni, "cfo": cfo, "total_assets": assets}
}

func calcNetDebt(b *Builder, v view) (float64, bool, map[string]float64) {
	debt, okDebt := v.item("TotalDebt")
	cash, okCash := v.item("Cash")
	if !okDebt || !okCash {
		return 0, false, nil
	}
	return NetDebt(debt, cash), true, map[string]float64{"total_debt": debt, "cash": cash}
}

func calcNetLeverage(b *Builder, v view) (float64, bool, map[string]float64) {
	debt, okDebt := v.item("TotalDebt")
	cash, okCash := v.item("Cash")
	earnings, okE := v.first("EBITDA", "EBIT")
	if !okDebt || !okCash || !okE {
		return 0, false, nil
	}
	lev, ok := NetLeverage(debt, cash, earnings)
	if !ok {
		return 0, false, nil
	}
	return lev, true, map[string]float64{"total_debt": debt, "cash": cash, "ebitda": earnings}
}

func calcInterestCoverage(b *Builder, v view) (float64, bool, map[string]float64) {
	ebit, okEBIT := v.item("EBIT")
	interest, okInt := v.item("InterestExpense")
	if !okEBIT || !okInt {
		return 0, false, nil
	}
	cov, ok := InterestCoverage(ebit, interest)
	if !ok {
		return 0, false, nil
	}
	return cov, true, map[string]float64{"ebit": ebit, "interest_expense": interest}
}

func calcFCFInterestCoverage(b *Builder, v view) (float64, bool, map[string]float64) {
	fcf, _, okFCF := fcfValue(v)
	interest, okInt := v.item("InterestExpense")
	if !okFCF || !okInt {
		return 0, false, nil
	}
	cov, ok := FCFInterestCoverage(fcf, interest)
	if !ok {
		return 0, false, nil
	}
	return cov, true, map[string]float64{"fcf": fcf, "interest_expense": interest}
}

func calcDebtDue24MCoverage(b *Builder, v view) (float64, bool, map[string]float64) {
	cash, okCash := v.item("Cash")
	due, okDue := v.footnote("debt_due_24m")
	if !okCash || !okDue {
		return 0, false, nil
	}
	fcf, _, okFCF := fcfValue(v)
	if !okFCF {
		return 0, false, nil
	}
	revolver, _ := v.footnote("undrawn_revolver")
	expected := fcf * 2
	cov, ok := DebtDue24MCoverage(cash, expected, revolver, due)
	if !ok {
		return 0, false, nil
	}
	return cov, true, map[string]float64{
		"cash": cash, "expected_fcf_8q": expected, "undrawn_revolver": revolver, "debt_due_24m": due,
	}
}

func calcROIC(b *Builder, v view) (float64, bool, map[string]float64) {
	ebit, okEBIT := v.item("EBIT")
	equity, okEq := v.item("TotalEquity")
	debt, okDebt := v.item("TotalDebt")
	cash, okCash := v.item("Cash")
	if !okEBIT || !okEq || !okDebt || !okCash {
		return 0, false, nil
	}
	nonOp, _ := v.item("NonOperatingAssets")
	nopat := NOPAT(ebit, b.taxRate)
	invested := InvestedCapital(equity, debt, cash, nonOp)
	roic, ok := ROIC(nopat, invested)
	if !ok {
		return 0, false, nil
	}
	return roic, true, map[string]float64{
		"nopat": nopat, "invested_capital": invested, "tax_rate": b.taxRate,
	}
}

func calcTakeRate(b *Builder, v view) (float64, bool, map[string]float64) {
	rev, okRev := v.item("Revenue")
	bookings, okB := v.footnote("gross_bookings")
	if !okRev || !okB {
		return 0, false, nil
	}
	rate, ok := TakeRate(rev, bookings)
	if !ok {
		return 0, false, nil
	}
	return rate, true, map[string]float64{"revenue": rev, "gross_bookings": bookings}
}

func calcNRR(b *Builder, v view) (float64, bool, map[string]float64) {
	start, okStart := v.footnote("starting_arr")
	if !okStart {
		return 0, false, nil
	}
	exp, _ := v.footnote("arr_expansions")
	contr, _ := v.footnote("arr_contractions")
	churn, _ := v.footnote("arr_churn")
	nrr, ok := NRR(start, exp, contr, churn)
	if !ok {
		return 0, false, nil
	}
	return nrr, true, map[string]float64{
		"starting_arr": start, "expansions": exp, "contractions": contr, "churn": churn,
	}
}

func calcRunway(b *Builder, v view) (float64, bool, map[string]float64) {
	cash, okCash := v.item("Cash")
	if !okCash {
		return 0, false, nil
	}
	fcf, _, okFCF := fcfValue(v)
	if !okFCF {
		return 0, false, nil
	}
	revolver, _ := v.footnote("undrawn_revolver")
	minCash, _ := v.footnote("minimum_cash")
	months, ok := RunwayMonths(cash, revolver, minCash, fcf)
	if !ok {
		return 0, false, nil
	}
	return months, true, map[string]float64{
		"cash": cash, "undrawn_revolver": revolver, "minimum_cash": minCash, "ttm_fcf": fcf,
	}
}

func calcSharesDiluted(b *Builder, v view) (float64, bool, map[string]float64) {
	raw, ok := v.q.Metadata[model.MetaSharesDiluted]
	if !ok {
		return 0, false, nil
	}
	shares, ok := raw.(float64)
	if !ok || shares <= 0 {
		return 0, false, nil
	}
	return shares, true, map[string]float64{"shares_diluted": shares}
}

// provenanceFor resolves a metric's citation: an explicit entry under the
// quarter's provenance metadata wins, then the valuation block's provenance,
// then the system-derived fallback.
func provenanceFor(q *model.CompanyQuarter, name string) model.Provenance {
	if p, ok := provenanceEntry(q.Metadata[model.MetaProvenance], name); ok {
		return p
	}
	if val, ok := q.Metadata[model.MetaValuation].(map[string]any); ok {
		if p, ok := provenanceEntry(val["provenance"], name); ok {
			return p
		}
	}
	return model.Provenance{
		SourceDocID:   SystemDocID,
		PageOrSection: "n/a",
		Quote:         SystemQuote,
		URL:           SystemURL,
	}
}

func provenanceEntry(raw any, name string) (model.Provenance, bool) {
	table, ok := raw.(map[string]any)
	if !ok {
		return model.Provenance{}, false
	}
	entry, ok := table[name].(map[string]any)
	if !ok {
		return model.Provenance{}, false
	}
	str := func(key string) string {
		s, _ := entry[key].(string)
		return s
	}
	p := model.Provenance{
		SourceDocID:   str("source_doc_id"),
		PageOrSection: str("page_or_section"),
		Quote:         str("quote"),
		URL:           str("url"),
	}
	if p.PageOrSection == "" {
		p.PageOrSection = "n/a"
	}
	return p, true
}
