// Package gates builds the stage-zero gate table and selects the analysis
// path. Every gate is a named pure function in a fixed-order table; given
// the same metric set the engine produces the same rows.
package gates

import (
	"strings"
	"time"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

const defaultFlipHorizonDays = 90

// PathDecision is the Mature/Emergent classification with the checks that
// failed.
type PathDecision struct {
	Path    model.Path `json:"path"`
	Reasons []string   `json:"reasons"`
}

// Engine evaluates the gate table. The clock is injectable so flip-trigger
// deadlines are reproducible in tests.
type Engine struct {
	flipHorizonDays int
	now             func() time.Time
}

// New builds an Engine from config.
func New(cfg config.GatesConfig) *Engine {
	days := cfg.FlipHorizonDays
	if days <= 0 {
		days = defaultFlipHorizonDays
	}
	return &Engine{flipHorizonDays: days, now: time.Now}
}

// WithClock pins the engine clock, anchoring flip-trigger deadlines to a
// point-in-time run date instead of wall time.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type gateInput struct {
	metrics map[string]model.Metric
	ttm     map[string]float64
}

func (in gateInput) value(name string) (float64, bool) {
	m, ok := in.metrics[name]
	if !ok {
		return 0, false
	}
	return m.Numeric()
}

func (in gateInput) source(name string) string {
	m, ok := in.metrics[name]
	if !ok {
		return "n/a"
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Provenance.SourceDocID, m.Provenance.PageOrSection, m.Provenance.URL} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "n/a"
	}
	return strings.Join(parts, " | ")
}

type gateFunc func(e *Engine, in gateInput) model.GateRow

// Gate tables. Order is fixed; the final decision gate runs after the
// metric-driven hard gates because it reads their results.
var (
	hardTable = []gateFunc{circleOfCompetence, fraudControls, imminentSolvency, valuationGate}
	softTable = []gateFunc{accountingSanity, balanceSheetSurvival, unitEconomics, industry, moat, management}
)

// Evaluate runs the full gate table. The returned path is the decision path,
// short-circuited to Fail when any hard gate fails; rows for every gate are
// returned regardless so the dossier stays inspectable.
func (e *Engine) Evaluate(metrics []model.Metric, ttm map[string]float64, decision PathDecision) (model.Stage0, model.Path) {
	in := gateInput{metrics: make(map[string]model.Metric, len(metrics)), ttm: ttm}
	for _, m := range metrics {
		in.metrics[m.Name] = m
	}

	hard := make([]model.GateRow, 0, len(hardTable)+1)
	for _, gate := range hardTable {
		hard = append(hard, gate(e, in))
	}

	// A failing metric gate short-circuits the path; the final decision
	// gate reflects the outcome without feeding back into it, so an
	// Emergent classification stays Emergent.
	overall := decision.Path
	for _, row := range hard {
		if row.Result == model.GateFail {
			overall = model.PathFail
			break
		}
	}
	hard = append(hard, finalGate(overall))

	soft := make([]model.GateRow, 0, len(softTable))
	for _, gate := range softTable {
		soft = append(soft, gate(e, in))
	}
	return model.Stage0{Hard: hard, Soft: soft}, overall
}

// ValidateRows enforces the flip-trigger contract over a full table.
func ValidateRows(s model.Stage0) error {
	for _, rows := range [][]model.GateRow{s.Hard, s.Soft} {
		for i := range rows {
			if err := rows[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) flipTrigger(description string) *model.FlipTrigger {
	due := e.now().AddDate(0, 0, e.flipHorizonDays)
	return &model.FlipTrigger{Description: description, Deadline: due.Format("2006-01-02")}
}

// Hard gates.

func circleOfCompetence(e *Engine, in gateInput) model.GateRow {
	revenue, ok := in.value("Revenue")
	if !ok {
		revenue, ok = in.ttm["Revenue"]
	}
	result := model.GateNA
	if ok {
		result = model.GateFail
		if revenue > 0 {
			result = model.GatePass
		}
	}
	return model.GateRow{
		Gate:           "Circle of Competence",
		Hardness:       model.HardGate,
		WhatItMeans:    "Disclosures sufficient for analysis",
		MetricsSources: []string{in.source("Revenue")},
		PassRule:       "Reported revenue > 0",
		Result:         result,
	}
}

func fraudControls(e *Engine, in gateInput) model.GateRow {
	accruals, ok := in.value("Accruals Ratio")
	result := model.GateNA
	if ok {
		result = model.GateFail
		if accruals >= -0.1 && accruals <= 0.1 {
			result = model.GatePass
		}
	}
	return model.GateRow{
		Gate:           "Fraud/Controls",
		Hardness:       model.HardGate,
		WhatItMeans:    "Accruals within healthy bounds",
		MetricsSources: []string{in.source("Accruals Ratio")},
		PassRule:       "Accruals ratio within +/-10%",
		Result:         result,
	}
}

func imminentSolvency(e *Engine, in gateInput) model.GateRow {
	leverage, okLev := in.value("Net Debt / EBITDA")
	fcf, okFCF := in.ttm["FCF"]
	result := model.GateNA
	if okLev || okFCF {
		result = model.GateFail
		if (okLev && leverage <= 4) || (okFCF && fcf > 0) {
			result = model.GatePass
		}
	}
	return model.GateRow{
		Gate:           "Imminent Solvency",
		Hardness:       model.HardGate,
		WhatItMeans:    "Company can service near-term obligations",
		MetricsSources: []string{in.source("Net Debt / EBITDA")},
		PassRule:       "Net leverage <=4x or TTM FCF > 0",
		Result:         result,
	}
}

func valuationGate(e *Engine, in gateInput) model.GateRow {
	roic, okROIC := in.value("ROIC")
	wacc, okWACC := in.value(valuation.MetricWACCPoint)
	result := model.GateNA
	if okROIC && okWACC {
		result = model.GateFail
		if roic >= wacc {
			result = model.GatePass
		}
	}
	return model.GateRow{
		Gate:           "Valuation",
		Hardness:       model.HardGate,
		WhatItMeans:    "Returns exceed cost of capital",
		MetricsSources: []string{in.source("ROIC"), in.source(valuation.MetricWACCPoint)},
		PassRule:       "ROIC >= WACC",
		Result:         result,
	}
}

func finalGate(overall model.Path) model.GateRow {
	result := model.GateFail
	if overall == model.PathMature {
		result = model.GatePass
	}
	return model.GateRow{
		Gate:        "Final Decision Gate",
		Hardness:    model.HardGate,
		WhatItMeans: "All hard gates satisfied and business classified as Mature",
		PassRule:    "Path = Mature and prior hard gates pass",
		Result:      result,
	}
}

// Soft gates.

func accountingSanity(e *Engine, in gateInput) model.GateRow {
	accruals, ok := in.value("Accruals Ratio")
	row := model.GateRow{
		Gate:           "Accounting Sanity",
		Hardness:       model.SoftGate,
		WhatItMeans:    "Earnings quality remains solid",
		MetricsSources: []string{in.source("Accruals Ratio")},
		PassRule:       "Accruals ratio within +/-15%",
		Result:         model.GatePass,
	}
	if !ok || accruals < -0.15 || accruals > 0.15 {
		row.Result = model.GateSoftPass
		row.FlipTrigger = e.flipTrigger("Track accrual trend vs peers")
	}
	return row
}

func balanceSheetSurvival(e *Engine, in gateInput) model.GateRow {
	cash := in.ttm["Cash"]
	fcf := in.ttm["FCF"]
	row := model.GateRow{
		Gate:           "Balance-sheet Survival",
		Hardness:       model.SoftGate,
		WhatItMeans:    "Liquidity runway supports thesis",
		MetricsSources: []string{in.source("FCF")},
		PassRule:       "Positive cash and FCF",
		Result:         model.GatePass,
	}
	if cash <= 0 || fcf <= 0 {
		row.Result = model.GateSoftPass
		row.FlipTrigger = e.flipTrigger("Refresh liquidity plan; monitor FCF")
	}
	return row
}

func unitEconomics(e *Engine, in gateInput) model.GateRow {
	takeRate, ok := in.value("Take Rate")
	row := model.GateRow{
		Gate:           "Unit Economics",
		Hardness:       model.SoftGate,
		WhatItMeans:    "Contribution margins support scale",
		MetricsSources: []string{in.source("Take Rate")},
		PassRule:       "Take rate >10%",
		Result:         model.GatePass,
	}
	if !ok || takeRate <= 0.1 {
		row.Result = model.GateSoftPass
		row.FlipTrigger = e.flipTrigger("Revisit unit economics vs plan")
	}
	return row
}

func industry(e *Engine, in gateInput) model.GateRow {
	return model.GateRow{
		Gate:        "Industry",
		Hardness:    model.SoftGate,
		WhatItMeans: "Industry structure remains attractive",
		PassRule:    "Industry TAM and competition remain favorable",
		Result:      model.GateSoftPass,
		FlipTrigger: e.flipTrigger("Refresh TAM & competitive notes"),
	}
}

func moat(e *Engine, in gateInput) model.GateRow {
	return model.GateRow{
		Gate:           "Moat",
		Hardness:       model.SoftGate,
		WhatItMeans:    "Defensible competitive advantages",
		MetricsSources: []string{in.source("Pricing Power")},
		PassRule:       "Evidence of moat remains intact",
		Result:         model.GateSoftPass,
		FlipTrigger:    e.flipTrigger("Review pricing power evidence"),
	}
}

func management(e *Engine, in gateInput) model.GateRow {
	return model.GateRow{
		Gate:        "Management",
		Hardness:    model.SoftGate,
		WhatItMeans: "Execution and governance remain strong",
		PassRule:    "No new governance concerns",
		Result:      model.GateSoftPass,
		FlipTrigger: e.flipTrigger("Check governance disclosures"),
	}
}
