// Package valuation derives the reverse-DCF block of a dossier: a CAPM
// cost of capital with a symmetric band, a capped terminal growth rate, the
// hurdle with its adjustment trail, implied IRRs for the Bear/Base/Bull
// paths, and a one-assumption-at-a-time sensitivity grid.
package valuation

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
)

const (
	defaultBaseHurdle = 0.15
	defaultBandBps    = 100

	// terminalSpread keeps the perpetuity growth strictly below the
	// discount rate.
	terminalSpread = 0.005

	// Sensitivity bumps are fixed: the grid keys name them.
	sensWACCBump = 0.01
	sensGBump    = 0.005
)

// Engine computes valuation blocks. Zero-valued config fields fall back to
// the standard assumptions.
type Engine struct {
	baseHurdle float64
	band       float64
	solver     config.SolverConfig
}

// New builds an Engine from config.
func New(cfg config.ValuationConfig) *Engine {
	e := &Engine{
		baseHurdle: cfg.BaseHurdle,
		band:       cfg.BandBps / 10000.0,
		solver:     cfg.Solver,
	}
	if e.baseHurdle <= 0 {
		e.baseHurdle = defaultBaseHurdle
	}
	if e.band <= 0 {
		e.band = defaultBandBps / 10000.0
	}
	if e.solver.MaxIterations <= 0 {
		e.solver.MaxIterations = 100
	}
	if e.solver.Tolerance <= 0 {
		e.solver.Tolerance = 1e-6
	}
	if e.solver.Guess == 0 {
		e.solver.Guess = 0.10
	}
	return e
}

// WACC derives the CAPM cost of capital from market observables. The band
// is symmetric around the point estimate.
func (e *Engine) WACC(in *Inputs) (model.WACCBlock, error) {
	marketEquity := in.SharePrice * in.SharesDiluted
	total := marketEquity + in.TotalDebt
	if total <= 0 {
		return model.WACCBlock{}, eris.New("valuation: capital base must be positive")
	}
	costOfEquity := in.RiskFree + in.Beta*in.EquityRiskPremium + in.EquityAdjustmentBps/10000.0
	costOfDebt := in.PreTaxCostOfDebt * (1 - in.TaxRate)
	equityWeight := marketEquity / total
	debtWeight := in.TotalDebt / total
	point := equityWeight*costOfEquity + debtWeight*costOfDebt
	lower := point - e.band
	if lower < 0 {
		lower = 0
	}
	return model.WACCBlock{
		Point:              point,
		Band:               [2]float64{lower, point + e.band},
		CostOfEquity:       costOfEquity,
		CostOfDebtAfterTax: costOfDebt,
		EquityWeight:       equityWeight,
		DebtWeight:         debtWeight,
		Provenance:         in.Provenance,
	}, nil
}

// TerminalGrowth is inflation plus real growth, capped 50bps below the
// discount rate so the perpetuity stays defined. The ceiling never goes
// negative.
func (e *Engine) TerminalGrowth(in *Inputs, wacc float64) model.TerminalGrowth {
	g := in.Inflation + in.RealGrowth
	ceiling := wacc - terminalSpread
	if ceiling < 0 {
		ceiling = 0
	}
	if g > ceiling {
		g = ceiling
	}
	return model.TerminalGrowth{Value: g, Inflation: in.Inflation, RealGrowth: in.RealGrowth}
}

// Hurdle applies the worksheet's basis-point adjustments to the base hurdle,
// keeping the full trail. The result is floored at zero.
func (e *Engine) Hurdle(adjustments []model.HurdleAdjustment) model.Hurdle {
	value := e.baseHurdle
	for _, adj := range adjustments {
		value += adj.Bps / 10000.0
	}
	if value < 0 {
		value = 0
	}
	return model.Hurdle{Base: e.baseHurdle, Adjustments: adjustments, Value: value}
}

// scenarioIRR solves one path at the given discount and growth assumptions.
// nil means no defensible rate: an undefined terminal value or a solver that
// did not converge.
func (e *Engine) scenarioIRR(in *Inputs, path []float64, wacc, g float64) *float64 {
	if wacc-g <= 0 {
		return nil
	}
	tv := gordonTerminal(path[len(path)-1], wacc, g)
	flows := equityFlows(in.SharePrice, path, tv, in.NetDebt(), in.SharesDiluted)
	irr, ok := e.solveIRR(flows)
	if !ok {
		return nil
	}
	return model.F(irr)
}

// Build assembles the full valuation block from a validated worksheet.
func (e *Engine) Build(in *Inputs) (*model.ValuationBlock, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	wacc, err := e.WACC(in)
	if err != nil {
		return nil, err
	}
	growth := e.TerminalGrowth(in, wacc.Point)
	hurdle := e.Hurdle(in.HurdleAdjustments)

	scenarios := make([]model.Scenario, 0, 3)
	for _, name := range []string{model.ScenarioBear, model.ScenarioBase, model.ScenarioBull} {
		path := in.Scenarios[name]
		scenarios = append(scenarios, model.Scenario{
			Name:    name,
			FCFPath: path,
			IRR:     e.scenarioIRR(in, path, wacc.Point, growth.Value),
		})
	}

	base := in.Scenarios[model.ScenarioBase]
	sensitivity := map[string]*float64{
		model.SensWACCUp:   e.scenarioIRR(in, base, wacc.Point+sensWACCBump, growth.Value),
		model.SensWACCDown: e.scenarioIRR(in, base, wacc.Point-sensWACCBump, growth.Value),
		model.SensGUp:      e.scenarioIRR(in, base, wacc.Point, growth.Value+sensGBump),
		model.SensGDown:    e.scenarioIRR(in, base, wacc.Point, growth.Value-sensGBump),
	}

	return &model.ValuationBlock{
		WACC:           wacc,
		TerminalGrowth: growth,
		Hurdle:         hurdle,
		SharePrice:     in.SharePrice,
		SharesDiluted:  in.SharesDiluted,
		NetDebt:        in.NetDebt(),
		Scenarios:      scenarios,
		Sensitivity:    sensitivity,
		Notes:          in.Notes,
	}, nil
}
