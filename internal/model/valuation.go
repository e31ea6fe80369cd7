package model

// Scenario names, in required IRR order: Bear ≤ Base ≤ Bull.
const (
	ScenarioBear = "Bear"
	ScenarioBase = "Base"
	ScenarioBull = "Bull"
)

// Sensitivity grid keys. Each cell re-solves the Base scenario with one
// assumption shifted and everything else held fixed.
const (
	SensWACCUp   = "wacc+100bps"
	SensWACCDown = "wacc-100bps"
	SensGUp      = "g+50bps"
	SensGDown    = "g-50bps"
)

// WACCBlock is the cost-of-capital point estimate with its symmetric band
// and the derivation inputs. Provenance maps each named input metric to its
// source.
type WACCBlock struct {
	Point              float64               `json:"point"`
	Band               [2]float64            `json:"band"`
	CostOfEquity       float64               `json:"cost_of_equity"`
	CostOfDebtAfterTax float64               `json:"cost_of_debt_after_tax"`
	EquityWeight       float64               `json:"equity_weight"`
	DebtWeight         float64               `json:"debt_weight"`
	Provenance         map[string]Provenance `json:"provenance,omitempty"`
}

// TerminalGrowth is the perpetuity growth assumption and its inputs.
type TerminalGrowth struct {
	Value      float64 `json:"value"`
	Inflation  float64 `json:"inflation"`
	RealGrowth float64 `json:"real_growth"`
}

// HurdleAdjustment is one named basis-point adjustment applied to the base
// hurdle, e.g. a mature-marketplace discount.
type HurdleAdjustment struct {
	Name string  `json:"name" yaml:"name"`
	Bps  float64 `json:"bps" yaml:"bps"`
}

// Hurdle is the required IRR with its adjustment trail.
type Hurdle struct {
	Base        float64            `json:"base"`
	Adjustments []HurdleAdjustment `json:"adjustments,omitempty"`
	Value       float64            `json:"value"`
}

// Scenario is a five-year free-cash-flow path and the internal rate of
// return implied by paying today's price for it. IRR is nil when the solver
// did not converge or the terminal value was undefined.
type Scenario struct {
	Name    string    `json:"name"`
	FCFPath []float64 `json:"fcf_path"`
	IRR     *float64  `json:"irr"`
}

// ValuationBlock is the reverse-DCF section of a dossier.
type ValuationBlock struct {
	WACC           WACCBlock           `json:"wacc"`
	TerminalGrowth TerminalGrowth      `json:"terminal_growth"`
	Hurdle         Hurdle              `json:"hurdle"`
	SharePrice     float64             `json:"share_price"`
	SharesDiluted  float64             `json:"shares_diluted"`
	NetDebt        float64             `json:"net_debt"`
	Scenarios      []Scenario          `json:"scenarios"`
	Sensitivity    map[string]*float64 `json:"sensitivity"`
	Notes          string              `json:"notes,omitempty"`
}

// ScenarioByName returns the named scenario, or nil.
func (v *ValuationBlock) ScenarioByName(name string) *Scenario {
	for i := range v.Scenarios {
		if v.Scenarios[i].Name == name {
			return &v.Scenarios[i]
		}
	}
	return nil
}
