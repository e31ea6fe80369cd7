package valuation

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Inputs is the analyst-supplied valuation worksheet for one ticker: market
// observables, CAPM components, macro assumptions, hurdle adjustments, and
// the three five-year FCF scenario paths. Files are YAML; every rate is a
// decimal fraction and every amount is in base currency units.
type Inputs struct {
	Ticker              string                      `yaml:"ticker" json:"ticker"`
	AsOf                string                      `yaml:"as_of" json:"as_of"`
	SharePrice          float64                     `yaml:"share_price" json:"share_price"`
	SharesDiluted       float64                     `yaml:"shares_diluted" json:"shares_diluted"`
	RiskFree            float64                     `yaml:"risk_free" json:"risk_free"`
	EquityRiskPremium   float64                     `yaml:"equity_risk_premium" json:"equity_risk_premium"`
	Beta                float64                     `yaml:"beta" json:"beta"`
	EquityAdjustmentBps float64                     `yaml:"equity_adjustment_bps" json:"equity_adjustment_bps"`
	PreTaxCostOfDebt    float64                     `yaml:"pre_tax_cost_of_debt" json:"pre_tax_cost_of_debt"`
	TaxRate             float64                     `yaml:"tax_rate" json:"tax_rate"`
	TotalDebt           float64                     `yaml:"total_debt" json:"total_debt"`
	Cash                float64                     `yaml:"cash" json:"cash"`
	Inflation           float64                     `yaml:"inflation" json:"inflation"`
	RealGrowth          float64                     `yaml:"real_growth" json:"real_growth"`
	HurdleAdjustments   []model.HurdleAdjustment    `yaml:"hurdle_adjustments" json:"hurdle_adjustments"`
	Scenarios           map[string][]float64        `yaml:"scenarios" json:"scenarios"`
	Provenance          map[string]model.Provenance `yaml:"provenance" json:"provenance"`
	Documents           []EmbeddedDocument          `yaml:"documents" json:"documents,omitempty"`
	Notes               string                      `yaml:"notes" json:"notes"`
}

// EmbeddedDocument is a macro or market reference shipped inside the
// worksheet itself, so the provenance entries above it resolve without a
// separate document import.
type EmbeddedDocument struct {
	model.Document `yaml:",inline"`
	Content        string `yaml:"content" json:"content"`
}

// pathYears is the explicit forecast horizon before the terminal value.
const pathYears = 5

// LoadInputs reads and validates a valuation worksheet.
func LoadInputs(path string) (*Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: read inputs")
	}
	var in Inputs
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrap(err, "valuation: parse inputs")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate rejects worksheets that cannot produce a defensible valuation.
func (in *Inputs) Validate() error {
	switch {
	case in.Ticker == "":
		return eris.New("valuation: inputs missing ticker")
	case in.SharePrice <= 0:
		return eris.New("valuation: share price must be positive")
	case in.SharesDiluted <= 0:
		return eris.New("valuation: diluted shares must be positive")
	case in.TaxRate < 0 || in.TaxRate >= 1:
		return eris.New("valuation: tax rate must be in [0, 1)")
	case in.TotalDebt < 0:
		return eris.New("valuation: total debt cannot be negative")
	case in.Cash < 0:
		return eris.New("valuation: cash cannot be negative")
	}
	for _, name := range []string{model.ScenarioBear, model.ScenarioBase, model.ScenarioBull} {
		path, ok := in.Scenarios[name]
		if !ok {
			return eris.Errorf("valuation: missing %s scenario", name)
		}
		if len(path) != pathYears {
			return eris.Errorf("valuation: %s scenario needs %d years, got %d", name, pathYears, len(path))
		}
	}
	for i, doc := range in.Documents {
		if doc.ID == "" {
			return eris.Errorf("valuation: embedded document %d missing id", i+1)
		}
	}
	return nil
}

// NetDebt is gross debt less cash, the balance settled ahead of equity in
// the terminal flow.
func (in *Inputs) NetDebt() float64 {
	return in.TotalDebt - in.Cash
}
