// Package verify is the independent QA pass over a finished dossier. It
// re-derives a deterministic sample of metrics from the same quarter with
// its own calculator run, enforces cross-field consistency rules, and
// blocks the dossier on any discrepancy. It reads and reports; it never
// mutates upstream state.
package verify

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"sort"
	"strings"

	"github.com/sells-group/dossier-cli/internal/calc"
	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
)

// sampleSeed fixes the re-derivation sample so identical dossiers produce
// identical QA output.
const sampleSeed = 7349

const (
	defaultSampleSize   = 5
	defaultRelTolerance = 0.01
)

// hardGateNames are the gates every dossier must carry with a decided
// result.
var hardGateNames = []string{
	"Circle of Competence",
	"Fraud/Controls",
	"Imminent Solvency",
	"Valuation",
	"Final Decision Gate",
}

// Verifier re-checks dossiers against an independent calculator run.
type Verifier struct {
	builder        *calc.Builder
	sampleSize     int
	relTolerance   float64
	allowedDomains []string
}

// New builds a Verifier from config.
func New(builder *calc.Builder, cfg config.VerifierConfig) *Verifier {
	v := &Verifier{
		builder:        builder,
		sampleSize:     cfg.SampleSize,
		relTolerance:   cfg.RelativeTolerance,
		allowedDomains: cfg.AllowedDomains,
	}
	if v.sampleSize <= 0 {
		v.sampleSize = defaultSampleSize
	}
	if v.relTolerance <= 0 {
		v.relTolerance = defaultRelTolerance
	}
	return v
}

// Verify runs every QA rule and returns PASS only when no rule produced a
// reason.
func (v *Verifier) Verify(quarter *model.CompanyQuarter, analyst *model.AnalystSection) model.QAResult {
	var reasons []string

	reasons = append(reasons, analyst.ProvenanceIssues...)
	reasons = append(reasons, v.checkSample(quarter, analyst.Metrics)...)
	reasons = append(reasons, v.checkCrossField(quarter, analyst)...)
	reasons = append(reasons, v.checkHardGates(analyst.Stage0.Hard)...)
	reasons = append(reasons, v.checkEvidenceSources(analyst.Evidence)...)
	reasons = append(reasons, v.checkURLs(analyst.Metrics)...)

	return model.NewQAResult(reasons)
}

// checkSample re-derives a fixed-seed sample of calculator metrics and
// compares them with the dossier's values.
func (v *Verifier) checkSample(quarter *model.CompanyQuarter, metrics []model.Metric) []string {
	derived := map[string]model.Metric{}
	for _, m := range v.builder.Build(quarter) {
		derived[m.Name] = m
	}
	registryNames := map[string]bool{}
	for _, name := range calc.MetricNames() {
		registryNames[name] = true
	}

	byName := map[string]model.Metric{}
	var eligible []string
	for _, m := range metrics {
		if !registryNames[m.Name] {
			continue
		}
		if _, ok := m.Numeric(); !ok {
			continue
		}
		byName[m.Name] = m
		eligible = append(eligible, m.Name)
	}
	sort.Strings(eligible)
	rng := rand.New(rand.NewSource(sampleSeed))
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > v.sampleSize {
		eligible = eligible[:v.sampleSize]
	}

	var reasons []string
	for _, name := range eligible {
		dossier := byName[name]
		reported, _ := dossier.Numeric()

		independent, ok := derived[name]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("Missing independent derivation for %s", name))
			continue
		}
		expected, ok := independent.Numeric()
		if !ok {
			reasons = append(reasons, fmt.Sprintf("Missing independent derivation for %s", name))
			continue
		}
		if dossier.Unit != independent.Unit {
			reasons = append(reasons, fmt.Sprintf("Unit mismatch for %s: %s vs %s", name, dossier.Unit, independent.Unit))
			continue
		}
		diff := relativeDiff(reported, expected)
		if diff > v.relTolerance {
			reasons = append(reasons, fmt.Sprintf(
				"Metric mismatch for %s: dossier %.6g vs derived %.6g", name, reported, expected))
		}
	}
	return reasons
}

func relativeDiff(reported, expected float64) float64 {
	if expected == 0 {
		return math.Abs(reported - expected)
	}
	return math.Abs(reported-expected) / math.Abs(expected)
}

// checkCrossField enforces the unconditional consistency rules between
// dossier sections.
func (v *Verifier) checkCrossField(quarter *model.CompanyQuarter, analyst *model.AnalystSection) []string {
	var reasons []string
	byName := map[string]model.Metric{}
	for _, m := range analyst.Metrics {
		byName[m.Name] = m
	}

	// Interest coverage legs must be computed over the same fiscal period.
	ebitCov, okEBIT := byName["Interest Coverage"]
	fcfCov, okFCF := byName["FCF Interest Coverage"]
	if okEBIT && okFCF && ebitCov.Period != fcfCov.Period {
		reasons = append(reasons, fmt.Sprintf(
			"Interest coverage periods differ: %s vs %s", ebitCov.Period, fcfCov.Period))
	}

	// The reverse-DCF must price the most recent filed share count.
	if analyst.ReverseDCF != nil {
		if shares, ok := byName["Shares Diluted"]; ok {
			if filed, ok := shares.Numeric(); ok && analyst.ReverseDCF.SharesDiluted != filed {
				reasons = append(reasons, fmt.Sprintf(
					"Diluted share count mismatch: reverse-DCF %.6g vs filing %.6g",
					analyst.ReverseDCF.SharesDiluted, filed))
			}
		}
	}

	// Near-term maturities must match the footnote when one was filed.
	if footnote, ok := footnoteValue(quarter, "debt_due_24m"); ok {
		if coverage, present := byName["Debt Due 24M Coverage"]; present {
			if used, present := coverage.Inputs["debt_due_24m"]; present && used != footnote {
				reasons = append(reasons, fmt.Sprintf(
					"Debt due within 24 months does not reconcile with footnotes: %.6g vs %.6g",
					used, footnote))
			}
		}
	}

	// Margins must divide by reported revenue, not an adjusted figure.
	if reported, ok := reportedRevenue(quarter); ok {
		for _, m := range analyst.Metrics {
			if !strings.Contains(m.Name, "Margin") {
				continue
			}
			if used, present := m.Inputs["revenue"]; present && used != reported {
				reasons = append(reasons, fmt.Sprintf(
					"%s computed against adjusted revenue: %.6g vs reported %.6g", m.Name, used, reported))
			}
		}
	}

	// Subscription metrics need the subscription business-model tag.
	if !isSubscription(quarter) {
		for _, name := range []string{"NRR", "GRR"} {
			if m, ok := byName[name]; ok {
				if _, numeric := m.Numeric(); numeric {
					reasons = append(reasons, fmt.Sprintf(
						"Subscription metric %s without subscription business model", name))
				}
			}
		}
	}
	return reasons
}

func (v *Verifier) checkHardGates(rows []model.GateRow) []string {
	seen := map[string]model.GateResult{}
	for _, row := range rows {
		seen[row.Gate] = row.Result
	}
	var reasons []string
	for _, gate := range hardGateNames {
		result, ok := seen[gate]
		switch {
		case !ok:
			reasons = append(reasons, fmt.Sprintf("Missing hard gate: %s", gate))
		case result == model.GateNA:
			reasons = append(reasons, fmt.Sprintf("Missing %s verdict", gate))
		case result != model.GatePass:
			reasons = append(reasons, fmt.Sprintf("Hard gate failed: %s", gate))
		}
	}
	return reasons
}

func (v *Verifier) checkEvidenceSources(evidence []model.EvidenceSnippet) []string {
	var reasons []string
	for _, e := range evidence {
		if !model.PrimaryDocTypes[e.DocType] {
			reasons = append(reasons, fmt.Sprintf("Non-primary source detected: %s", e.DocType))
		}
	}
	return reasons
}

// checkURLs applies the source-domain allowlist to every cited metric.
func (v *Verifier) checkURLs(metrics []model.Metric) []string {
	var reasons []string
	for _, m := range metrics {
		if m.Provenance.URL == "" {
			continue
		}
		if !v.allowedURL(m.Provenance.URL) {
			reasons = append(reasons, fmt.Sprintf(
				"Disallowed source domain for %s: %s", m.Name, m.Provenance.URL))
		}
	}
	return reasons
}

func (v *Verifier) allowedURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range v.allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func footnoteValue(quarter *model.CompanyQuarter, key string) (float64, bool) {
	raw, ok := quarter.Metadata[model.MetaFootnotes]
	if !ok {
		return 0, false
	}
	switch notes := raw.(type) {
	case map[string]float64:
		v, ok := notes[key]
		return v, ok
	case map[string]any:
		v, ok := notes[key].(float64)
		return v, ok
	}
	return 0, false
}

func reportedRevenue(quarter *model.CompanyQuarter) (float64, bool) {
	if ttm := quarter.TTM(); ttm != nil {
		if v, ok := ttm["Revenue"]; ok {
			return v, true
		}
	}
	return quarter.Income("Revenue")
}

func isSubscription(quarter *model.CompanyQuarter) bool {
	tag, _ := quarter.Metadata[model.MetaBusinessModel].(string)
	return strings.EqualFold(tag, "subscription")
}
