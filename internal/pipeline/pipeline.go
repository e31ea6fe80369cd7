// Package pipeline orchestrates a full dossier run: normalize the stored
// quarter history, derive metrics, build the reverse-DCF block, evaluate the
// gate table, validate provenance, verify, compute deltas, and evaluate
// trigger covenants. The result is a fully assembled Report; nothing is
// persisted until the caller commits it through the store.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/calc"
	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/delta"
	"github.com/sells-group/dossier-cli/internal/gates"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/normalize"
	"github.com/sells-group/dossier-cli/internal/provenance"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/triggers"
	"github.com/sells-group/dossier-cli/internal/valuation"
	"github.com/sells-group/dossier-cli/internal/verify"
)

// Pipeline wires the deterministic analysis stages over a store.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	norm     *normalize.Normalizer
	builder  *calc.Builder
	valuer   *valuation.Engine
	verifier *verify.Verifier
}

// New creates a Pipeline. The verifier gets its own calculator so its
// derivations never share state with the analyst pass.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		norm:     normalize.New(cfg.Normalizer),
		builder:  calc.NewBuilder(cfg.Valuation.TaxRate),
		valuer:   valuation.New(cfg.Valuation),
		verifier: verify.New(calc.NewBuilder(cfg.Valuation.TaxRate), cfg.Verifier),
	}
}

// AnalyzeInput identifies one run: the ticker, the point-in-time run date,
// and any retrieval-supplied evidence snippets for the judgment gates.
type AnalyzeInput struct {
	Ticker   string
	AsOf     time.Time
	Evidence []model.EvidenceSnippet
}

// Analyze runs the full dossier pipeline for one ticker. A blocked dossier
// is still fully assembled; only input errors (no stored quarters, invalid
// worksheet, broken gate table) abort the run.
func (p *Pipeline) Analyze(ctx context.Context, input AnalyzeInput) (*model.Report, error) {
	ticker := strings.ToUpper(strings.TrimSpace(input.Ticker))
	if ticker == "" {
		return nil, eris.New("pipeline: ticker required")
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	log := zap.L().With(zap.String("ticker", ticker))
	log.Info("pipeline: starting analysis", zap.Time("as_of", asOf))

	history, err := p.store.ListQuarters(ctx, ticker)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load quarters for %s", ticker)
	}
	if len(history) == 0 {
		return nil, eris.Errorf("pipeline: no quarters stored for %s", ticker)
	}

	// The store returns history oldest to newest; re-derive the TTM rollup
	// from the full history so a freshly imported quarter picks up its
	// trailing twelve months.
	current := p.norm.WithTTM(history[len(history)-1], history)
	history[len(history)-1] = current

	metrics := p.builder.Build(current)

	block, valMetrics, err := p.valuationBlock(ctx, ticker, current)
	if err != nil {
		return nil, err
	}
	metrics = append(metrics, valMetrics...)

	values := make([]model.CompanyQuarter, len(history))
	for i, q := range history {
		values[i] = *q
	}
	decision := gates.DeterminePath(values)

	gater := gates.New(p.cfg.Gates).WithClock(func() time.Time { return asOf })
	stage0, path := gater.Evaluate(metrics, current.TTM(), decision)
	attachEvidence(stage0.Soft, input.Evidence)
	if err := gates.ValidateRows(stage0); err != nil {
		return nil, eris.Wrap(err, "pipeline: gate table invalid")
	}

	analyst := model.AnalystSection{
		Path:             path,
		PathReasons:      decision.Reasons,
		Stage0:           stage0,
		Metrics:          metrics,
		ReverseDCF:       block,
		Evidence:         input.Evidence,
		ProvenanceIssues: p.validateProvenance(ctx, metrics),
	}

	qa := p.verifier.Verify(current, &analyst)
	analyst.Headline = headline(path, stage0.Hard, qa.Status)

	deltas, err := delta.Compute(history)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: compute deltas for %s", ticker)
	}

	defs, err := p.store.ListTriggers(ctx, ticker)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list triggers for %s", ticker)
	}
	alerts := triggers.Evaluate(defs, numericValues(metrics), asOf)

	report := &model.Report{
		Ticker:      ticker,
		RunID:       uuid.NewString(),
		GeneratedAt: asOf,
		Analyst:     analyst,
		Verifier:    qa,
		Delta:       deltas,
		Triggers:    alerts,
	}
	log.Info("pipeline: analysis complete",
		zap.String("run_id", report.RunID),
		zap.String("path", string(path)),
		zap.String("qa", string(qa.Status)),
		zap.Int("alerts", len(alerts)),
	)
	return report, nil
}

// valuationBlock loads the ticker's worksheet if one was imported. A missing
// worksheet is not an error: the dossier simply carries no reverse-DCF block.
func (p *Pipeline) valuationBlock(ctx context.Context, ticker string, current *model.CompanyQuarter) (*model.ValuationBlock, []model.Metric, error) {
	in, err := p.store.GetValuationInputs(ctx, ticker)
	if store.IsNotFound(err) {
		zap.L().Info("pipeline: no valuation worksheet, skipping reverse-DCF", zap.String("ticker", ticker))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: load valuation inputs for %s", ticker)
	}
	block, err := p.valuer.Build(in)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: valuation for %s", ticker)
	}
	return block, valuation.Metrics(block, in, ttmPeriod(current)), nil
}

func (p *Pipeline) validateProvenance(ctx context.Context, metrics []model.Metric) []string {
	validator := provenance.NewValidator(storeDocuments{ctx: ctx, st: p.store})
	issues := validator.ValidateMetrics(metrics)
	reasons := make([]string, 0, len(issues))
	for _, issue := range issues {
		reasons = append(reasons, issue.String())
	}
	return reasons
}

// storeDocuments adapts the store to the provenance validator's document
// source for the duration of one run.
type storeDocuments struct {
	ctx context.Context
	st  store.Store
}

func (s storeDocuments) DocumentText(id string) (model.Document, string, error) {
	doc, text, err := s.st.GetDocument(s.ctx, id)
	if err != nil {
		return model.Document{}, "", err
	}
	return *doc, text, nil
}

// attachEvidence copies retrieval snippets onto the judgment gates, which
// have no metric inputs of their own.
func attachEvidence(rows []model.GateRow, evidence []model.EvidenceSnippet) {
	if len(evidence) == 0 {
		return
	}
	quotes := make([]string, 0, len(evidence))
	for _, e := range evidence {
		quotes = append(quotes, fmt.Sprintf("%s (%s): %s", e.DocumentID, e.DocType, e.Excerpt))
	}
	for i := range rows {
		switch rows[i].Gate {
		case "Industry", "Moat", "Management":
			rows[i].Evidence = quotes
		}
	}
}

func headline(path model.Path, hard []model.GateRow, qa model.QAStatus) string {
	gateStatus := "PASS"
	for _, row := range hard {
		if row.Result == model.GateFail {
			gateStatus = "FAIL"
			break
		}
	}
	return fmt.Sprintf("%s path. Hard gates: %s. QA: %s.", path, gateStatus, qa)
}

func numericValues(metrics []model.Metric) map[string]float64 {
	values := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		if v, ok := m.Numeric(); ok {
			values[m.Name] = v
		}
	}
	return values
}

func ttmPeriod(q *model.CompanyQuarter) string {
	if s, ok := q.Metadata[model.MetaTTMPeriod].(string); ok && s != "" {
		return s
	}
	return q.Period
}
