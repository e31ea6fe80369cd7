// Package provenance checks that every metric's citation resolves to a
// verbatim span of its source document.
package provenance

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dossier-cli/internal/calc"
	"github.com/sells-group/dossier-cli/internal/model"
)

// maxQuoteWords bounds citation length; longer spans stop being quotes and
// start being excerpts.
const maxQuoteWords = 30

// Issue is one provenance defect on one metric.
type Issue struct {
	Metric string `json:"metric"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	return i.Metric + ": " + i.Reason
}

// DocumentSource resolves a document id to its record and raw text.
type DocumentSource interface {
	DocumentText(id string) (model.Document, string, error)
}

// Validator checks citation fields and, when a document source is attached,
// verifies each quote against the source text.
type Validator struct {
	source DocumentSource
}

// NewValidator builds a Validator. A nil source limits validation to field
// checks, matching callers that run before documents are imported.
func NewValidator(source DocumentSource) *Validator {
	return &Validator{source: source}
}

// ValidateMetrics validates every metric and returns all issues found.
func (v *Validator) ValidateMetrics(metrics []model.Metric) []Issue {
	var issues []Issue
	for _, m := range metrics {
		issues = append(issues, v.validateMetric(m)...)
	}
	return issues
}

func (v *Validator) validateMetric(m model.Metric) []Issue {
	var problems []Issue
	add := func(reason string) {
		problems = append(problems, Issue{Metric: m.Name, Reason: reason})
	}

	if m.Provenance.SourceDocID == "" {
		add("missing source_doc_id")
	}
	if m.Provenance.PageOrSection == "" {
		add("missing page_or_section")
	}
	if m.Provenance.Quote == "" {
		add("missing quote")
	} else if len(strings.Fields(m.Provenance.Quote)) > maxQuoteWords {
		add("quote exceeds 30 words")
	}
	if m.Provenance.URL == "" {
		add("missing url")
	}
	if len(problems) > 0 {
		return problems
	}

	// Synthetic derivations have no document to open; the verifier's
	// source policy covers them.
	if v.source == nil || m.Provenance.SourceDocID == calc.SystemDocID {
		return nil
	}

	doc, text, err := v.source.DocumentText(m.Provenance.SourceDocID)
	if err != nil {
		add("unable to load source document")
		return problems
	}

	if !quoteInText(m.Provenance.Quote, text) {
		add("quote not found in source document")
	}
	if reason, ok := sourcePolicyViolation(m, doc); !ok {
		add(reason)
	}
	return problems
}

// sourcePolicyViolation enforces the primary-source rule: filings and
// official records back company metrics; macro and market documents are
// acceptable only for macro-flagged valuation inputs.
func sourcePolicyViolation(m model.Metric, doc model.Document) (string, bool) {
	if model.PrimaryDocTypes[doc.DocType] {
		return "", true
	}
	if m.MacroFlagged && model.MacroDocTypes[doc.DocType] {
		return "", true
	}
	return "non-primary source type " + string(doc.DocType), false
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// quoteInText reports whether the quote appears verbatim in the text,
// tolerating case, Unicode compatibility forms, and whitespace runs.
func quoteInText(quote, text string) bool {
	quote = strings.TrimSpace(quote)
	if quote == "" {
		return true
	}
	if strings.Contains(text, quote) {
		return true
	}
	return strings.Contains(normalizeText(text), normalizeText(quote))
}

func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return whitespacePattern.ReplaceAllString(s, " ")
}
