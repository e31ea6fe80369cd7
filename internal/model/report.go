package model

import "time"

// Path is the analysis track selected for a company.
type Path string

const (
	PathMature   Path = "Mature"
	PathEmergent Path = "Emergent"
	PathFail     Path = "Fail"
)

// EvidenceSnippet is a ranked quoted span supplied by the retrieval
// collaborator and attached to qualitative gate rows.
type EvidenceSnippet struct {
	DocumentID string  `json:"document_id"`
	DocType    DocType `json:"doc_type"`
	URL        string  `json:"url"`
	Excerpt    string  `json:"excerpt"`
}

// Stage0 groups the gate audit rows by hardness.
type Stage0 struct {
	Hard []GateRow `json:"hard"`
	Soft []GateRow `json:"soft"`
}

// AnalystSection is the deterministic analyst output of a dossier.
type AnalystSection struct {
	Headline         string            `json:"output_0"`
	Path             Path              `json:"path"`
	PathReasons      []string          `json:"path_reasons"`
	Stage0           Stage0            `json:"stage_0"`
	Metrics          []Metric          `json:"metrics"`
	ReverseDCF       *ValuationBlock   `json:"reverse_dcf,omitempty"`
	Evidence         []EvidenceSnippet `json:"evidence,omitempty"`
	ProvenanceIssues []string          `json:"provenance_issues"`
}

// Report is the persisted per-ticker dossier: analyst output, verifier
// verdict, delta table, and trigger alerts. It is written atomically as one
// unit; a blocked dossier is still fully rendered.
type Report struct {
	Ticker      string                `json:"ticker"`
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Analyst     AnalystSection        `json:"analyst"`
	Verifier    QAResult              `json:"verifier"`
	Delta       map[string]DeltaEntry `json:"delta"`
	Triggers    []TriggerAlert        `json:"triggers"`
}
