package model

import "time"

// DocType classifies the source filing or reference a document was taken from.
type DocType string

const (
	DocType10K        DocType = "10-K"
	DocType10Q        DocType = "10-Q"
	DocType20F        DocType = "20-F"
	DocType6K         DocType = "6-K"
	DocType8K         DocType = "8-K"
	DocTypeProxy      DocType = "Proxy"
	DocTypeIR         DocType = "IR"
	DocTypeTranscript DocType = "Transcript"
	DocTypeMacro      DocType = "Macro"
	DocTypeMarket     DocType = "Market"
)

// PrimaryDocTypes are the source types a cited metric may reference without a
// macro/market exemption.
var PrimaryDocTypes = map[DocType]bool{
	DocType10K:        true,
	DocType10Q:        true,
	DocType20F:        true,
	DocType6K:         true,
	DocType8K:         true,
	DocTypeProxy:      true,
	DocTypeIR:         true,
	DocTypeTranscript: true,
}

// MacroDocTypes are permitted only for metrics explicitly flagged as
// macro/market valuation inputs.
var MacroDocTypes = map[DocType]bool{
	DocTypeMacro:  true,
	DocTypeMarket: true,
}

// Document is a point-in-time snapshot of a source filing. It is created once
// at ingestion and never mutated; the raw text lives in the store keyed by ID.
type Document struct {
	ID          string    `json:"id" yaml:"id"`
	Ticker      string    `json:"ticker" yaml:"ticker"`
	DocType     DocType   `json:"doc_type" yaml:"doc_type"`
	Title       string    `json:"title" yaml:"title"`
	Date        string    `json:"date" yaml:"date"`
	URL         string    `json:"url" yaml:"url"`
	PITHash     string    `json:"pit_hash" yaml:"pit_hash"`
	RetrievedAt time.Time `json:"retrieved_at,omitempty" yaml:"retrieved_at,omitempty"`
}
