package model

// Provenance ties a metric value back to the exact span of source text it
// was taken from. Every metric attached to a report carries one.
type Provenance struct {
	SourceDocID   string `json:"source_doc_id" yaml:"source_doc_id"`
	PageOrSection string `json:"page_or_section" yaml:"page_or_section"`
	Quote         string `json:"quote" yaml:"quote"`
	URL           string `json:"url" yaml:"url"`
}

// Metric is one derived or cited figure. Value is nil when the inputs were
// insufficient: NA propagates as "insufficient evidence", it never aborts a
// run. Text carries categorical values such as a business-model tag.
type Metric struct {
	Name         string             `json:"name"`
	Value        *float64           `json:"value"`
	Text         string             `json:"text,omitempty"`
	Unit         string             `json:"unit"`
	Period       string             `json:"period"`
	Provenance   Provenance         `json:"provenance"`
	Inputs       map[string]float64 `json:"inputs,omitempty"`
	MacroFlagged bool               `json:"macro_flagged,omitempty"`
}

// F is shorthand for building an optional float value.
func F(v float64) *float64 { return &v }

// Numeric reports the metric's value when one was derived.
func (m *Metric) Numeric() (float64, bool) {
	if m.Value == nil {
		return 0, false
	}
	return *m.Value, true
}
