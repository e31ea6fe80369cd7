package model

// DeltaEntry is the change record for one tracked metric. Absolute deltas
// are nil when the base quarter is missing; percent deltas are additionally
// nil when the base value is zero.
type DeltaEntry struct {
	Current    *float64 `json:"current"`
	QoQ        *float64 `json:"qoq"`
	YoY        *float64 `json:"yoy"`
	QoQPercent *float64 `json:"qoq_percent"`
	YoYPercent *float64 `json:"yoy_percent"`
}
