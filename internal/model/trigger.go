package model

import "time"

// TriggerOperator expresses the covenant that must hold for the watched
// metric. An alert fires when the covenant is violated.
type TriggerOperator string

const (
	OpGTE TriggerOperator = "gte"
	OpLTE TriggerOperator = "lte"
	OpGT  TriggerOperator = "gt"
	OpLT  TriggerOperator = "lt"
	OpEQ  TriggerOperator = "eq"
)

// ValidOperator reports whether op is one of the five registered comparison
// operators. Unknown operators are rejected at registration time.
func ValidOperator(op TriggerOperator) bool {
	switch op {
	case OpGTE, OpLTE, OpGT, OpLT, OpEQ:
		return true
	}
	return false
}

// Trigger is a persisted watch definition for one ticker metric.
type Trigger struct {
	ID        string          `json:"id"`
	Ticker    string          `json:"ticker"`
	Metric    string          `json:"metric"`
	Threshold float64         `json:"threshold"`
	Operator  TriggerOperator `json:"operator"`
	Deadline  string          `json:"deadline"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// AlertStatus classifies a trigger evaluation outcome.
type AlertStatus string

const (
	AlertBreach  AlertStatus = "BREACH"
	AlertPending AlertStatus = "PENDING"
	AlertExpired AlertStatus = "EXPIRED"
)

// TriggerAlert is a derived, re-computable projection of one trigger against
// the latest metric values. Alerts are generated, never edited.
type TriggerAlert struct {
	Trigger       Trigger     `json:"trigger"`
	Status        AlertStatus `json:"status"`
	Message       string      `json:"message"`
	DaysRemaining int         `json:"days_remaining"`
}
