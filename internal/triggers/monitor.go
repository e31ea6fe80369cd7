// Package triggers registers covenant-style watch definitions and projects
// them against the latest metric values. Definitions are validated once at
// registration; evaluation never mutates them, so alerts can always be
// recomputed from the stored list.
package triggers

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/dossier-cli/internal/model"
)

// DeadlineLayout is the wire format for trigger deadlines.
const DeadlineLayout = "2006-01-02"

// TriggerConfigError rejects an invalid definition at registration time,
// before anything is persisted.
type TriggerConfigError struct {
	Field  string
	Reason string
}

func (e *TriggerConfigError) Error() string {
	return fmt.Sprintf("trigger %s: %s", e.Field, e.Reason)
}

// NewTrigger validates a definition and stamps it with an id and creation
// time. The operator names the covenant that must hold; an alert fires when
// it stops holding.
func NewTrigger(ticker, metric string, threshold float64, op model.TriggerOperator, deadline string) (model.Trigger, error) {
	if ticker == "" {
		return model.Trigger{}, &TriggerConfigError{Field: "ticker", Reason: "required"}
	}
	if metric == "" {
		return model.Trigger{}, &TriggerConfigError{Field: "metric", Reason: "required"}
	}
	if !model.ValidOperator(op) {
		return model.Trigger{}, &TriggerConfigError{Field: "operator", Reason: fmt.Sprintf("unknown comparison %q", op)}
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return model.Trigger{}, &TriggerConfigError{Field: "threshold", Reason: "must be finite"}
	}
	if _, err := time.Parse(DeadlineLayout, deadline); err != nil {
		return model.Trigger{}, &TriggerConfigError{Field: "deadline", Reason: fmt.Sprintf("want %s, got %q", DeadlineLayout, deadline)}
	}
	return model.Trigger{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Metric:    metric,
		Threshold: threshold,
		Operator:  op,
		Deadline:  deadline,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Evaluate projects every trigger against the latest metric values. A passed
// deadline is EXPIRED, a violated covenant is BREACH, a trigger whose metric
// has no current value is PENDING, and a healthy trigger produces no alert.
// Alerts come back in definition order.
func Evaluate(defs []model.Trigger, metrics map[string]float64, today time.Time) []model.TriggerAlert {
	var alerts []model.TriggerAlert
	for _, trig := range defs {
		deadline, err := time.Parse(DeadlineLayout, trig.Deadline)
		if err != nil {
			// Registration validates deadlines; a corrupt stored row is
			// skipped rather than guessed at.
			continue
		}
		days := daysRemaining(deadline, today)
		value, present := metrics[trig.Metric]

		switch {
		case today.After(deadline):
			alerts = append(alerts, model.TriggerAlert{
				Trigger:       trig,
				Status:        model.AlertExpired,
				Message:       fmt.Sprintf("Deadline passed without update for %s", trig.Metric),
				DaysRemaining: days,
			})
		case !present:
			alerts = append(alerts, model.TriggerAlert{
				Trigger:       trig,
				Status:        model.AlertPending,
				Message:       fmt.Sprintf("No current value for %s; covenant unconfirmed", trig.Metric),
				DaysRemaining: days,
			})
		case breached(trig.Operator, value, trig.Threshold):
			alerts = append(alerts, model.TriggerAlert{
				Trigger:       trig,
				Status:        model.AlertBreach,
				Message:       fmt.Sprintf("Breach detected for %s: value %v", trig.Metric, value),
				DaysRemaining: days,
			})
		}
	}
	return alerts
}

// breached reports whether the covenant named by op no longer holds.
func breached(op model.TriggerOperator, value, threshold float64) bool {
	switch op {
	case model.OpGTE:
		return value < threshold
	case model.OpLTE:
		return value > threshold
	case model.OpGT:
		return value <= threshold
	case model.OpLT:
		return value >= threshold
	case model.OpEQ:
		return value != threshold
	}
	return false
}

func daysRemaining(deadline, today time.Time) int {
	return int(math.Ceil(deadline.Sub(today).Hours() / 24))
}
