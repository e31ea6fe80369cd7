package model

import "github.com/rotisserie/eris"

// GateResult is the outcome of one gate evaluation.
type GateResult string

const (
	GatePass     GateResult = "Pass"
	GateSoftPass GateResult = "Soft-Pass"
	GateFail     GateResult = "Fail"
	GateNA       GateResult = "NA"
)

// Hardness separates gates whose failure blocks the thesis outright from
// gates that permit a monitored pass.
type Hardness string

const (
	HardGate Hardness = "Hard"
	SoftGate Hardness = "Soft"
)

// FlipTrigger is the condition and deadline that turns a Soft-Pass into a
// Fail if breached.
type FlipTrigger struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// GateRow is one row of the stage-zero audit table. Rows are computed fresh
// per analysis run and never patched in place.
type GateRow struct {
	Gate           string       `json:"gate"`
	Hardness       Hardness     `json:"hard_or_soft"`
	WhatItMeans    string       `json:"what_it_means"`
	MetricsSources []string     `json:"metrics_sources,omitempty"`
	PassRule       string       `json:"pass_rule"`
	Result         GateResult   `json:"result"`
	FlipTrigger    *FlipTrigger `json:"flip_trigger,omitempty"`
	Evidence       []string     `json:"evidence,omitempty"`
}

// Validate enforces the flip-trigger contract: every Soft-Pass carries
// exactly one flip-trigger with a deadline, and nothing else does.
func (r *GateRow) Validate() error {
	if r.Result == GateSoftPass {
		if r.FlipTrigger == nil {
			return eris.Errorf("gate %q: Soft-Pass without flip-trigger", r.Gate)
		}
		if r.FlipTrigger.Deadline == "" {
			return eris.Errorf("gate %q: flip-trigger without deadline", r.Gate)
		}
		return nil
	}
	if r.FlipTrigger != nil {
		return eris.Errorf("gate %q: flip-trigger on %s result", r.Gate, r.Result)
	}
	return nil
}
