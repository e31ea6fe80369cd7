package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateRow_SoftPassRequiresFlipTrigger(t *testing.T) {
	row := GateRow{Gate: "Moat", Hardness: SoftGate, Result: GateSoftPass}
	assert.Error(t, row.Validate())

	row.FlipTrigger = &FlipTrigger{Description: "Refresh competitive notes"}
	assert.Error(t, row.Validate(), "deadline is mandatory")

	row.FlipTrigger.Deadline = "2026-11-20"
	assert.NoError(t, row.Validate())
}

func TestGateRow_FlipTriggerForbiddenElsewhere(t *testing.T) {
	row := GateRow{
		Gate:        "Circle of Competence",
		Hardness:    HardGate,
		Result:      GatePass,
		FlipTrigger: &FlipTrigger{Description: "x", Deadline: "2026-01-01"},
	}
	assert.Error(t, row.Validate())

	row.FlipTrigger = nil
	assert.NoError(t, row.Validate())
}
