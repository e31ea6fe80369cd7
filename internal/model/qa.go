package model

// QAStatus is the verifier's trust verdict for a dossier.
type QAStatus string

const (
	QAPass    QAStatus = "PASS"
	QABlocker QAStatus = "BLOCKER"
)

// QAResult is the verifier's output: PASS iff Reasons is empty. A BLOCKER
// halts trust in the dossier but the dossier itself is still fully rendered.
type QAResult struct {
	Status  QAStatus `json:"status"`
	Reasons []string `json:"reasons"`
}

// NewQAResult derives the status from the accumulated reasons.
func NewQAResult(reasons []string) QAResult {
	if len(reasons) == 0 {
		return QAResult{Status: QAPass, Reasons: []string{}}
	}
	return QAResult{Status: QABlocker, Reasons: reasons}
}
