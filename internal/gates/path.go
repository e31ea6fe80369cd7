package gates

import "github.com/sells-group/dossier-cli/internal/model"

// DeterminePath classifies a business Mature or Emergent. history is
// ordered oldest to newest with the quarter under analysis last. All four
// checks must hold for Mature: positive TTM free cash flow, non-negative
// GAAP operating income, net cash or net leverage at most 1x, and eight
// consecutive quarters of segment disclosure. Failing checks are recorded
// as reasons.
func DeterminePath(history []model.CompanyQuarter) PathDecision {
	if len(history) == 0 {
		return PathDecision{Path: model.PathEmergent, Reasons: []string{"No quarters available"}}
	}
	current := history[len(history)-1]
	ttm := current.TTM()

	var reasons []string

	fcf, okFCF := ttm["FCF"]
	if !okFCF || fcf <= 0 {
		reasons = append(reasons, "TTM FCF <= 0")
	}

	ebit, okEBIT := ttm["EBIT"]
	if !okEBIT || ebit < 0 {
		reasons = append(reasons, "TTM EBIT < 0")
	}

	netDebt := current.BalanceSheet["TotalDebt"] - current.BalanceSheet["Cash"]
	earnings, okEarnings := ttm["EBITDA"]
	if !okEarnings {
		earnings, okEarnings = ttm["EBIT"]
	}
	leverageOK := netDebt <= 0
	if !leverageOK && okEarnings && earnings > 0 {
		leverageOK = netDebt/earnings <= 1.0
	}
	if !leverageOK {
		reasons = append(reasons, "Net leverage >1x or net debt positive")
	}

	if !segmentsDisclosed(history, 8) {
		reasons = append(reasons, "Segment disclosure < 8 quarters")
	}

	if len(reasons) > 0 {
		return PathDecision{Path: model.PathEmergent, Reasons: reasons}
	}
	return PathDecision{Path: model.PathMature, Reasons: []string{}}
}

// segmentsDisclosed requires the trailing window to be contiguous quarters,
// each with a segment table. A period gap breaks the streak.
func segmentsDisclosed(history []model.CompanyQuarter, quarters int) bool {
	if len(history) < quarters {
		return false
	}
	window := history[len(history)-quarters:]
	var expected model.Period
	for i := len(window) - 1; i >= 0; i-- {
		if len(window[i].Segments) == 0 {
			return false
		}
		p, err := model.ParsePeriod(window[i].Period)
		if err != nil {
			return false
		}
		if i < len(window)-1 && p != expected {
			return false
		}
		expected = p.Prev()
	}
	return true
}
