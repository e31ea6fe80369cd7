package valuation

import "math"

// derivativeFloor aborts a Newton step whose slope is too flat to divide by.
const derivativeFloor = 1e-9

// equityFlows builds the per-share cash-flow vector the IRR is solved on:
// pay the share price at t0, collect the first four forecast years, then the
// final year plus terminal value with net debt settled ahead of equity.
func equityFlows(price float64, path []float64, terminalValue, netDebt, shares float64) []float64 {
	flows := make([]float64, 0, len(path)+1)
	flows = append(flows, -price)
	for _, f := range path[:len(path)-1] {
		flows = append(flows, f/shares)
	}
	final := path[len(path)-1] + terminalValue - netDebt
	flows = append(flows, final/shares)
	return flows
}

// gordonTerminal is the perpetuity value of the final forecast year grown at
// g and discounted at wacc. Callers must ensure wacc > g.
func gordonTerminal(finalFCF, wacc, g float64) float64 {
	return finalFCF * (1 + g) / (wacc - g)
}

func npv(rate float64, flows []float64) float64 {
	total := 0.0
	for t, f := range flows {
		total += f / math.Pow(1+rate, float64(t))
	}
	return total
}

func npvSlope(rate float64, flows []float64) float64 {
	slope := 0.0
	for t := 1; t < len(flows); t++ {
		slope -= float64(t) * flows[t] / math.Pow(1+rate, float64(t+1))
	}
	return slope
}

// solveIRR runs Newton-Raphson from the configured guess. It reports false
// when the iteration budget runs out, the slope collapses below the floor,
// or the iterate leaves the admissible domain; callers surface that as NA
// rather than inventing a rate.
func (e *Engine) solveIRR(flows []float64) (float64, bool) {
	rate := e.solver.Guess
	for i := 0; i < e.solver.MaxIterations; i++ {
		value := npv(rate, flows)
		if math.Abs(value) < e.solver.Tolerance {
			return rate, true
		}
		slope := npvSlope(rate, flows)
		if math.Abs(slope) < derivativeFloor {
			return 0, false
		}
		next := rate - value/slope
		if next <= -1 || math.IsNaN(next) {
			return 0, false
		}
		rate = next
	}
	return 0, false
}
