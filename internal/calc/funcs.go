// Package calc derives dossier metrics from normalized statements. Every
// calculator is a pure function; insufficient input yields an explicit NA
// value, never an error.
package calc

import "math"

const denomFloor = 1e-12

// SafeDiv divides, reporting false when the denominator is effectively zero.
func SafeDiv(num, den float64) (float64, bool) {
	if math.Abs(den) < denomFloor {
		return 0, false
	}
	return num / den, true
}

// DSO is days sales outstanding: AR / Revenue scaled to the period.
func DSO(accountsReceivable, revenue float64, daysInPeriod float64) (float64, bool) {
	ratio, ok := SafeDiv(accountsReceivable, revenue)
	if !ok {
		return 0, false
	}
	return ratio * daysInPeriod, true
}

// DIH is days inventory on hand: Inventory / COGS scaled to the period.
func DIH(inventory, costOfGoodsSold float64, daysInPeriod float64) (float64, bool) {
	ratio, ok := SafeDiv(inventory, costOfGoodsSold)
	if !ok {
		return 0, false
	}
	return ratio * daysInPeriod, true
}

// DPO is days payables outstanding: AP / COGS scaled to the period.
func DPO(accountsPayable, costOfGoodsSold float64, daysInPeriod float64) (float64, bool) {
	ratio, ok := SafeDiv(accountsPayable, costOfGoodsSold)
	if !ok {
		return 0, false
	}
	return ratio * daysInPeriod, true
}

// CCC is the cash conversion cycle DSO + DIH - DPO.
func CCC(dso, dih, dpo float64) float64 {
	return dso + dih - dpo
}

// AccrualsRatio is the Sloan ratio (NI - CFO) / total assets.
func AccrualsRatio(netIncome, cfo, totalAssets float64) (float64, bool) {
	return SafeDiv(netIncome-cfo, totalAssets)
}

// NetDebt is total debt less cash and equivalents.
func NetDebt(totalDebt, cash float64) float64 {
	return totalDebt - cash
}

// NetLeverage is Net Debt / EBITDA.
func NetLeverage(totalDebt, cash, ebitda float64) (float64, bool) {
	return SafeDiv(NetDebt(totalDebt, cash), ebitda)
}

// InterestCoverage is EBIT over the absolute interest expense.
func InterestCoverage(ebit, interestExpense float64) (float64, bool) {
	return SafeDiv(ebit, math.Abs(interestExpense))
}

// FCFInterestCoverage is free cash flow over the absolute interest expense.
func FCFInterestCoverage(fcf, interestExpense float64) (float64, bool) {
	return SafeDiv(fcf, math.Abs(interestExpense))
}

// DebtDue24MCoverage is liquidity (cash + expected 8-quarter FCF + undrawn
// revolver) over debt maturing within 24 months.
func DebtDue24MCoverage(cash, expectedFCF8Q, undrawnRevolver, debtDue24M float64) (float64, bool) {
	return SafeDiv(cash+expectedFCF8Q+undrawnRevolver, debtDue24M)
}

// RunwayMonths is available liquidity over the monthly burn implied by TTM
// free cash flow. A non-burning company has no finite runway and reports
// false.
func RunwayMonths(cash, undrawnRevolver, minimumCash, ttmFCF float64) (float64, bool) {
	burn := math.Max(0, -ttmFCF/12.0)
	if burn == 0 {
		return 0, false
	}
	liquidity := cash + undrawnRevolver - minimumCash
	if liquidity <= 0 {
		return 0, true
	}
	return liquidity / burn, true
}

// NOPAT is net operating profit after tax.
func NOPAT(ebit, taxRate float64) float64 {
	return ebit * (1.0 - taxRate)
}

// InvestedCapital is equity + debt - cash - non-operating assets.
func InvestedCapital(totalEquity, totalDebt, cash, nonOperatingAssets float64) float64 {
	return totalEquity + totalDebt - cash - nonOperatingAssets
}

// ROIC is NOPAT over invested capital.
func ROIC(nopat, investedCapital float64) (float64, bool) {
	return SafeDiv(nopat, investedCapital)
}

// IncrementalROIC is the change in NOPAT over the change in invested capital.
func IncrementalROIC(nopatCurrent, nopatPrior, capitalCurrent, capitalPrior float64) (float64, bool) {
	return SafeDiv(nopatCurrent-nopatPrior, capitalCurrent-capitalPrior)
}

// GrossMargin is gross profit over revenue.
func GrossMargin(grossProfit, revenue float64) (float64, bool) {
	return SafeDiv(grossProfit, revenue)
}

// TakeRate is platform revenue over gross bookings.
func TakeRate(revenue, grossBookings float64) (float64, bool) {
	return SafeDiv(revenue, grossBookings)
}

// NRR is net revenue retention: (start + expansions - contractions - churn)
// over starting ARR.
func NRR(startingARR, expansions, contractions, churn float64) (float64, bool) {
	return SafeDiv(startingARR+expansions-contractions-churn, startingARR)
}

// GRR is gross revenue retention: (start - churn) over starting ARR.
func GRR(startingARR, churn float64) (float64, bool) {
	return SafeDiv(startingARR-churn, startingARR)
}

// OwnerEarnings approximates distributable cash as CFO plus (negative)
// capital expenditure.
func OwnerEarnings(cfo, capex float64) float64 {
	return cfo + capex
}
