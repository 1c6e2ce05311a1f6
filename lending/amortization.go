/*
amortization.go - Reducing-balance EMI math

PURPOSE:
  Pure functions that turn (principal, annual rate, duration) into the
  amortization contract: the level EMI, the total payable, and the total
  interest. No side effects; safe to call repeatedly before the figures
  are frozen at disbursement.

ROUNDING POLICY:
  The EMI is rounded to the currency minor unit (half away from zero)
  and every downstream total is derived from the ROUNDED EMI, never
  recomputed independently. The ledger's payable figure is therefore
  always an exact multiple of the EMI actually charged.
*/
package lending

import (
	"github.com/shopspring/decimal"
)

// Amortization is the result of an EMI computation.
type Amortization struct {
	EMIAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	TotalInterest decimal.Decimal
}

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
	decTwelve  = decimal.NewFromInt(12)
)

// ComputeAmortization derives the EMI schedule for a reducing-balance loan.
//
// With monthly rate r = annualRatePct/100/12 and n = durationMonths:
//
//	EMI = P·r·(1+r)^n / ((1+r)^n − 1)
//
// A zero rate degrades to a straight principal split. The principal must
// be positive and the duration at least one month.
func ComputeAmortization(principal decimal.Decimal, annualRatePct decimal.Decimal, durationMonths int) (Amortization, error) {
	if !principal.IsPositive() || durationMonths < 1 {
		return Amortization{}, ErrInvalidAmount
	}
	if annualRatePct.IsNegative() {
		return Amortization{}, ErrInvalidAmount
	}

	n := decimal.NewFromInt(int64(durationMonths))

	if annualRatePct.IsZero() {
		emi := RoundMoney(principal.Div(n))
		return Amortization{
			EMIAmount:     emi,
			TotalAmount:   principal,
			TotalInterest: decimal.Zero,
		}, nil
	}

	r := annualRatePct.Div(decHundred).Div(decTwelve)
	compound := decOne.Add(r).Pow(n) // (1+r)^n

	emi := RoundMoney(principal.Mul(r).Mul(compound).Div(compound.Sub(decOne)))
	total := emi.Mul(n)

	return Amortization{
		EMIAmount:     emi,
		TotalAmount:   total,
		TotalInterest: total.Sub(principal),
	}, nil
}

// MonthlyRate converts an annual percentage rate to the per-month rate
// used throughout the schedule math.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(decHundred).Div(decTwelve)
}

// ComputeAdvancePlan splits an advance into fixed per-cycle deductions.
func ComputeAdvancePlan(amount decimal.Decimal, cycles int) (AdvanceConfig, error) {
	if !amount.IsPositive() || cycles < 1 {
		return AdvanceConfig{}, ErrInvalidAmount
	}
	return AdvanceConfig{
		DeductionCycles:   cycles,
		DeductionPerCycle: RoundMoney(amount.Div(decimal.NewFromInt(int64(cycles)))),
	}, nil
}
