/*
settlement.go - Early-settlement projection

PURPOSE:
  Projects what it costs to close a loan before its scheduled end, and
  how much interest that waives. Read-only: it never writes to the
  ledger. Only RecordPayment with the early-settlement flag commits a
  previewed figure.

WHY A SCHEDULE RECONSTRUCTION:
  EMIs are level but their interest/principal split shifts every month;
  the early months are interest-heavy. The remaining principal therefore
  cannot be read off the ledger balance (actual payments may lag or lead
  the schedule). Instead the month-by-month schedule is replayed from
  the frozen loan config:

    interest_i  = outstanding_{i-1} × r
    principal_i = emi − interest_i
    outstanding_i = outstanding_{i-1} − principal_i

  The payoff amount is the simulated outstanding principal after the
  elapsed whole cycles; no further interest is charged beyond that.
*/
package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementQuote is the payoff projection for one settlement date.
type SettlementQuote struct {
	RemainingPrincipal  decimal.Decimal
	ActualMonthsUsed    int
	SettlementInterest  decimal.Decimal // interest attributable to the current partial cycle
	SettlementAmount    decimal.Decimal
	InterestSavings     decimal.Decimal
	OriginalTotalAmount decimal.Decimal
	OriginalDuration    int
	RemainingMonths     int
}

// SettlementPreview computes the payoff for settling now and for waiting
// one more cycle, so the borrower can see what the delay costs.
type SettlementPreview struct {
	Current   SettlementQuote
	NextMonth SettlementQuote
}

// ComputeSettlementPreview projects the early-settlement payoff as of the
// given date. Only disbursed or active loans carry an amortization
// contract to settle against.
func ComputeSettlementPreview(loan *Loan, asOf time.Time) (*SettlementPreview, error) {
	if loan.RequestType != TypeLoan || loan.LoanConfig == nil {
		return nil, ErrIllegalState
	}
	if loan.Status != StatusDisbursed && loan.Status != StatusActive {
		return nil, ErrIllegalState
	}

	anchor := loan.AppliedAt
	if loan.Disbursement != nil {
		anchor = loan.Disbursement.DisbursedAt
	}

	monthsUsed := wholeMonthsBetween(anchor, asOf)
	if monthsUsed > loan.Duration {
		monthsUsed = loan.Duration
	}

	current := settleAt(loan, anchor, asOf, monthsUsed, loan.Repayment.TotalPaid)

	// The next-month quote assumes one more EMI has been paid by then.
	nextMonths := monthsUsed
	nextPaid := loan.Repayment.TotalPaid
	if monthsUsed < loan.Duration {
		nextMonths++
		nextPaid = nextPaid.Add(loan.LoanConfig.EMIAmount)
	}
	next := settleAt(loan, anchor, asOf.AddDate(0, 1, 0), nextMonths, nextPaid)

	return &SettlementPreview{Current: current, NextMonth: next}, nil
}

// settleAt quotes the payoff after the given number of whole cycles with
// the given amount already repaid.
func settleAt(loan *Loan, anchor, asOf time.Time, monthsUsed int, totalPaid decimal.Decimal) SettlementQuote {
	cfg := loan.LoanConfig
	r := MonthlyRate(cfg.InterestRate)

	outstanding := loan.Amount
	for i := 0; i < monthsUsed; i++ {
		interest := outstanding.Mul(r)
		outstanding = outstanding.Sub(cfg.EMIAmount.Sub(interest))
	}
	remainingPrincipal := decimal.Max(decimal.Zero, RoundMoney(outstanding))

	// Interest accrued in the partial cycle between the last whole cycle
	// boundary and the settlement date, prorated by elapsed days.
	settlementInterest := decimal.Zero
	if monthsUsed < loan.Duration && remainingPrincipal.IsPositive() {
		boundary := anchor.AddDate(0, monthsUsed, 0)
		if asOf.After(boundary) {
			days := decimal.NewFromInt(int64(asOf.Sub(boundary).Hours() / 24))
			fraction := decimal.Min(decOne, days.Div(decimal.NewFromInt(30)))
			settlementInterest = RoundMoney(remainingPrincipal.Mul(r).Mul(fraction))
		}
	}

	savings := decimal.Max(decimal.Zero,
		cfg.TotalAmount.Sub(totalPaid).Sub(remainingPrincipal))

	return SettlementQuote{
		RemainingPrincipal:  remainingPrincipal,
		ActualMonthsUsed:    monthsUsed,
		SettlementInterest:  settlementInterest,
		SettlementAmount:    remainingPrincipal,
		InterestSavings:     savings,
		OriginalTotalAmount: cfg.TotalAmount,
		OriginalDuration:    loan.Duration,
		RemainingMonths:     loan.Duration - monthsUsed,
	}
}

// wholeMonthsBetween counts complete calendar months from a to b.
func wholeMonthsBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	months := 0
	for !a.AddDate(0, months+1, 0).After(b) {
		months++
	}
	return months
}
