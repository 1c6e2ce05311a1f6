/*
terms.go - Lending terms and intake validation

PURPOSE:
  Terms carries the policy knobs an HR department tunes: the annual
  interest rate, whether interest applies at all, and the allowed
  amount/duration windows. Defaults mirror common payroll practice:
  a floor of 1000 on the amount and a 60-month ceiling on tenure.
*/
package lending

import (
	"github.com/shopspring/decimal"
)

// Terms configures intake validation and pricing for one request type.
type Terms struct {
	InterestRate       decimal.Decimal // annual percent, loans only
	InterestApplicable bool
	MinAmount          decimal.Decimal
	MaxAmount          decimal.Decimal // zero means no ceiling
	MinDuration        int
	MaxDuration        int
}

// DefaultLoanTerms returns the stock loan policy: 12% annual interest,
// 1..60 month tenure, minimum amount 1000.
func DefaultLoanTerms() Terms {
	return Terms{
		InterestRate:       decimal.NewFromInt(12),
		InterestApplicable: true,
		MinAmount:          decimal.NewFromInt(1000),
		MinDuration:        1,
		MaxDuration:        60,
	}
}

// DefaultAdvanceTerms returns the stock salary-advance policy:
// interest-free, repaid within a year of payroll cycles.
func DefaultAdvanceTerms() Terms {
	return Terms{
		InterestApplicable: false,
		MinAmount:          decimal.NewFromInt(1000),
		MinDuration:        1,
		MaxDuration:        12,
	}
}

// EffectiveRate is the rate used for pricing: zero when interest does not
// apply, regardless of the configured rate.
func (t Terms) EffectiveRate() decimal.Decimal {
	if !t.InterestApplicable {
		return decimal.Zero
	}
	return t.InterestRate
}

// Validate checks an amount/duration pair against the policy window.
func (t Terms) Validate(amount decimal.Decimal, duration int) error {
	if !amount.IsPositive() || duration < 1 {
		return ErrInvalidAmount
	}
	if t.MinAmount.IsPositive() && amount.LessThan(t.MinAmount) {
		return ErrInvalidAmount
	}
	if t.MaxAmount.IsPositive() && amount.GreaterThan(t.MaxAmount) {
		return ErrInvalidAmount
	}
	if t.MinDuration > 0 && duration < t.MinDuration {
		return ErrInvalidAmount
	}
	if t.MaxDuration > 0 && duration > t.MaxDuration {
		return ErrInvalidAmount
	}
	return nil
}
