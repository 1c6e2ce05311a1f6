/*
audit.go - Field-level change trail

PURPOSE:
  Append-only log of administrative edits: who changed what, when, and
  why. Used by the workflow for status changes and by UpdateFields for
  pre-disbursement edits to amount, duration, reason, and remarks.
  Entries are never modified or removed once appended.
*/
package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

// recordChange appends one audit entry. Pure append; it never touches any
// other field of the aggregate.
func recordChange(loan *Loan, field, original, updated string, actor Actor, reason string, at time.Time) {
	loan.ChangeHistory = append(loan.ChangeHistory, ChangeEntry{
		Field:          field,
		OriginalValue:  original,
		NewValue:       updated,
		ModifiedBy:     actor.ID,
		ModifiedByRole: actor.Role,
		Reason:         reason,
		ModifiedAt:     at,
	})
}

// FieldEdit is one requested administrative change.
type FieldEdit struct {
	Amount   *decimal.Decimal
	Duration *int
	Reason   *string
	Remarks  *string
}

// UpdateFields applies administrative edits prior to disbursement and
// records each change. Edits to amount or duration recompute the loan or
// advance config so the frozen figures at disbursement always reflect the
// last approved values. After disbursement, amount and duration are
// immutable; reason and remarks stay editable for bookkeeping.
func UpdateFields(loan *Loan, edit FieldEdit, terms Terms, actor Actor, changeReason string, at time.Time) error {
	financialEdit := edit.Amount != nil || edit.Duration != nil
	if financialEdit && loan.IsDisbursed() {
		return ErrImmutableAfterDisbursement
	}

	amount := loan.Amount
	duration := loan.Duration
	if edit.Amount != nil {
		amount = *edit.Amount
	}
	if edit.Duration != nil {
		duration = *edit.Duration
	}
	if financialEdit {
		if err := terms.Validate(amount, duration); err != nil {
			return err
		}
	}

	if edit.Amount != nil && !edit.Amount.Equal(loan.Amount) {
		recordChange(loan, "amount", loan.Amount.String(), edit.Amount.String(), actor, changeReason, at)
		loan.Amount = *edit.Amount
	}
	if edit.Duration != nil && *edit.Duration != loan.Duration {
		recordChange(loan, "duration", itoa(loan.Duration), itoa(*edit.Duration), actor, changeReason, at)
		loan.Duration = *edit.Duration
	}
	if edit.Reason != nil && *edit.Reason != loan.Reason {
		recordChange(loan, "reason", loan.Reason, *edit.Reason, actor, changeReason, at)
		loan.Reason = *edit.Reason
	}
	if edit.Remarks != nil && *edit.Remarks != loan.Remarks {
		recordChange(loan, "remarks", loan.Remarks, *edit.Remarks, actor, changeReason, at)
		loan.Remarks = *edit.Remarks
	}

	if financialEdit {
		if err := reprice(loan, terms, at); err != nil {
			return err
		}
	}
	return nil
}

// reprice recomputes the amortization or deduction plan after a
// pre-disbursement edit and refreshes the derived repayment figures.
func reprice(loan *Loan, terms Terms, at time.Time) error {
	switch loan.RequestType {
	case TypeLoan:
		rate := terms.EffectiveRate()
		am, err := ComputeAmortization(loan.Amount, rate, loan.Duration)
		if err != nil {
			return err
		}
		start := firstOfNextMonth(at)
		loan.LoanConfig = &LoanConfig{
			InterestRate: rate,
			EMIAmount:    am.EMIAmount,
			TotalAmount:  am.TotalAmount,
			StartDate:    start,
			EndDate:      start.AddDate(0, loan.Duration, 0),
		}
	case TypeSalaryAdvance:
		plan, err := ComputeAdvancePlan(loan.Amount, loan.Duration)
		if err != nil {
			return err
		}
		loan.AdvanceConfig = &plan
	}

	loan.Repayment.RemainingBalance = loan.Payable().Sub(loan.Repayment.TotalPaid)
	loan.Repayment.TotalInstallments = loan.Duration
	return nil
}

func itoa(n int) string {
	return decimal.NewFromInt(int64(n)).String()
}

// firstOfNextMonth anchors deduction schedules the way payroll runs them:
// the first EMI falls on the first day of the month after the given date.
func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}
