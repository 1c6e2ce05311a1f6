/*
repayment.go - Payment ledger

PURPOSE:
  Accepts EMI, advance-deduction, and early-settlement payments against
  a disbursed loan, maintains the derived repayment figures, and detects
  completion. The transaction list is the sole source of truth: at all
  times remainingBalance equals payable minus the sum of all repayment
  transactions, clamped at zero.

COMPLETION:
  Balance reaching zero and status moving to completed happen in the
  same operation; one is never observed without the other.
*/
package lending

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is one repayment submission.
type PaymentRequest struct {
	Amount            decimal.Decimal
	PaymentDate       time.Time
	Remarks           string
	PayrollCycle      string
	IdempotencyKey    string
	IsEarlySettlement bool
}

// RecordPayment appends a repayment transaction and updates the derived
// repayment state. The loan must be disbursed or active. Overpayment is
// rejected beyond a one-minor-unit rounding tolerance unless the payment
// is an early settlement, which closes out any residual.
//
// The first successful payment promotes a disbursed loan to active; a
// payment that clears the balance completes the loan atomically.
func RecordPayment(loan *Loan, req PaymentRequest, actor Actor, at time.Time) (*Transaction, error) {
	if loan.Status != StatusDisbursed && loan.Status != StatusActive {
		return nil, ErrIllegalState
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.IdempotencyKey != "" {
		for _, tx := range loan.Transactions {
			if tx.IdempotencyKey == req.IdempotencyKey {
				return nil, ErrDuplicatePayment
			}
		}
	}

	remaining := loan.Repayment.RemainingBalance
	if !req.IsEarlySettlement && req.Amount.GreaterThan(remaining.Add(paymentTolerance)) {
		return nil, &OverpaymentError{
			LoanID:    loan.ID,
			Requested: req.Amount.String(),
			Remaining: remaining.String(),
		}
	}

	txType := TxEMIPayment
	if loan.RequestType == TypeSalaryAdvance {
		txType = TxAdvancePayment
	}
	if req.IsEarlySettlement {
		txType = TxSettlement
	}

	tx := Transaction{
		ID:              uuid.NewString(),
		Type:            txType,
		Amount:          req.Amount,
		TransactionDate: req.PaymentDate,
		PayrollCycle:    req.PayrollCycle,
		ProcessedBy:     actor.ID,
		Remarks:         req.Remarks,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       at,
	}
	if tx.Remarks == "" {
		tx.Remarks = defaultPaymentRemarks(txType)
	}
	loan.Transactions = append(loan.Transactions, tx)

	rp := &loan.Repayment
	rp.TotalPaid = rp.TotalPaid.Add(req.Amount)
	if req.IsEarlySettlement {
		rp.RemainingBalance = decimal.Zero
		rp.InstallmentsPaid = rp.TotalInstallments
	} else {
		rp.RemainingBalance = decimal.Max(decimal.Zero, remaining.Sub(req.Amount))
		rp.InstallmentsPaid++
	}
	paymentDate := req.PaymentDate
	rp.LastPaymentDate = &paymentDate

	// Promotion before the completion check: a single payment that clears
	// the balance still passes through active on its way to completed.
	if loan.Status == StatusDisbursed {
		loan.Status = StatusActive
	}

	if rp.RemainingBalance.IsZero() {
		rp.NextPaymentDate = nil
		loan.Status = StatusCompleted
	} else {
		next := scheduleNextPayment(loan)
		rp.NextPaymentDate = &next
	}

	return &loan.Transactions[len(loan.Transactions)-1], nil
}

// scheduleNextPayment projects the next due date from the schedule
// anchor: EMI start date plus installments paid for loans, the month
// after the last payment for advances.
func scheduleNextPayment(loan *Loan) time.Time {
	if loan.RequestType == TypeLoan && loan.LoanConfig != nil && !loan.LoanConfig.StartDate.IsZero() {
		return loan.LoanConfig.StartDate.AddDate(0, loan.Repayment.InstallmentsPaid, 0)
	}
	if loan.Repayment.LastPaymentDate != nil {
		return firstOfNextMonth(*loan.Repayment.LastPaymentDate)
	}
	if loan.Disbursement != nil {
		return firstOfNextMonth(loan.Disbursement.DisbursedAt)
	}
	return firstOfNextMonth(loan.AppliedAt)
}

func defaultPaymentRemarks(t TransactionType) string {
	switch t {
	case TxSettlement:
		return "Early settlement payment"
	case TxAdvancePayment:
		return "Advance deduction recorded"
	default:
		return "EMI payment recorded"
	}
}

// ReconcileBalance recomputes the remaining balance straight from the
// transaction log. It is the invariant the ledger lives by and is used
// by tests and consistency checks; the engine keeps the derived field in
// lockstep with it.
func ReconcileBalance(loan *Loan) decimal.Decimal {
	paid := decimal.Zero
	for _, tx := range loan.Transactions {
		if tx.Type == TxDisbursement {
			continue
		}
		paid = paid.Add(tx.Amount)
	}
	return decimal.Max(decimal.Zero, loan.Payable().Sub(paid))
}
