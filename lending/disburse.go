/*
disburse.go - Funds release

PURPOSE:
  Turns an approved application into money actually moved: writes the
  first ledger entry, freezes the payable figure, and seeds the
  repayment tracker. Disbursement happens at most once per loan.
*/
package lending

import (
	"time"

	"github.com/google/uuid"
)

// DisbursementRequest describes how the funds were released.
type DisbursementRequest struct {
	Method               string
	TransactionReference string
	Remarks              string
}

// Disburse releases the funds for an approved loan. It appends a single
// disbursement transaction for the payable amount, initializes the
// repayment tracker, and moves the loan to disbursed. A loan that has
// already been disbursed fails with ErrAlreadyDisbursed; any other
// non-approved state fails with ErrIllegalState.
func Disburse(loan *Loan, req DisbursementRequest, actor Actor, at time.Time) (*Transaction, error) {
	if loan.IsDisbursed() {
		return nil, ErrAlreadyDisbursed
	}
	if loan.Status != StatusApproved {
		return nil, ErrIllegalState
	}

	method := req.Method
	if method == "" {
		method = "bank_transfer"
	}

	payable := loan.Payable()

	tx := Transaction{
		ID:              uuid.NewString(),
		Type:            TxDisbursement,
		Amount:          payable,
		TransactionDate: at,
		ProcessedBy:     actor.ID,
		Remarks:         req.Remarks,
		CreatedAt:       at,
	}
	if tx.Remarks == "" {
		if loan.RequestType == TypeLoan {
			tx.Remarks = "Loan disbursed"
		} else {
			tx.Remarks = "Salary advance disbursed"
		}
	}
	loan.Transactions = append(loan.Transactions, tx)

	next := nextPaymentAfter(loan, at)
	loan.Repayment = Repayment{
		TotalPaid:         loan.Repayment.TotalPaid, // zero before first payment
		RemainingBalance:  payable,
		InstallmentsPaid:  0,
		TotalInstallments: loan.Duration,
		NextPaymentDate:   &next,
	}

	loan.Disbursement = &Disbursement{
		DisbursedBy:          actor.ID,
		DisbursedAt:          at,
		Method:               method,
		TransactionReference: req.TransactionReference,
		Remarks:              req.Remarks,
	}
	loan.Status = StatusDisbursed

	return &loan.Transactions[len(loan.Transactions)-1], nil
}

// nextPaymentAfter resolves the first due date: the configured EMI start
// for loans, one cycle after disbursement otherwise.
func nextPaymentAfter(loan *Loan, at time.Time) time.Time {
	if loan.RequestType == TypeLoan && loan.LoanConfig != nil && !loan.LoanConfig.StartDate.IsZero() {
		return loan.LoanConfig.StartDate
	}
	return firstOfNextMonth(at)
}
