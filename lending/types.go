/*
Package lending implements the loan and salary-advance lifecycle engine.

PURPOSE:
  This package contains the domain types and algorithms that carry an
  employee's loan or advance request from intake through approval,
  disbursement, repayment, and completion. One aggregate (Loan) owns the
  whole lifecycle; every change to it flows through the operations in
  this package and lands in an append-only audit trail.

KEY CONCEPTS IN THIS FILE (types.go):
  - Loan:        The aggregate root, one per request, never deleted
  - Transaction: An immutable ledger entry recording money movement
  - ChangeEntry: An immutable record of a field-level edit
  - Status:      Workflow state (see workflow.go for the edge table)
  - Role:        Who is acting (employee, HOD, HR, admins)

DESIGN PRINCIPLES:
  1. Immutability: Transactions and change history are append-only
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Reconciliation: RemainingBalance always equals payable minus the
     sum of repayment transactions
  4. Concurrency: Version guards every read-modify-write (see service.go)

SEE ALSO:
  - amortization.go: EMI and total-payable math
  - workflow.go: Approval state machine
  - repayment.go: Payment ledger
  - settlement.go: Early-settlement projection
*/
package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Minor-unit currency amounts
// =============================================================================

// minorUnitPlaces is the number of decimal places the ledger carries.
// Amounts are whole currency units; EMI and per-cycle figures are rounded
// to this precision and every downstream total derives from the rounded
// figure so the ledger never drifts.
const minorUnitPlaces = 0

// RoundMoney rounds to the currency minor unit, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

// paymentTolerance absorbs minor-unit rounding residue on the final
// installment. A payment may exceed the remaining balance by at most
// this much without the early-settlement flag.
var paymentTolerance = decimal.NewFromInt(1)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

type LoanID string

// RequestType distinguishes amortized loans from fixed-cycle advances.
type RequestType string

const (
	TypeLoan          RequestType = "loan"
	TypeSalaryAdvance RequestType = "salary_advance"
)

// Status is the workflow state of a loan application.
type Status string

const (
	StatusPending     Status = "pending"
	StatusHODApproved Status = "hod_approved"
	StatusHODRejected Status = "hod_rejected"
	StatusHRApproved  Status = "hr_approved"
	StatusHRRejected  Status = "hr_rejected"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
	StatusDisbursed   Status = "disbursed"
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
)

// Role identifies the actor class performing an operation.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleHOD        Role = "hod"
	RoleHR         Role = "hr"
	RoleSubAdmin   Role = "sub_admin"
	RoleSuperAdmin Role = "super_admin"
)

// Action is a workflow verb applied to a loan.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionForward Action = "forward"
	ActionCancel  Action = "cancel"
)

// TransactionType classifies money movement in the ledger.
type TransactionType string

const (
	TxDisbursement   TransactionType = "disbursement"
	TxEMIPayment     TransactionType = "emi_payment"
	TxAdvancePayment TransactionType = "advance_payment"
	TxSettlement     TransactionType = "settlement"
)

// =============================================================================
// TRANSACTION - Immutable money-movement ledger entry
// =============================================================================

type Transaction struct {
	ID              string
	Type            TransactionType
	Amount          decimal.Decimal
	TransactionDate time.Time
	PayrollCycle    string // e.g. "2026-08", set for payroll-driven deductions
	ProcessedBy     string
	Remarks         string
	IdempotencyKey  string
	CreatedAt       time.Time
}

// =============================================================================
// CHANGE ENTRY - Immutable field-level audit record
// =============================================================================

type ChangeEntry struct {
	Field          string
	OriginalValue  string
	NewValue       string
	ModifiedBy     string
	ModifiedByRole Role
	Reason         string
	ModifiedAt     time.Time
}

// =============================================================================
// AGGREGATE SUB-STATE
// =============================================================================

// LoanConfig is the amortization contract for a loan. It is computed at
// application (and on pre-approval edits) and frozen at disbursement.
type LoanConfig struct {
	InterestRate decimal.Decimal // annual percent
	EMIAmount    decimal.Decimal
	TotalAmount  decimal.Decimal
	StartDate    time.Time // first EMI deduction date
	EndDate      time.Time
}

// AdvanceConfig is the deduction plan for a salary advance.
type AdvanceConfig struct {
	DeductionCycles   int
	DeductionPerCycle decimal.Decimal
}

// Repayment is derived state maintained by the repayment ledger.
// It is never edited directly.
type Repayment struct {
	TotalPaid         decimal.Decimal
	RemainingBalance  decimal.Decimal
	InstallmentsPaid  int
	TotalInstallments int
	LastPaymentDate   *time.Time
	NextPaymentDate   *time.Time
}

// Disbursement records how and when the funds were released.
type Disbursement struct {
	DisbursedBy          string
	DisbursedAt          time.Time
	Method               string // bank_transfer, cash, cheque, other
	TransactionReference string
	Remarks              string
}

// =============================================================================
// LOAN - The aggregate root
// =============================================================================

// Loan is one loan or salary-advance application. It is created once,
// mutated only through the engine's operations, and never destroyed;
// closed records remain queryable for audit.
type Loan struct {
	ID          LoanID
	EmpNo       string
	RequestType RequestType
	Amount      decimal.Decimal
	Duration    int // months for loans, deduction cycles for advances
	Reason      string
	Remarks     string
	Status      Status
	AppliedBy   string
	AppliedAt   time.Time

	LoanConfig    *LoanConfig    // loans only
	AdvanceConfig *AdvanceConfig // advances only
	Repayment     Repayment
	Disbursement  *Disbursement

	Transactions  []Transaction
	ChangeHistory []ChangeEntry

	// Version increments on every successful save. Mutating operations
	// carry the version they read; a mismatch at save time means another
	// writer got there first.
	Version int64
}

// Payable is the total the borrower owes: the frozen amortized total for
// loans, the principal for advances.
func (l *Loan) Payable() decimal.Decimal {
	if l.RequestType == TypeLoan && l.LoanConfig != nil && l.LoanConfig.TotalAmount.IsPositive() {
		return l.LoanConfig.TotalAmount
	}
	return l.Amount
}

// IsDisbursed reports whether funds have been released.
func (l *Loan) IsDisbursed() bool {
	switch l.Status {
	case StatusDisbursed, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether the loan can no longer change state.
func (l *Loan) IsTerminal() bool {
	switch l.Status {
	case StatusHODRejected, StatusHRRejected, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Clone returns a deep copy. Mutating operations work on a clone so a
// failed save leaves the caller's aggregate untouched.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.LoanConfig != nil {
		lc := *l.LoanConfig
		c.LoanConfig = &lc
	}
	if l.AdvanceConfig != nil {
		ac := *l.AdvanceConfig
		c.AdvanceConfig = &ac
	}
	if l.Disbursement != nil {
		d := *l.Disbursement
		c.Disbursement = &d
	}
	if l.Repayment.LastPaymentDate != nil {
		t := *l.Repayment.LastPaymentDate
		c.Repayment.LastPaymentDate = &t
	}
	if l.Repayment.NextPaymentDate != nil {
		t := *l.Repayment.NextPaymentDate
		c.Repayment.NextPaymentDate = &t
	}
	c.Transactions = append([]Transaction(nil), l.Transactions...)
	c.ChangeHistory = append([]ChangeEntry(nil), l.ChangeHistory...)
	return &c
}

// Actor is who is performing an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// IsAdmin reports whether the actor holds an administrative role.
func (a Actor) IsAdmin() bool {
	switch a.Role {
	case RoleHR, RoleSubAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
