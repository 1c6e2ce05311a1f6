/*
errors.go - Centralized error types for the lending engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected operation returns one of these and leaves the aggregate
  and its ledgers byte-for-byte unchanged.

ERROR CATEGORIES:
  1. Validation errors  - bad principal, duration, payment amounts
  2. Workflow errors    - transition not permitted from current state/role
  3. Concurrency errors - optimistic-lock collisions, duplicate submissions

USAGE:
  Callers match with errors.Is / errors.As:

    if errors.Is(err, lending.ErrConflictRetry) {
        // reload and retry
    }

SEE ALSO:
  - workflow.go: Returns IllegalTransitionError
  - repayment.go: Returns OverpaymentError
  - service.go: Maps store conflicts to ErrConflictRetry
*/
package lending

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for a non-positive principal, payment,
	// or a duration below one cycle.
	ErrInvalidAmount = errors.New("invalid amount or duration")

	// ErrIllegalTransition is returned when the workflow edge table has no
	// entry for (current state, action, actor role).
	ErrIllegalTransition = errors.New("illegal workflow transition")

	// ErrIllegalState is returned when an operation requires a state the
	// aggregate is not in (e.g. disbursing a non-approved loan).
	ErrIllegalState = errors.New("operation not allowed in current state")

	// ErrAlreadyDisbursed is returned on a second disbursement attempt.
	// Disbursement happens at most once per loan.
	ErrAlreadyDisbursed = errors.New("loan already disbursed")

	// ErrImmutableAfterDisbursement is returned when editing amount or
	// duration after funds have been released.
	ErrImmutableAfterDisbursement = errors.New("field is frozen after disbursement")

	// ErrConflictRetry is returned when optimistic locking detects a
	// concurrent writer. The caller may reload and retry.
	ErrConflictRetry = errors.New("concurrent modification detected")

	// ErrOverpaymentRejected is returned when a payment exceeds the
	// remaining balance without the early-settlement flag.
	ErrOverpaymentRejected = errors.New("payment exceeds remaining balance")

	// ErrDuplicatePayment is returned when a payment's idempotency key has
	// already been recorded on the loan.
	ErrDuplicatePayment = errors.New("duplicate payment submission")

	// ErrLoanNotFound is returned when the referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan application not found")

	// ErrReasonRequired is returned when a privileged status override is
	// attempted without a reason.
	ErrReasonRequired = errors.New("reason required for status override")

	// ErrNotAuthorized is returned when the actor's role may not perform
	// the operation at all, regardless of state.
	ErrNotAuthorized = errors.New("actor not authorized for operation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IllegalTransitionError reports the exact edge that was refused.
type IllegalTransitionError struct {
	From   Status
	Action Action
	Role   Role
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("no transition for action %q by role %q from status %q",
		e.Action, e.Role, e.From)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// OverpaymentError provides details about a rejected overpayment.
type OverpaymentError struct {
	LoanID    LoanID
	Requested string
	Remaining string
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds remaining balance %s on loan %s",
		e.Requested, e.Remaining, e.LoanID)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpaymentRejected }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflictRetry)
}

// IsClientError returns true if the error is due to invalid client input
// or an operation the current state does not allow.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrIllegalState) ||
		errors.Is(err, ErrAlreadyDisbursed) ||
		errors.Is(err, ErrImmutableAfterDisbursement) ||
		errors.Is(err, ErrOverpaymentRejected) ||
		errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrReasonRequired)
}

// IsNotFound returns true if the error indicates a missing loan.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound)
}
