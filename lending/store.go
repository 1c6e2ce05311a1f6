/*
store.go - Persistence interface for loan aggregates

PURPOSE:
  Defines the interface between the engine and the database. One durable
  record per loan with embedded transaction and change-history sub-logs;
  the sub-logs are insert-only and scanned in order.

OPTIMISTIC CONCURRENCY:
  Save carries the version the caller read. The store persists only if
  the stored version still matches, then bumps it; a mismatch fails with
  ErrConflictRetry and writes nothing. No two mutating operations on the
  same loan can interleave their effects.

APPEND-ONLY CONTRACT:
  Implementations must never update or delete rows of the transaction or
  change-history sub-logs. Save persists newly appended entries only.

IMPLEMENTATIONS:
  - store/sqlite:        Production SQLite
  - lending/store:       In-memory for testing
*/
package lending

import "context"

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Statuses    []Status
	EmpNo       string
	RequestType RequestType
}

// Store persists loan aggregates.
type Store interface {
	// Create persists a brand-new aggregate at version 1.
	Create(ctx context.Context, loan *Loan) error

	// Get loads one aggregate with its full sub-logs, or ErrLoanNotFound.
	Get(ctx context.Context, id LoanID) (*Loan, error)

	// Save persists a mutated aggregate if and only if the stored version
	// equals loan.Version; on success the version is bumped on both the
	// record and the passed aggregate. Newly appended transactions and
	// change entries are inserted; existing sub-log rows are untouched.
	// A duplicate transaction idempotency key fails with
	// ErrDuplicatePayment; a version mismatch with ErrConflictRetry.
	Save(ctx context.Context, loan *Loan) error

	// List returns aggregates matching the filter, most recent first.
	List(ctx context.Context, filter Filter) ([]*Loan, error)
}
