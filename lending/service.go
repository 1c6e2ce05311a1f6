/*
service.go - Loan application service

PURPOSE:
  The only component external collaborators talk to. Orchestrates the
  amortization engine, approval workflow, disbursement recorder,
  repayment ledger, and settlement calculator over a single Loan
  aggregate, with every mutation applied as one atomic
  read-modify-write.

CONCURRENCY MODEL:
  Each operation loads the aggregate, mutates a clone, and saves it with
  the version it read. A concurrent writer causes ErrConflictRetry and
  no mutation; the boundary layer decides whether to retry. Reads never
  block writers.

IDEMPOTENCY:
  Disbursement is idempotent by construction (at most once per loan).
  Payments are deduplicated by a client-assigned idempotency key, so a
  resubmitted click cannot double-charge.

EXAMPLE:
  svc := lending.NewService(store)
  loan, err := svc.Apply(ctx, lending.ApplyRequest{...}, actor)
  loan, err = svc.ProcessAction(ctx, loan.ID, lending.ActionApprove, actor, "ok")
*/
package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sakethdamerla/li-hrms-sub005/metrics"
)

// Service exposes the lifecycle operations over the Store.
type Service struct {
	store        Store
	loanTerms    Terms
	advanceTerms Terms
	metrics      *metrics.Metrics

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTerms overrides the stock lending policies.
func WithTerms(loan, advance Terms) Option {
	return func(s *Service) {
		s.loanTerms = loan
		s.advanceTerms = advance
	}
}

// WithMetrics wires Prometheus metrics into the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a loan application service backed by the store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		loanTerms:    DefaultLoanTerms(),
		advanceTerms: DefaultAdvanceTerms(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) termsFor(t RequestType) Terms {
	if t == TypeSalaryAdvance {
		return s.advanceTerms
	}
	return s.loanTerms
}

// =============================================================================
// INTAKE
// =============================================================================

// ApplyRequest is a new loan or advance application.
type ApplyRequest struct {
	EmpNo       string
	RequestType RequestType
	Amount      decimal.Decimal
	Duration    int
	Reason      string
	Remarks     string
}

// Apply validates the request against the lending terms, prices it, and
// persists a new pending application.
func (s *Service) Apply(ctx context.Context, req ApplyRequest, actor Actor) (*Loan, error) {
	if req.RequestType != TypeLoan && req.RequestType != TypeSalaryAdvance {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrInvalidAmount, req.RequestType)
	}
	if req.EmpNo == "" {
		return nil, fmt.Errorf("%w: emp_no is required", ErrInvalidAmount)
	}

	terms := s.termsFor(req.RequestType)
	if err := terms.Validate(req.Amount, req.Duration); err != nil {
		return nil, err
	}

	now := s.now()
	loan := &Loan{
		ID:          LoanID(uuid.NewString()),
		EmpNo:       req.EmpNo,
		RequestType: req.RequestType,
		Amount:      req.Amount,
		Duration:    req.Duration,
		Reason:      req.Reason,
		Remarks:     req.Remarks,
		Status:      StatusPending,
		AppliedBy:   actor.ID,
		AppliedAt:   now,
	}

	if err := reprice(loan, terms, now); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// =============================================================================
// READS
// =============================================================================

// Get loads one loan by id.
func (s *Service) Get(ctx context.Context, id LoanID) (*Loan, error) {
	return s.store.Get(ctx, id)
}

// List returns loans matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Loan, error) {
	return s.store.List(ctx, filter)
}

// PendingApprovals returns the loans sitting in the given role's queue:
// every loan whose status has an outgoing edge for that role.
func (s *Service) PendingApprovals(ctx context.Context, role Role) ([]*Loan, error) {
	statuses := PendingStatusesForRole(role)
	if len(statuses) == 0 {
		return nil, ErrNotAuthorized
	}
	return s.store.List(ctx, Filter{Statuses: statuses})
}

// Transactions returns the loan's ordered money-movement log.
func (s *Service) Transactions(ctx context.Context, id LoanID) (*Loan, []Transaction, error) {
	loan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return loan, loan.Transactions, nil
}

// GetSettlementPreview projects the payoff for settling now versus next
// month. Read-only; never writes to the ledger.
func (s *Service) GetSettlementPreview(ctx context.Context, id LoanID, asOf time.Time) (*SettlementPreview, error) {
	loan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	preview, err := ComputeSettlementPreview(loan, asOf)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSettlementPreview()
	return preview, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// mutate is the single read-modify-write path: load, clone, apply, save.
// A failed apply or a version conflict leaves the stored aggregate
// byte-for-byte unchanged.
func (s *Service) mutate(ctx context.Context, id LoanID, apply func(*Loan) error) (*Loan, error) {
	loan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := loan.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, next); err != nil {
		if IsRetryable(err) {
			s.metrics.ObserveConflict()
		}
		return nil, err
	}
	return next, nil
}

// ProcessAction applies an approval action (approve, reject, forward, or
// cancel) on behalf of the actor.
func (s *Service) ProcessAction(ctx context.Context, id LoanID, action Action, actor Actor, comment string) (*Loan, error) {
	loan, err := s.mutate(ctx, id, func(l *Loan) error {
		return ApplyAction(l, action, actor, comment, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), string(loan.Status))
	return loan, nil
}

// UpdateRequest carries administrative edits and, for super-admins, a
// direct status override.
type UpdateRequest struct {
	Edit               FieldEdit
	ChangeReason       string
	Status             *Status
	StatusChangeReason string
}

// Update applies pre-disbursement edits and/or a privileged status
// override in one atomic operation.
func (s *Service) Update(ctx context.Context, id LoanID, req UpdateRequest, actor Actor) (*Loan, error) {
	return s.mutate(ctx, id, func(l *Loan) error {
		now := s.now()
		terms := s.termsFor(l.RequestType)

		if err := UpdateFields(l, req.Edit, terms, actor, req.ChangeReason, now); err != nil {
			return err
		}
		if req.Status != nil {
			if err := OverrideStatus(l, *req.Status, actor, req.StatusChangeReason, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Disburse releases funds for an approved loan.
func (s *Service) Disburse(ctx context.Context, id LoanID, req DisbursementRequest, actor Actor) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	loan, err := s.mutate(ctx, id, func(l *Loan) error {
		_, err := Disburse(l, req, actor, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedgerEntry(string(TxDisbursement))
	return loan, nil
}

// PayEMI records an EMI payment or an early settlement on a loan. For an
// early settlement with no amount given, the previewed settlement amount
// is committed.
func (s *Service) PayEMI(ctx context.Context, id LoanID, req PaymentRequest, actor Actor) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	var recorded TransactionType
	loan, err := s.mutate(ctx, id, func(l *Loan) error {
		if l.RequestType != TypeLoan {
			return ErrIllegalState
		}
		if req.PaymentDate.IsZero() {
			req.PaymentDate = s.now()
		}
		if req.IsEarlySettlement && !req.Amount.IsPositive() {
			preview, err := ComputeSettlementPreview(l, req.PaymentDate)
			if err != nil {
				return err
			}
			req.Amount = preview.Current.SettlementAmount
		}
		tx, err := RecordPayment(l, req, actor, s.now())
		if err != nil {
			return err
		}
		recorded = tx.Type
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedgerEntry(string(recorded))
	return loan, nil
}

// PayAdvance records a payroll deduction against a salary advance.
func (s *Service) PayAdvance(ctx context.Context, id LoanID, req PaymentRequest, actor Actor) (*Loan, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	loan, err := s.mutate(ctx, id, func(l *Loan) error {
		if l.RequestType != TypeSalaryAdvance {
			return ErrIllegalState
		}
		if req.PaymentDate.IsZero() {
			req.PaymentDate = s.now()
		}
		req.IsEarlySettlement = false
		_, err := RecordPayment(l, req, actor, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedgerEntry(string(TxAdvancePayment))
	return loan, nil
}
