package lending_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
	"github.com/sakethdamerla/li-hrms-sub005/lending/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*lending.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := lending.NewService(mem, lending.WithClock(func() time.Time {
		return time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	}))
	return svc, mem
}

func applyLoan(t *testing.T, svc *lending.Service) *lending.Loan {
	t.Helper()
	loan, err := svc.Apply(context.Background(), lending.ApplyRequest{
		EmpNo:       "EMP001",
		RequestType: lending.TypeLoan,
		Amount:      dec("120000"),
		Duration:    12,
		Reason:      "home repairs",
	}, employee)
	require.NoError(t, err)
	return loan
}

func approveLoan(t *testing.T, svc *lending.Service, id lending.LoanID) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.ProcessAction(ctx, id, lending.ActionApprove, hod, "")
	require.NoError(t, err)
	_, err = svc.ProcessAction(ctx, id, lending.ActionApprove, hr, "")
	require.NoError(t, err)
}

// =============================================================================
// INTAKE TESTS
// =============================================================================

func TestService_Apply_PricesLoanAtIntake(t *testing.T) {
	// GIVEN: A 120000/12mo application under the stock 12% terms
	// WHEN: Applying
	// THEN: Pending, priced, and persisted at version 1

	svc, _ := newTestService(t)
	loan := applyLoan(t, svc)

	assert.Equal(t, lending.StatusPending, loan.Status)
	assert.Equal(t, int64(1), loan.Version)
	require.NotNil(t, loan.LoanConfig)
	assert.True(t, loan.LoanConfig.EMIAmount.Equal(dec("10662")))
	assert.True(t, loan.LoanConfig.TotalAmount.Equal(dec("127944")))
	// First EMI falls on the first of the month after application.
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), loan.LoanConfig.StartDate)
	assert.True(t, loan.Repayment.RemainingBalance.Equal(dec("127944")))
}

func TestService_Apply_PricesAdvance(t *testing.T) {
	svc, _ := newTestService(t)

	adv, err := svc.Apply(context.Background(), lending.ApplyRequest{
		EmpNo:       "EMP002",
		RequestType: lending.TypeSalaryAdvance,
		Amount:      dec("6000"),
		Duration:    3,
	}, employee)
	require.NoError(t, err)

	require.NotNil(t, adv.AdvanceConfig)
	assert.Equal(t, 3, adv.AdvanceConfig.DeductionCycles)
	assert.True(t, adv.AdvanceConfig.DeductionPerCycle.Equal(dec("2000")))
	assert.Nil(t, adv.LoanConfig)
	assert.True(t, adv.Repayment.RemainingBalance.Equal(dec("6000")))
}

func TestService_Apply_RejectsOutOfPolicy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Below the 1000 floor
	_, err := svc.Apply(ctx, lending.ApplyRequest{
		EmpNo: "EMP001", RequestType: lending.TypeLoan, Amount: dec("500"), Duration: 12,
	}, employee)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	// Past the 60-month ceiling
	_, err = svc.Apply(ctx, lending.ApplyRequest{
		EmpNo: "EMP001", RequestType: lending.TypeLoan, Amount: dec("120000"), Duration: 61,
	}, employee)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	// Advances cap at 12 cycles
	_, err = svc.Apply(ctx, lending.ApplyRequest{
		EmpNo: "EMP001", RequestType: lending.TypeSalaryAdvance, Amount: dec("6000"), Duration: 13,
	}, employee)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	_, err = svc.Apply(ctx, lending.ApplyRequest{
		RequestType: lending.TypeLoan, Amount: dec("120000"), Duration: 12,
	}, employee)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount, "emp_no is required")
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestService_FullLifecycle(t *testing.T) {
	// GIVEN: An application walked through approve, disburse, and repay
	// WHEN: Each operation runs through the service
	// THEN: Versions climb monotonically and the loan ends completed

	svc, _ := newTestService(t)
	ctx := context.Background()

	loan := applyLoan(t, svc)
	approveLoan(t, svc, loan.ID)

	disbursed, err := svc.Disburse(ctx, loan.ID, lending.DisbursementRequest{
		Method: "bank_transfer",
	}, hr)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusDisbursed, disbursed.Status)
	assert.Greater(t, disbursed.Version, loan.Version)

	for i := 0; i < 12; i++ {
		_, err := svc.PayEMI(ctx, loan.ID, lending.PaymentRequest{Amount: dec("10662")}, hr)
		require.NoError(t, err)
	}

	final, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusCompleted, final.Status)
	assert.True(t, final.Repayment.RemainingBalance.IsZero())
	assert.Len(t, final.Transactions, 13) // 1 disbursement + 12 EMIs
}

func TestService_PayEMI_RequiresAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	loan := applyLoan(t, svc)

	_, err := svc.PayEMI(context.Background(), loan.ID, lending.PaymentRequest{Amount: dec("10662")}, employee)
	assert.ErrorIs(t, err, lending.ErrNotAuthorized)

	_, err = svc.Disburse(context.Background(), loan.ID, lending.DisbursementRequest{}, employee)
	assert.ErrorIs(t, err, lending.ErrNotAuthorized)
}

func TestService_PayEMI_WrongRequestType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	adv, err := svc.Apply(ctx, lending.ApplyRequest{
		EmpNo: "EMP002", RequestType: lending.TypeSalaryAdvance, Amount: dec("6000"), Duration: 3,
	}, employee)
	require.NoError(t, err)
	approveLoan(t, svc, adv.ID)
	_, err = svc.Disburse(ctx, adv.ID, lending.DisbursementRequest{}, hr)
	require.NoError(t, err)

	_, err = svc.PayEMI(ctx, adv.ID, lending.PaymentRequest{Amount: dec("2000")}, hr)
	assert.ErrorIs(t, err, lending.ErrIllegalState)

	_, err = svc.PayAdvance(ctx, adv.ID, lending.PaymentRequest{Amount: dec("2000")}, hr)
	require.NoError(t, err)
}

func TestService_EarlySettlement_ResolvesAmountFromPreview(t *testing.T) {
	// GIVEN: An active loan six EMIs in
	// WHEN: Settling early without specifying an amount
	// THEN: The previewed payoff figure is committed

	svc, _ := newTestService(t)
	ctx := context.Background()

	loan := applyLoan(t, svc)
	approveLoan(t, svc, loan.ID)
	_, err := svc.Disburse(ctx, loan.ID, lending.DisbursementRequest{}, hr)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := svc.PayEMI(ctx, loan.ID, lending.PaymentRequest{Amount: dec("10662")}, hr)
		require.NoError(t, err)
	}

	settled, err := svc.PayEMI(ctx, loan.ID, lending.PaymentRequest{
		PaymentDate:       time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		IsEarlySettlement: true,
	}, hr)
	require.NoError(t, err)

	assert.Equal(t, lending.StatusCompleted, settled.Status)
	last := settled.Transactions[len(settled.Transactions)-1]
	assert.Equal(t, lending.TxSettlement, last.Type)
	assert.True(t, last.Amount.IsPositive())
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestService_Update_RepricesOnAmountChange(t *testing.T) {
	// GIVEN: A pending 120000 application
	// WHEN: An admin halves the amount
	// THEN: The amortization contract is recomputed and the edit audited

	svc, _ := newTestService(t)
	loan := applyLoan(t, svc)

	amount := dec("60000")
	updated, err := svc.Update(context.Background(), loan.ID, lending.UpdateRequest{
		Edit:         lending.FieldEdit{Amount: &amount},
		ChangeReason: "budget cap",
	}, hr)
	require.NoError(t, err)

	assert.True(t, updated.Amount.Equal(dec("60000")))
	assert.True(t, updated.LoanConfig.EMIAmount.Equal(dec("5331")),
		"expected 5331, got %s", updated.LoanConfig.EMIAmount)

	require.NotEmpty(t, updated.ChangeHistory)
	last := updated.ChangeHistory[len(updated.ChangeHistory)-1]
	assert.Equal(t, "amount", last.Field)
	assert.Equal(t, "120000", last.OriginalValue)
	assert.Equal(t, "60000", last.NewValue)
	assert.Equal(t, "budget cap", last.Reason)
}

func TestService_Update_FinancialEditsFrozenAfterDisbursement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	loan := applyLoan(t, svc)
	approveLoan(t, svc, loan.ID)
	_, err := svc.Disburse(ctx, loan.ID, lending.DisbursementRequest{}, hr)
	require.NoError(t, err)

	amount := dec("60000")
	_, err = svc.Update(ctx, loan.ID, lending.UpdateRequest{
		Edit: lending.FieldEdit{Amount: &amount},
	}, hr)
	assert.ErrorIs(t, err, lending.ErrImmutableAfterDisbursement)

	// Bookkeeping fields stay editable.
	remarks := "payroll ref updated"
	updated, err := svc.Update(ctx, loan.ID, lending.UpdateRequest{
		Edit: lending.FieldEdit{Remarks: &remarks},
	}, hr)
	require.NoError(t, err)
	assert.Equal(t, remarks, updated.Remarks)
}

func TestService_Update_StatusOverrideAtomicWithEdits(t *testing.T) {
	// GIVEN: A pending application
	// WHEN: SuperAdmin edits the duration and overrides to approved at once
	// THEN: Both land together in one version bump

	svc, _ := newTestService(t)
	loan := applyLoan(t, svc)

	duration := 24
	status := lending.StatusApproved
	updated, err := svc.Update(context.Background(), loan.ID, lending.UpdateRequest{
		Edit:               lending.FieldEdit{Duration: &duration},
		ChangeReason:       "longer tenure requested",
		Status:             &status,
		StatusChangeReason: "board approved directly",
	}, superAdmin)
	require.NoError(t, err)

	assert.Equal(t, 24, updated.Duration)
	assert.Equal(t, lending.StatusApproved, updated.Status)
	assert.Equal(t, loan.Version+1, updated.Version)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestService_ConcurrentWriters_OneWins(t *testing.T) {
	// GIVEN: Two actors holding the same version of a pending application
	// WHEN: Both decide it
	// THEN: The slower write fails with a retryable conflict and the
	//       winner's decision stands

	svc, mem := newTestService(t)
	ctx := context.Background()
	loan := applyLoan(t, svc)

	// First writer approves through the service.
	_, err := svc.ProcessAction(ctx, loan.ID, lending.ActionApprove, hod, "")
	require.NoError(t, err)

	// Second writer replays a stale copy directly against the store.
	stale := loan.Clone()
	stale.Status = lending.StatusHODRejected
	err = mem.Save(ctx, stale)
	assert.ErrorIs(t, err, lending.ErrConflictRetry)
	assert.True(t, lending.IsRetryable(err))

	current, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusHODApproved, current.Status)
}

func TestService_DuplicatePaymentAcrossReloads(t *testing.T) {
	// GIVEN: A payment committed under an idempotency key
	// WHEN: The same key arrives again in a fresh request
	// THEN: Rejected even though the second request read fresh state

	svc, _ := newTestService(t)
	ctx := context.Background()

	loan := applyLoan(t, svc)
	approveLoan(t, svc, loan.ID)
	_, err := svc.Disburse(ctx, loan.ID, lending.DisbursementRequest{}, hr)
	require.NoError(t, err)

	req := lending.PaymentRequest{Amount: dec("10662"), IdempotencyKey: "payroll-2026-03"}
	_, err = svc.PayEMI(ctx, loan.ID, req, hr)
	require.NoError(t, err)

	_, err = svc.PayEMI(ctx, loan.ID, req, hr)
	assert.ErrorIs(t, err, lending.ErrDuplicatePayment)

	final, err := svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Repayment.InstallmentsPaid)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestService_PendingApprovals_ByRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := applyLoan(t, svc)
	second, err := svc.Apply(ctx, lending.ApplyRequest{
		EmpNo: "EMP002", RequestType: lending.TypeLoan, Amount: dec("50000"), Duration: 6,
	}, employee)
	require.NoError(t, err)

	// Move the second loan to the HR gate.
	_, err = svc.ProcessAction(ctx, second.ID, lending.ActionApprove, hod, "")
	require.NoError(t, err)

	hodQueue, err := svc.PendingApprovals(ctx, lending.RoleHOD)
	require.NoError(t, err)
	require.Len(t, hodQueue, 1)
	assert.Equal(t, first.ID, hodQueue[0].ID)

	hrQueue, err := svc.PendingApprovals(ctx, lending.RoleHR)
	require.NoError(t, err)
	require.Len(t, hrQueue, 1)
	assert.Equal(t, second.ID, hrQueue[0].ID)

	_, err = svc.PendingApprovals(ctx, lending.RoleEmployee)
	assert.ErrorIs(t, err, lending.ErrNotAuthorized)
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "no-such-loan")
	assert.ErrorIs(t, err, lending.ErrLoanNotFound)
	assert.True(t, lending.IsNotFound(err))
}
