/*
scheduler_test.go - Payroll deduction scheduler tests

Drives RunNow against a service with a frozen clock and checks that due
installments are deducted exactly once per cycle.
*/
package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakethdamerla/li-hrms-sub005/api"
	"github.com/sakethdamerla/li-hrms-sub005/lending"
	"github.com/sakethdamerla/li-hrms-sub005/lending/store"
)

var schedHR = lending.Actor{ID: "hr-1", Name: "HR Officer", Role: lending.RoleHR}

// newSchedulerFixture returns a scheduler over a service frozen at
// Feb 1 2026, plus one disbursed loan of the given type.
func newSchedulerFixture(t *testing.T, requestType lending.RequestType, amount string, duration int) (*api.PayrollScheduler, *lending.Service, lending.LoanID) {
	t.Helper()
	ctx := context.Background()

	frozen := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	svc := lending.NewService(store.NewMemory(), lending.WithClock(func() time.Time { return frozen }))

	loan, err := svc.Apply(ctx, lending.ApplyRequest{
		EmpNo:       "EMP001",
		RequestType: requestType,
		Amount:      decimal.RequireFromString(amount),
		Duration:    duration,
		Reason:      "scheduler test",
	}, lending.Actor{ID: "EMP001", Name: "Asha", Role: lending.RoleEmployee})
	require.NoError(t, err)

	_, err = svc.ProcessAction(ctx, loan.ID, lending.ActionApprove, lending.Actor{ID: "hod-1", Role: lending.RoleHOD}, "")
	require.NoError(t, err)
	_, err = svc.ProcessAction(ctx, loan.ID, lending.ActionApprove, schedHR, "")
	require.NoError(t, err)
	_, err = svc.Disburse(ctx, loan.ID, lending.DisbursementRequest{Method: "bank_transfer"}, schedHR)
	require.NoError(t, err)

	return api.NewPayrollScheduler(svc), svc, loan.ID
}

func TestScheduler_DeductsDueEMI(t *testing.T) {
	// GIVEN a disbursed loan with the first EMI due Mar 1
	sched, svc, id := newSchedulerFixture(t, lending.TypeLoan, "120000", 12)

	// WHEN the scheduler runs on payday
	sched.RunNow(time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC))

	// THEN one EMI was deducted and the loan went active
	loan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusActive, loan.Status)
	assert.Equal(t, 1, loan.Repayment.InstallmentsPaid)
	assert.True(t, loan.Repayment.TotalPaid.Equal(decimal.NewFromInt(10662)))
}

func TestScheduler_NothingDueBeforePayday(t *testing.T) {
	// GIVEN a disbursed loan with the first EMI due Mar 1
	sched, svc, id := newSchedulerFixture(t, lending.TypeLoan, "120000", 12)

	// WHEN the scheduler runs before the due date
	sched.RunNow(time.Date(2026, time.February, 15, 6, 0, 0, 0, time.UTC))

	// THEN nothing was deducted
	loan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusDisbursed, loan.Status)
	assert.Equal(t, 0, loan.Repayment.InstallmentsPaid)
}

func TestScheduler_RerunSameCycleIsHarmless(t *testing.T) {
	// GIVEN a loan already deducted for March
	sched, svc, id := newSchedulerFixture(t, lending.TypeLoan, "120000", 12)
	payday := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	sched.RunNow(payday)

	// WHEN the scheduler runs again in the same cycle
	sched.RunNow(payday.Add(2 * time.Hour))
	sched.RunNow(payday.AddDate(0, 0, 10))

	// THEN only the single March deduction stands
	loan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, loan.Repayment.InstallmentsPaid)
	assert.True(t, loan.Repayment.TotalPaid.Equal(decimal.NewFromInt(10662)))
}

func TestScheduler_AdvanceRunsToCompletion(t *testing.T) {
	// GIVEN a disbursed salary advance recovered over 3 cycles
	sched, svc, id := newSchedulerFixture(t, lending.TypeSalaryAdvance, "6000", 3)

	// WHEN the scheduler runs on three consecutive paydays
	for month := time.March; month <= time.May; month++ {
		sched.RunNow(time.Date(2026, month, 1, 6, 0, 0, 0, time.UTC))
	}

	// THEN the advance is fully recovered and closed
	loan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusCompleted, loan.Status)
	assert.True(t, loan.Repayment.RemainingBalance.IsZero())
	assert.True(t, loan.Repayment.TotalPaid.Equal(decimal.NewFromInt(6000)))
	assert.Nil(t, loan.Repayment.NextPaymentDate)
}

func TestScheduler_CatchesUpOverdueCycles(t *testing.T) {
	// GIVEN a loan overdue since March
	sched, svc, id := newSchedulerFixture(t, lending.TypeLoan, "120000", 12)

	// WHEN the scheduler runs once in May
	// Only one cycle is deducted per run; the next run picks up the rest.
	sched.RunNow(time.Date(2026, time.May, 10, 6, 0, 0, 0, time.UTC))
	loan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, loan.Repayment.InstallmentsPaid)

	// AND runs again in the same month for the still-overdue cycle
	sched.RunNow(time.Date(2026, time.May, 10, 8, 0, 0, 0, time.UTC))

	// THEN the second overdue installment was deducted too
	loan, err = svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, loan.Repayment.InstallmentsPaid)
}
