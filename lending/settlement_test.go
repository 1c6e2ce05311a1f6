package lending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

// halfwayLoan returns the scenario loan (120000 @ 12% / 12mo, disbursed
// 2026-02-10) with six EMIs of 10662 already paid.
func halfwayLoan(t *testing.T) *lending.Loan {
	t.Helper()

	loan := disbursedLoan(t)
	for i := 0; i < 6; i++ {
		_, err := lending.RecordPayment(loan, payment("10662", ""), hr, now())
		require.NoError(t, err)
	}
	return loan
}

// =============================================================================
// SETTLEMENT PREVIEW TESTS
// =============================================================================

func TestSettlementPreview_HalfwayThroughSchedule(t *testing.T) {
	// GIVEN: Six of twelve EMIs paid on the 120000 loan
	// WHEN: Quoting settlement exactly six months after disbursement
	// THEN: The declining-balance replay leaves 61790 of principal and
	//       settling saves 2182 of future interest

	loan := halfwayLoan(t)
	asOf := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)

	preview, err := lending.ComputeSettlementPreview(loan, asOf)
	require.NoError(t, err)

	cur := preview.Current
	assert.Equal(t, 6, cur.ActualMonthsUsed)
	assert.Equal(t, 6, cur.RemainingMonths)
	assert.True(t, cur.RemainingPrincipal.Equal(dec("61790")),
		"expected 61790, got %s", cur.RemainingPrincipal)
	assert.True(t, cur.SettlementAmount.Equal(dec("61790")))
	assert.True(t, cur.InterestSavings.Equal(dec("2182")),
		"expected savings 2182, got %s", cur.InterestSavings)
	assert.True(t, cur.SettlementInterest.IsZero(),
		"no partial cycle exactly on the boundary")
	assert.True(t, cur.OriginalTotalAmount.Equal(dec("127944")))
}

func TestSettlementPreview_NextMonthCostsMore(t *testing.T) {
	// GIVEN: The halfway loan
	// WHEN: Comparing settling now against one month later
	// THEN: Waiting shrinks the principal but also the interest saved

	loan := halfwayLoan(t)
	asOf := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)

	preview, err := lending.ComputeSettlementPreview(loan, asOf)
	require.NoError(t, err)

	next := preview.NextMonth
	assert.Equal(t, 7, next.ActualMonthsUsed)
	assert.True(t, next.RemainingPrincipal.Equal(dec("51746")),
		"expected 51746, got %s", next.RemainingPrincipal)
	assert.True(t, next.InterestSavings.LessThan(preview.Current.InterestSavings),
		"savings must shrink the longer the borrower waits")
	assert.True(t, next.InterestSavings.IsPositive())
}

func TestSettlementPreview_SavingsBounded(t *testing.T) {
	// GIVEN: Settlement quotes at every month of the schedule
	// WHEN: Checking the savings figure
	// THEN: Always within [0, principal] and never negative

	loan := halfwayLoan(t)

	for m := 0; m <= 12; m++ {
		asOf := loan.Disbursement.DisbursedAt.AddDate(0, m, 0)
		preview, err := lending.ComputeSettlementPreview(loan, asOf)
		require.NoError(t, err)

		savings := preview.Current.InterestSavings
		assert.False(t, savings.IsNegative(), "month %d: negative savings", m)
		assert.True(t, savings.LessThanOrEqual(loan.Amount), "month %d", m)
	}
}

func TestSettlementPreview_PartialCycleInterest(t *testing.T) {
	// GIVEN: The halfway loan
	// WHEN: Quoting 15 days past the sixth cycle boundary
	// THEN: Roughly half a month of interest accrues on the payoff figure

	loan := halfwayLoan(t)
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

	preview, err := lending.ComputeSettlementPreview(loan, asOf)
	require.NoError(t, err)

	// 61790 * 0.01 * 15/30 = 308.95 -> 309
	assert.True(t, preview.Current.SettlementInterest.Equal(dec("309")),
		"expected 309, got %s", preview.Current.SettlementInterest)
}

func TestSettlementPreview_MonthsCappedAtDuration(t *testing.T) {
	// GIVEN: A quote requested years past the scheduled end
	// WHEN: Computing the preview
	// THEN: Elapsed months cap at the original duration

	loan := halfwayLoan(t)
	asOf := loan.Disbursement.DisbursedAt.AddDate(3, 0, 0)

	preview, err := lending.ComputeSettlementPreview(loan, asOf)
	require.NoError(t, err)

	assert.Equal(t, 12, preview.Current.ActualMonthsUsed)
	assert.Equal(t, 0, preview.Current.RemainingMonths)
}

func TestSettlementPreview_ReadOnly(t *testing.T) {
	// GIVEN: The halfway loan
	// WHEN: Previewing a settlement
	// THEN: Nothing on the aggregate changes; only RecordPayment commits

	loan := halfwayLoan(t)
	txsBefore := len(loan.Transactions)
	balanceBefore := loan.Repayment.RemainingBalance

	_, err := lending.ComputeSettlementPreview(loan, time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Len(t, loan.Transactions, txsBefore)
	assert.True(t, loan.Repayment.RemainingBalance.Equal(balanceBefore))
	assert.Equal(t, lending.StatusActive, loan.Status)
}

func TestSettlementPreview_RequiresActiveLoan(t *testing.T) {
	// Advances carry no amortization contract to settle against.
	adv := approvedAdvance(t)
	adv.Status = lending.StatusActive

	_, err := lending.ComputeSettlementPreview(adv, now())
	assert.ErrorIs(t, err, lending.ErrIllegalState)

	// Pre-disbursement loans have nothing outstanding yet.
	loan := approvedLoan(t)
	_, err = lending.ComputeSettlementPreview(loan, now())
	assert.ErrorIs(t, err, lending.ErrIllegalState)
}
