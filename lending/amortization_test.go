package lending_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// EMI COMPUTATION TESTS
// =============================================================================

func TestComputeAmortization_StandardLoan(t *testing.T) {
	// GIVEN: 120000 principal at 12% annual over 12 months
	// WHEN: Computing the amortization contract
	// THEN: EMI rounds to 10662 and totals derive from the rounded EMI

	am, err := lending.ComputeAmortization(dec("120000"), dec("12"), 12)
	require.NoError(t, err)

	assert.True(t, am.EMIAmount.Equal(dec("10662")),
		"expected EMI 10662, got %s", am.EMIAmount)
	assert.True(t, am.TotalAmount.Equal(dec("127944")),
		"expected total 127944, got %s", am.TotalAmount)
	assert.True(t, am.TotalInterest.Equal(dec("7944")),
		"expected interest 7944, got %s", am.TotalInterest)
}

func TestComputeAmortization_TotalIsExactMultipleOfEMI(t *testing.T) {
	// GIVEN: A range of principals, rates, and durations
	// WHEN: Computing the contract
	// THEN: totalAmount always equals roundedEMI * months, never an
	//       independently recomputed figure

	cases := []struct {
		principal string
		rate      string
		months    int
	}{
		{"120000", "12", 12},
		{"50000", "9.5", 24},
		{"250000", "14", 36},
		{"1000", "12", 1},
		{"99999", "7.25", 60},
	}

	for _, tc := range cases {
		am, err := lending.ComputeAmortization(dec(tc.principal), dec(tc.rate), tc.months)
		require.NoError(t, err)

		expected := am.EMIAmount.Mul(decimal.NewFromInt(int64(tc.months)))
		assert.True(t, am.TotalAmount.Equal(expected),
			"%s @ %s%% / %d: total %s != emi %s * %d",
			tc.principal, tc.rate, tc.months, am.TotalAmount, am.EMIAmount, tc.months)
		assert.True(t, am.TotalInterest.Equal(am.TotalAmount.Sub(dec(tc.principal))))
	}
}

func TestComputeAmortization_ZeroRate(t *testing.T) {
	// GIVEN: Interest-free terms
	// WHEN: Computing the contract
	// THEN: The principal splits evenly with no interest

	am, err := lending.ComputeAmortization(dec("12000"), decimal.Zero, 12)
	require.NoError(t, err)

	assert.True(t, am.EMIAmount.Equal(dec("1000")))
	assert.True(t, am.TotalAmount.Equal(dec("12000")))
	assert.True(t, am.TotalInterest.IsZero())
}

func TestComputeAmortization_SingleMonth(t *testing.T) {
	// GIVEN: A one-month loan at 12%
	// WHEN: Computing the contract
	// THEN: One EMI covers principal plus one month's interest

	am, err := lending.ComputeAmortization(dec("10000"), dec("12"), 1)
	require.NoError(t, err)

	// 10000 * 1.01 = 10100
	assert.True(t, am.EMIAmount.Equal(dec("10100")),
		"expected 10100, got %s", am.EMIAmount)
	assert.True(t, am.TotalAmount.Equal(dec("10100")))
}

func TestComputeAmortization_InvalidInputs(t *testing.T) {
	// GIVEN: Non-positive principal, zero duration, or negative rate
	// WHEN: Computing the contract
	// THEN: ErrInvalidAmount, always

	_, err := lending.ComputeAmortization(decimal.Zero, dec("12"), 12)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	_, err = lending.ComputeAmortization(dec("-5000"), dec("12"), 12)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	_, err = lending.ComputeAmortization(dec("120000"), dec("12"), 0)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	_, err = lending.ComputeAmortization(dec("120000"), dec("-1"), 12)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)
}

// =============================================================================
// ADVANCE PLAN TESTS
// =============================================================================

func TestComputeAdvancePlan_EvenSplit(t *testing.T) {
	// GIVEN: A 6000 advance over 3 payroll cycles
	// WHEN: Computing the deduction plan
	// THEN: 2000 per cycle, no interest anywhere

	plan, err := lending.ComputeAdvancePlan(dec("6000"), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, plan.DeductionCycles)
	assert.True(t, plan.DeductionPerCycle.Equal(dec("2000")))
}

func TestComputeAdvancePlan_InvalidInputs(t *testing.T) {
	_, err := lending.ComputeAdvancePlan(decimal.Zero, 3)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)

	_, err = lending.ComputeAdvancePlan(dec("6000"), 0)
	assert.ErrorIs(t, err, lending.ErrInvalidAmount)
}

// =============================================================================
// ROUNDING TESTS
// =============================================================================

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	assert.True(t, lending.RoundMoney(dec("10661.5")).Equal(dec("10662")))
	assert.True(t, lending.RoundMoney(dec("10661.49")).Equal(dec("10661")))
	assert.True(t, lending.RoundMoney(dec("-10661.5")).Equal(dec("-10662")))
}
