package pricing

import (
	"testing"

	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOrderTotalUsesCapturedQuarterlyPrice(t *testing.T) {
	plan := PlanPrices{Monthly: 1000, Quarterly: 2700, Yearly: 10000}
	addOns := []AddOnPrice{{Price: 200, BillingCycle: CycleMonthly}}

	total, err := ComputeOrderTotal(plan, CycleQuarterly, addOns)
	require.NoError(t, err)
	assert.Equal(t, int64(3300), total)
}

func TestComputeOrderTotalAddOnAdjustment(t *testing.T) {
	plan := PlanPrices{Monthly: 1000, Quarterly: 2700, Yearly: 10000}

	cases := []struct {
		name  string
		cycle BillingCycle
		addOn AddOnPrice
		want  int64
	}{
		{"monthly addon on yearly order", CycleYearly, AddOnPrice{Price: 200, BillingCycle: CycleMonthly}, 10000 + 2400},
		{"monthly addon on monthly order", CycleMonthly, AddOnPrice{Price: 200, BillingCycle: CycleMonthly}, 1000 + 200},
		{"yearly addon is not prorated down", CycleMonthly, AddOnPrice{Price: 1200, BillingCycle: CycleYearly}, 1000 + 1200},
		{"yearly addon on quarterly order", CycleQuarterly, AddOnPrice{Price: 1200, BillingCycle: CycleYearly}, 2700 + 1200},
		{"one time addon", CycleYearly, AddOnPrice{Price: 500, BillingCycle: CycleOneTime}, 10000 + 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, err := ComputeOrderTotal(plan, tc.cycle, []AddOnPrice{tc.addOn})
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
		})
	}
}

func TestComputeOrderTotalRejectsUnknownCycle(t *testing.T) {
	_, err := ComputeOrderTotal(PlanPrices{Monthly: 100}, CycleOneTime, nil)
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)

	_, err = ComputeOrderTotal(PlanPrices{Monthly: 100}, BillingCycle("weekly"), nil)
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)
}

func TestComputeOrderTotalRejectsNegativeAddOn(t *testing.T) {
	_, err := ComputeOrderTotal(PlanPrices{Monthly: 100}, CycleMonthly, []AddOnPrice{{Price: -1, BillingCycle: CycleMonthly}})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestCycleDays(t *testing.T) {
	cfg := config.DefaultLifecycleConfig()

	days, err := CycleDays(CycleMonthly, cfg)
	require.NoError(t, err)
	assert.Equal(t, 30, days)

	days, err = CycleDays(CycleQuarterly, cfg)
	require.NoError(t, err)
	assert.Equal(t, 90, days)

	days, err = CycleDays(CycleYearly, cfg)
	require.NoError(t, err)
	assert.Equal(t, 365, days)

	_, err = CycleDays(CycleOneTime, cfg)
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)
}
