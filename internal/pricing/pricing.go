// Package pricing computes order and renewal amounts. Amounts are in minor
// units; there is no currency conversion, tax or rounding.
package pricing

import (
	"errors"

	"github.com/smallbiznis/cloudnest/internal/config"
)

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
	CycleOneTime   BillingCycle = "one_time"
)

var (
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrInvalidPrice        = errors.New("invalid_price")
)

// ValidOrderCycle reports whether c can be chosen for an order.
// one_time only describes add-ons.
func (c BillingCycle) ValidOrderCycle() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	default:
		return false
	}
}

func (c BillingCycle) ValidAddOnCycle() bool {
	return c == CycleMonthly || c == CycleYearly || c == CycleOneTime
}

// PlanPrices are the three unit prices captured from a plan.
type PlanPrices struct {
	Monthly   int64
	Quarterly int64
	Yearly    int64
}

type AddOnPrice struct {
	Price        int64
	BillingCycle BillingCycle
}

// ComputeOrderTotal returns the plan price for cycle plus every add-on.
//
// Only monthly add-ons are scaled to the order cycle (x3 quarterly, x12
// yearly). Yearly and one-time add-ons are charged at face value whatever
// the order cycle.
func ComputeOrderTotal(plan PlanPrices, cycle BillingCycle, addOns []AddOnPrice) (int64, error) {
	total, err := plan.For(cycle)
	if err != nil {
		return 0, err
	}
	for _, addOn := range addOns {
		if addOn.Price < 0 {
			return 0, ErrInvalidPrice
		}
		total += AdjustAddOnPrice(addOn, cycle)
	}
	return total, nil
}

func (p PlanPrices) For(cycle BillingCycle) (int64, error) {
	var price int64
	switch cycle {
	case CycleMonthly:
		price = p.Monthly
	case CycleQuarterly:
		price = p.Quarterly
	case CycleYearly:
		price = p.Yearly
	default:
		return 0, ErrInvalidBillingCycle
	}
	if price < 0 {
		return 0, ErrInvalidPrice
	}
	return price, nil
}

func AdjustAddOnPrice(addOn AddOnPrice, orderCycle BillingCycle) int64 {
	if addOn.BillingCycle != CycleMonthly {
		return addOn.Price
	}
	switch orderCycle {
	case CycleQuarterly:
		return addOn.Price * 3
	case CycleYearly:
		return addOn.Price * 12
	default:
		return addOn.Price
	}
}

// CycleDays returns the length of one service period for cycle.
func CycleDays(cycle BillingCycle, cfg config.LifecycleConfig) (int, error) {
	if !cycle.ValidOrderCycle() {
		return 0, ErrInvalidBillingCycle
	}
	days := cfg.CycleDays[string(cycle)]
	if days <= 0 {
		days = config.DefaultLifecycleConfig().CycleDays[string(cycle)]
	}
	return days, nil
}
