package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/cloudnest/internal/pricing"
)

type PlanInput struct {
	Name           string
	Type           PlanType
	Description    string
	CPU            string
	RAM            string
	Storage        string
	Bandwidth      string
	PriceMonthly   int64
	PriceQuarterly int64
	PriceYearly    int64
	Features       []string
	Active         *bool
}

type ListPlansRequest struct {
	Type       PlanType
	ActiveOnly bool
}

type AddOnInput struct {
	Name         string
	Description  string
	Category     AddOnCategory
	Price        int64
	BillingCycle pricing.BillingCycle
	Active       *bool
}

type DataCenterInput struct {
	Name     string
	Location string
	Active   *bool
}

// Service manages the storefront catalog. Customers only ever see active
// items; staff see everything. Orders copy prices at purchase time, so
// editing a plan never changes an existing order.
type Service interface {
	CreatePlan(ctx context.Context, in PlanInput) (Plan, error)
	UpdatePlan(ctx context.Context, id string, in PlanInput) (Plan, error)
	SetPlanActive(ctx context.Context, id string, active bool) (Plan, error)
	GetPlan(ctx context.Context, id string, activeOnly bool) (Plan, error)
	ListPlans(ctx context.Context, req ListPlansRequest) ([]Plan, error)

	CreateAddOn(ctx context.Context, in AddOnInput) (AddOn, error)
	UpdateAddOn(ctx context.Context, id string, in AddOnInput) (AddOn, error)
	SetAddOnActive(ctx context.Context, id string, active bool) (AddOn, error)
	ListAddOns(ctx context.Context, activeOnly bool) ([]AddOn, error)
	ResolveAddOns(ctx context.Context, ids []string) ([]AddOn, error)

	CreateDataCenter(ctx context.Context, in DataCenterInput) (DataCenter, error)
	UpdateDataCenter(ctx context.Context, id string, in DataCenterInput) (DataCenter, error)
	SetDataCenterActive(ctx context.Context, id string, active bool) (DataCenter, error)
	GetDataCenter(ctx context.Context, id string, activeOnly bool) (DataCenter, error)
	ListDataCenters(ctx context.Context, activeOnly bool) ([]DataCenter, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPlanType     = errors.New("invalid_plan_type")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCategory     = errors.New("invalid_addon_category")
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrInvalidLocation     = errors.New("invalid_location")
	ErrSlugTaken           = errors.New("plan_slug_taken")
	ErrPlanNotFound        = errors.New("plan_not_found")
	ErrAddOnNotFound       = errors.New("addon_not_found")
	ErrAddOnUnavailable    = errors.New("addon_unavailable")
	ErrDataCenterNotFound  = errors.New("datacenter_not_found")
)
