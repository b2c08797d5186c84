package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	"github.com/stretchr/testify/require"
)

func planInput(name string, monthly int64) domain.PlanInput {
	return domain.PlanInput{
		Name:           name,
		Type:           domain.PlanTypeVPS,
		CPU:            "1 vCPU",
		RAM:            "1 GB",
		PriceMonthly:   monthly,
		PriceQuarterly: monthly * 3,
		PriceYearly:    monthly * 12,
		Features:       []string{" Daily backups ", "", "DDoS protection"},
	}
}

func TestCreatePlanSlugsNameAndTrimsFeatures(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	plan, err := stack.Catalog.CreatePlan(ctx, planInput("Cloud VPS Mini", 1500))
	require.NoError(t, err)
	require.Equal(t, "cloud-vps-mini", plan.Slug)
	require.True(t, plan.Active)
	require.Equal(t, []string{"Daily backups", "DDoS protection"}, []string(plan.Features))

	got, err := stack.Catalog.GetPlan(ctx, plan.ID.String(), true)
	require.NoError(t, err)
	require.Equal(t, plan.Slug, got.Slug)
	require.Equal(t, int64(1500), got.PriceMonthly)

	_, err = stack.Catalog.CreatePlan(ctx, planInput("Cloud VPS Mini", 2500))
	require.ErrorIs(t, err, domain.ErrSlugTaken)
}

func TestCreatePlanValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	in := planInput("", 1000)
	_, err := stack.Catalog.CreatePlan(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidName)

	in = planInput("Odd", 1000)
	in.Type = "colo"
	_, err = stack.Catalog.CreatePlan(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidPlanType)

	in = planInput("Negative", -1)
	_, err = stack.Catalog.CreatePlan(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestDeactivatedPlanIsHiddenFromCustomers(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	cheap, err := stack.Catalog.CreatePlan(ctx, planInput("Starter", 1000))
	require.NoError(t, err)
	_, err = stack.Catalog.CreatePlan(ctx, planInput("Business", 5000))
	require.NoError(t, err)

	_, err = stack.Catalog.SetPlanActive(ctx, cheap.ID.String(), false)
	require.NoError(t, err)

	_, err = stack.Catalog.GetPlan(ctx, cheap.ID.String(), true)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)

	staffView, err := stack.Catalog.GetPlan(ctx, cheap.ID.String(), false)
	require.NoError(t, err)
	require.False(t, staffView.Active)

	visible, err := stack.Catalog.ListPlans(ctx, domain.ListPlansRequest{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "Business", visible[0].Name)

	all, err := stack.Catalog.ListPlans(ctx, domain.ListPlansRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Starter", all[0].Name, "ordered by monthly price")
}

func TestUpdatePlanChangesPrices(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	plan := stack.CreatePlan(t)

	in := planInput(plan.Name, 4000)
	updated, err := stack.Catalog.UpdatePlan(ctx, plan.ID.String(), in)
	require.NoError(t, err)
	require.Equal(t, int64(4000), updated.PriceMonthly)
	require.Equal(t, plan.Slug, updated.Slug)

	got, err := stack.Catalog.GetPlan(ctx, plan.ID.String(), false)
	require.NoError(t, err)
	require.Equal(t, int64(12000), got.PriceQuarterly)
}

func TestGetPlanRejectsMalformedID(t *testing.T) {
	stack := testutil.NewStack(t)

	_, err := stack.Catalog.GetPlan(context.Background(), "abc", true)
	require.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = stack.Catalog.GetPlan(context.Background(), "12345", true)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestResolveAddOnsKeepsRequestOrderAndRejectsInactive(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	ssl, err := stack.Catalog.CreateAddOn(ctx, domain.AddOnInput{
		Name: "SSL", Category: domain.AddOnCategorySSL, Price: 1000, BillingCycle: pricing.CycleYearly,
	})
	require.NoError(t, err)
	backup, err := stack.Catalog.CreateAddOn(ctx, domain.AddOnInput{
		Name: "Backups", Category: domain.AddOnCategoryBackup, Price: 500, BillingCycle: pricing.CycleMonthly,
	})
	require.NoError(t, err)

	got, err := stack.Catalog.ResolveAddOns(ctx, []string{backup.ID.String(), ssl.ID.String()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, backup.ID, got[0].ID)
	require.Equal(t, ssl.ID, got[1].ID)

	_, err = stack.Catalog.SetAddOnActive(ctx, ssl.ID.String(), false)
	require.NoError(t, err)
	_, err = stack.Catalog.ResolveAddOns(ctx, []string{backup.ID.String(), ssl.ID.String()})
	require.ErrorIs(t, err, domain.ErrAddOnUnavailable)

	_, err = stack.Catalog.ResolveAddOns(ctx, []string{"not-an-id"})
	require.ErrorIs(t, err, domain.ErrAddOnUnavailable)

	active, err := stack.Catalog.ListAddOns(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestAddOnRejectsQuarterlyCycle(t *testing.T) {
	stack := testutil.NewStack(t)

	_, err := stack.Catalog.CreateAddOn(context.Background(), domain.AddOnInput{
		Name: "Panel", Category: domain.AddOnCategoryPanel, Price: 900, BillingCycle: pricing.CycleQuarterly,
	})
	require.ErrorIs(t, err, domain.ErrInvalidBillingCycle)
}

func TestDataCenters(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	_, err := stack.Catalog.CreateDataCenter(ctx, domain.DataCenterInput{Name: "Frankfurt"})
	require.ErrorIs(t, err, domain.ErrInvalidLocation)

	fra, err := stack.Catalog.CreateDataCenter(ctx, domain.DataCenterInput{Name: "Frankfurt", Location: "DE"})
	require.NoError(t, err)
	_, err = stack.Catalog.CreateDataCenter(ctx, domain.DataCenterInput{Name: "Amsterdam", Location: "NL"})
	require.NoError(t, err)

	_, err = stack.Catalog.SetDataCenterActive(ctx, fra.ID.String(), false)
	require.NoError(t, err)

	visible, err := stack.Catalog.ListDataCenters(ctx, true)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "Amsterdam", visible[0].Name)

	_, err = stack.Catalog.GetDataCenter(ctx, fra.ID.String(), true)
	require.ErrorIs(t, err, domain.ErrDataCenterNotFound)
}
