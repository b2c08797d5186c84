package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Plans       repository.Repository[domain.Plan]
	AddOns      repository.Repository[domain.AddOn]
	DataCenters repository.Repository[domain.DataCenter]
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	plans       repository.Repository[domain.Plan]
	addOns      repository.Repository[domain.AddOn]
	dataCenters repository.Repository[domain.DataCenter]
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("catalog.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		plans:       p.Plans,
		addOns:      p.AddOns,
		dataCenters: p.DataCenters,
	}
}

func (s *Service) CreatePlan(ctx context.Context, in domain.PlanInput) (domain.Plan, error) {
	if err := validatePlan(in); err != nil {
		return domain.Plan{}, err
	}

	now := s.clock.Now()
	plan := domain.Plan{
		ID:        s.genID.Generate(),
		Slug:      slug.Make(in.Name),
		Active:    true,
		CreatedAt: now,
	}
	applyPlanInput(&plan, in, now)

	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.plans.Create(ctx, &plan)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Plan{}, domain.ErrSlugTaken
		}
		return domain.Plan{}, err
	}
	s.log.Info("plan created", zap.String("plan_id", plan.ID.String()), zap.String("slug", plan.Slug))
	return plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id string, in domain.PlanInput) (domain.Plan, error) {
	if err := validatePlan(in); err != nil {
		return domain.Plan{}, err
	}
	plan, err := s.GetPlan(ctx, id, false)
	if err != nil {
		return domain.Plan{}, err
	}

	applyPlanInput(&plan, in, s.clock.Now())
	fields := map[string]any{
		"name":            plan.Name,
		"type":            plan.Type,
		"description":     plan.Description,
		"cpu":             plan.CPU,
		"ram":             plan.RAM,
		"storage":         plan.Storage,
		"bandwidth":       plan.Bandwidth,
		"price_monthly":   plan.PriceMonthly,
		"price_quarterly": plan.PriceQuarterly,
		"price_yearly":    plan.PriceYearly,
		"features":        plan.Features,
		"active":          plan.Active,
		"updated_at":      plan.UpdatedAt,
	}
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.plans.Update(ctx, int64(plan.ID), fields)
		return err
	})
	if err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) SetPlanActive(ctx context.Context, id string, active bool) (domain.Plan, error) {
	plan, err := s.GetPlan(ctx, id, false)
	if err != nil {
		return domain.Plan{}, err
	}
	plan.Active = active
	plan.UpdatedAt = s.clock.Now()
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.plans.Update(ctx, int64(plan.ID), map[string]any{"active": active, "updated_at": plan.UpdatedAt})
		return err
	})
	if err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id string, activeOnly bool) (domain.Plan, error) {
	planID, err := parseID(id)
	if err != nil {
		return domain.Plan{}, err
	}
	var plan *domain.Plan
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.plans.FindByID(ctx, int64(planID))
		return err
	})
	if err != nil {
		return domain.Plan{}, err
	}
	if plan == nil || (activeOnly && !plan.Active) {
		return domain.Plan{}, domain.ErrPlanNotFound
	}
	return *plan, nil
}

func (s *Service) ListPlans(ctx context.Context, req domain.ListPlansRequest) ([]domain.Plan, error) {
	if req.Type != "" && !req.Type.Valid() {
		return nil, domain.ErrInvalidPlanType
	}
	opts := []option.QueryOption{option.WithOrder("price_monthly asc, id asc")}
	if req.ActiveOnly {
		opts = append(opts, option.WithWhere("active = ?", true))
	}

	var items []*domain.Plan
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.plans.Find(ctx, &domain.Plan{Type: req.Type}, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) CreateAddOn(ctx context.Context, in domain.AddOnInput) (domain.AddOn, error) {
	if err := validateAddOn(in); err != nil {
		return domain.AddOn{}, err
	}
	now := s.clock.Now()
	addOn := domain.AddOn{
		ID:           s.genID.Generate(),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Category:     in.Category,
		Price:        in.Price,
		BillingCycle: in.BillingCycle,
		Active:       boolOr(in.Active, true),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.addOns.Create(ctx, &addOn)
	})
	if err != nil {
		return domain.AddOn{}, err
	}
	return addOn, nil
}

func (s *Service) UpdateAddOn(ctx context.Context, id string, in domain.AddOnInput) (domain.AddOn, error) {
	if err := validateAddOn(in); err != nil {
		return domain.AddOn{}, err
	}
	addOn, err := s.getAddOn(ctx, id)
	if err != nil {
		return domain.AddOn{}, err
	}
	addOn.Name = strings.TrimSpace(in.Name)
	addOn.Description = strings.TrimSpace(in.Description)
	addOn.Category = in.Category
	addOn.Price = in.Price
	addOn.BillingCycle = in.BillingCycle
	addOn.Active = boolOr(in.Active, addOn.Active)
	addOn.UpdatedAt = s.clock.Now()

	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.addOns.Update(ctx, int64(addOn.ID), map[string]any{
			"name":          addOn.Name,
			"description":   addOn.Description,
			"category":      addOn.Category,
			"price":         addOn.Price,
			"billing_cycle": addOn.BillingCycle,
			"active":        addOn.Active,
			"updated_at":    addOn.UpdatedAt,
		})
		return err
	})
	if err != nil {
		return domain.AddOn{}, err
	}
	return addOn, nil
}

func (s *Service) SetAddOnActive(ctx context.Context, id string, active bool) (domain.AddOn, error) {
	addOn, err := s.getAddOn(ctx, id)
	if err != nil {
		return domain.AddOn{}, err
	}
	addOn.Active = active
	addOn.UpdatedAt = s.clock.Now()
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.addOns.Update(ctx, int64(addOn.ID), map[string]any{"active": active, "updated_at": addOn.UpdatedAt})
		return err
	})
	if err != nil {
		return domain.AddOn{}, err
	}
	return addOn, nil
}

func (s *Service) ListAddOns(ctx context.Context, activeOnly bool) ([]domain.AddOn, error) {
	opts := []option.QueryOption{option.WithOrder("category asc, price asc, id asc")}
	if activeOnly {
		opts = append(opts, option.WithWhere("active = ?", true))
	}
	var items []*domain.AddOn
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.addOns.Find(ctx, nil, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// ResolveAddOns loads the add-ons chosen for an order in request order.
// Unknown or inactive ids fail the whole lookup.
func (s *Service) ResolveAddOns(ctx context.Context, ids []string) ([]domain.AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parsed := make([]int64, 0, len(ids))
	for _, raw := range ids {
		id, err := parseID(raw)
		if err != nil {
			return nil, domain.ErrAddOnUnavailable
		}
		parsed = append(parsed, int64(id))
	}

	var items []*domain.AddOn
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.addOns.Find(ctx, nil,
			option.WithWhere("id IN ?", parsed),
			option.WithWhere("active = ?", true),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.AddOn, len(items))
	for _, item := range items {
		byID[int64(item.ID)] = *item
	}
	out := make([]domain.AddOn, 0, len(parsed))
	for _, id := range parsed {
		item, ok := byID[id]
		if !ok {
			return nil, domain.ErrAddOnUnavailable
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) CreateDataCenter(ctx context.Context, in domain.DataCenterInput) (domain.DataCenter, error) {
	if err := validateDataCenter(in); err != nil {
		return domain.DataCenter{}, err
	}
	now := s.clock.Now()
	dc := domain.DataCenter{
		ID:        s.genID.Generate(),
		Name:      strings.TrimSpace(in.Name),
		Location:  strings.TrimSpace(in.Location),
		Active:    boolOr(in.Active, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.dataCenters.Create(ctx, &dc)
	})
	if err != nil {
		return domain.DataCenter{}, err
	}
	return dc, nil
}

func (s *Service) UpdateDataCenter(ctx context.Context, id string, in domain.DataCenterInput) (domain.DataCenter, error) {
	if err := validateDataCenter(in); err != nil {
		return domain.DataCenter{}, err
	}
	dc, err := s.GetDataCenter(ctx, id, false)
	if err != nil {
		return domain.DataCenter{}, err
	}
	dc.Name = strings.TrimSpace(in.Name)
	dc.Location = strings.TrimSpace(in.Location)
	dc.Active = boolOr(in.Active, dc.Active)
	dc.UpdatedAt = s.clock.Now()
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.dataCenters.Update(ctx, int64(dc.ID), map[string]any{
			"name":       dc.Name,
			"location":   dc.Location,
			"active":     dc.Active,
			"updated_at": dc.UpdatedAt,
		})
		return err
	})
	if err != nil {
		return domain.DataCenter{}, err
	}
	return dc, nil
}

func (s *Service) SetDataCenterActive(ctx context.Context, id string, active bool) (domain.DataCenter, error) {
	dc, err := s.GetDataCenter(ctx, id, false)
	if err != nil {
		return domain.DataCenter{}, err
	}
	dc.Active = active
	dc.UpdatedAt = s.clock.Now()
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := s.dataCenters.Update(ctx, int64(dc.ID), map[string]any{"active": active, "updated_at": dc.UpdatedAt})
		return err
	})
	if err != nil {
		return domain.DataCenter{}, err
	}
	return dc, nil
}

func (s *Service) GetDataCenter(ctx context.Context, id string, activeOnly bool) (domain.DataCenter, error) {
	dcID, err := parseID(id)
	if err != nil {
		return domain.DataCenter{}, err
	}
	var dc *domain.DataCenter
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		dc, err = s.dataCenters.FindByID(ctx, int64(dcID))
		return err
	})
	if err != nil {
		return domain.DataCenter{}, err
	}
	if dc == nil || (activeOnly && !dc.Active) {
		return domain.DataCenter{}, domain.ErrDataCenterNotFound
	}
	return *dc, nil
}

func (s *Service) ListDataCenters(ctx context.Context, activeOnly bool) ([]domain.DataCenter, error) {
	opts := []option.QueryOption{option.WithOrder("name asc, id asc")}
	if activeOnly {
		opts = append(opts, option.WithWhere("active = ?", true))
	}
	var items []*domain.DataCenter
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.dataCenters.Find(ctx, nil, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) getAddOn(ctx context.Context, id string) (domain.AddOn, error) {
	addOnID, err := parseID(id)
	if err != nil {
		return domain.AddOn{}, err
	}
	var addOn *domain.AddOn
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		addOn, err = s.addOns.FindByID(ctx, int64(addOnID))
		return err
	})
	if err != nil {
		return domain.AddOn{}, err
	}
	if addOn == nil {
		return domain.AddOn{}, domain.ErrAddOnNotFound
	}
	return *addOn, nil
}

func validatePlan(in domain.PlanInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.ErrInvalidName
	}
	if !in.Type.Valid() {
		return domain.ErrInvalidPlanType
	}
	if in.PriceMonthly < 0 || in.PriceQuarterly < 0 || in.PriceYearly < 0 {
		return domain.ErrInvalidPrice
	}
	return nil
}

func validateAddOn(in domain.AddOnInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.ErrInvalidName
	}
	if !in.Category.Valid() {
		return domain.ErrInvalidCategory
	}
	if !in.BillingCycle.ValidAddOnCycle() {
		return domain.ErrInvalidBillingCycle
	}
	if in.Price < 0 {
		return domain.ErrInvalidPrice
	}
	return nil
}

func validateDataCenter(in domain.DataCenterInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.ErrInvalidName
	}
	if strings.TrimSpace(in.Location) == "" {
		return domain.ErrInvalidLocation
	}
	return nil
}

func applyPlanInput(plan *domain.Plan, in domain.PlanInput, now time.Time) {
	features := make([]string, 0, len(in.Features))
	for _, f := range in.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	plan.Name = strings.TrimSpace(in.Name)
	plan.Type = in.Type
	plan.Description = strings.TrimSpace(in.Description)
	plan.CPU = strings.TrimSpace(in.CPU)
	plan.RAM = strings.TrimSpace(in.RAM)
	plan.Storage = strings.TrimSpace(in.Storage)
	plan.Bandwidth = strings.TrimSpace(in.Bandwidth)
	plan.PriceMonthly = in.PriceMonthly
	plan.PriceQuarterly = in.PriceQuarterly
	plan.PriceYearly = in.PriceYearly
	plan.Features = features
	plan.Active = boolOr(in.Active, plan.Active)
	plan.UpdatedAt = now
}

func parseID(value string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}
