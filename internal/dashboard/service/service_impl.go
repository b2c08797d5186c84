package service

import (
	"context"

	"github.com/smallbiznis/cloudnest/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Users        userdomain.Service
	Orders       orderdomain.Service
	Provisioning provisioningdomain.Service
	Invoices     invoicedomain.Service
	Support      supportdomain.Service
}

type Service struct {
	log          *zap.Logger
	users        userdomain.Service
	orders       orderdomain.Service
	provisioning provisioningdomain.Service
	invoices     invoicedomain.Service
	support      supportdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:          p.Log.Named("dashboard.service"),
		users:        p.Users,
		orders:       p.Orders,
		provisioning: p.Provisioning,
		invoices:     p.Invoices,
		support:      p.Support,
	}
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	var (
		stats domain.Stats
		err   error
	)

	if stats.TotalUsers, err = s.users.Count(ctx, userdomain.ListFilter{Role: userdomain.RoleUser}); err != nil {
		return domain.Stats{}, err
	}
	if stats.TotalOrders, err = s.orders.Count(ctx, orderdomain.ListFilter{}); err != nil {
		return domain.Stats{}, err
	}
	if stats.PendingOrders, err = s.orders.Count(ctx, orderdomain.ListFilter{Status: orderdomain.StatusPending}); err != nil {
		return domain.Stats{}, err
	}
	if stats.ActiveServers, err = s.provisioning.Count(ctx, provisioningdomain.ListFilter{Status: provisioningdomain.StatusActive}); err != nil {
		return domain.Stats{}, err
	}
	if stats.SuspendedServers, err = s.provisioning.Count(ctx, provisioningdomain.ListFilter{Status: provisioningdomain.StatusSuspended}); err != nil {
		return domain.Stats{}, err
	}
	if stats.UnpaidInvoices, err = s.invoices.Count(ctx, invoicedomain.ListFilter{Status: invoicedomain.StatusUnpaid}); err != nil {
		return domain.Stats{}, err
	}
	if stats.OpenTickets, err = s.support.Count(ctx, supportdomain.StatusOpen); err != nil {
		return domain.Stats{}, err
	}
	if stats.TotalRevenue, err = s.invoices.Revenue(ctx); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}
