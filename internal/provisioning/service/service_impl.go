package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSSHPort = 22
	dayDuration    = 24 * time.Hour

	// MetaPeriodStart on a renewal invoice holds the renewal date it pays for.
	MetaPeriodStart = "period_start"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Orders    orderdomain.Service
	Invoices  invoicedomain.Service
	Wallet    walletdomain.Service
	Support   supportdomain.Service
	Lifecycle *config.LifecycleConfigHolder
	Notifier  notification.Notifier `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	orders    orderdomain.Service
	invoices  invoicedomain.Service
	wallet    walletdomain.Service
	support   supportdomain.Service
	lifecycle *config.LifecycleConfigHolder
	notifier  notification.Notifier
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	lifecycle := p.Lifecycle
	if lifecycle == nil {
		lifecycle = config.NewStaticLifecycleConfigHolder(config.DefaultLifecycleConfig())
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("provisioning.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		orders:    p.Orders,
		invoices:  p.Invoices,
		wallet:    p.Wallet,
		support:   p.Support,
		lifecycle: lifecycle,
		notifier:  notifier,
	}
}

// Provision creates the server for a paid order and activates the order.
// A second attempt for the same order fails with ErrServerExists and
// changes nothing.
func (s *Service) Provision(ctx context.Context, req domain.ProvisionRequest) (domain.Server, error) {
	if !req.Payment.Valid() {
		return domain.Server{}, domain.ErrInvalidPayment
	}
	creds, err := normalizeCredentials(req.Credentials)
	if err != nil {
		return domain.Server{}, err
	}
	orderID, err := userservice.ParseID(req.OrderID)
	if err != nil {
		return domain.Server{}, orderdomain.ErrInvalidID
	}

	var server domain.Server
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			order, err := s.orders.GetTx(ctx, tx, orderID)
			if err != nil {
				return err
			}
			existing, err := s.repo.FindByOrderID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrServerExists
			}
			if order.Status != orderdomain.StatusPending {
				return domain.ErrOrderNotPending
			}

			if order.PaymentStatus != orderdomain.PaymentStatusPaid {
				if err := s.settleOrderTx(ctx, tx, order, req.Payment); err != nil {
					return err
				}
			}

			cfg := s.lifecycle.Get()
			days, err := pricing.CycleDays(order.BillingCycle, cfg)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			server = domain.Server{
				ID:           s.genID.Generate(),
				OrderID:      order.ID,
				UserID:       order.UserID,
				PlanName:     order.PlanName,
				Status:       domain.StatusActive,
				BillingCycle: order.BillingCycle,
				Amount:       order.Amount,
				RenewalDate:  now.AddDate(0, 0, days),
				Hostname:     creds.Hostname,
				IPAddress:    creds.IPAddress,
				Username:     creds.Username,
				Password:     creds.Password,
				SSHPort:      creds.SSHPort,
				OS:           firstNonEmpty(creds.OS, order.OS),
				ControlPanel: firstNonEmpty(creds.ControlPanel, order.ControlPanel),
				PanelURL:     creds.PanelURL,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.repo.Insert(ctx, tx, &server); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrServerExists
				}
				return err
			}

			_, err = s.orders.MarkProvisionedTx(ctx, tx, order.ID)
			return err
		})
	})
	if err != nil {
		return domain.Server{}, err
	}

	s.log.Info("server provisioned",
		zap.String("server_id", server.ID.String()),
		zap.String("order_id", server.OrderID.String()),
		zap.String("user_id", server.UserID.String()),
		zap.Time("renewal_date", server.RenewalDate),
	)
	s.notifyCredentials(ctx, server, notification.TemplateServerProvisioned)
	return server, nil
}

// settleOrderTx pays an unpaid order on the customer's behalf before
// provisioning.
func (s *Service) settleOrderTx(ctx context.Context, tx *gorm.DB, order orderdomain.Order, payment domain.ProvisionPayment) error {
	switch payment {
	case domain.ProvisionPaymentWallet:
		if _, err := s.wallet.DebitTx(ctx, tx, walletdomain.DebitRequest{
			UserID:      order.UserID,
			Amount:      order.Amount,
			Description: fmt.Sprintf("Order payment: %s (%s)", order.PlanName, order.BillingCycle),
			Reference:   "order:" + order.ID.String(),
		}); err != nil {
			return err
		}
		_, _, err := s.orders.UpdatePaymentStatusTx(ctx, tx, order.ID, orderdomain.PaymentStatusPaid, "wallet")
		return err
	case domain.ProvisionPaymentExternal:
		_, _, err := s.orders.UpdatePaymentStatusTx(ctx, tx, order.ID, orderdomain.PaymentStatusPaid, "external")
		return err
	default:
		return domain.ErrOrderNotPaid
	}
}

func (s *Service) Suspend(ctx context.Context, serverID string, invoiceID string) (domain.Server, error) {
	sid, err := parseID(serverID)
	if err != nil {
		return domain.Server{}, err
	}

	var (
		server domain.Server
		inv    invoicedomain.Invoice
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.GetTx(ctx, tx, sid)
			if err != nil {
				return err
			}
			inv, err = s.resolveInvoiceTx(ctx, tx, current, invoiceID)
			if err != nil {
				return err
			}
			server, err = s.SuspendTx(ctx, tx, sid, inv.ID)
			return err
		})
	})
	if err != nil {
		return domain.Server{}, err
	}
	s.NotifySuspended(ctx, server, inv)
	return server, nil
}

// SuspendTx requires an unpaid invoice of this server that is past due.
func (s *Service) SuspendTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID, invoiceID snowflake.ID) (domain.Server, error) {
	server, err := s.GetTx(ctx, tx, serverID)
	if err != nil {
		return domain.Server{}, err
	}
	if !domain.CanTransition(server.Status, domain.StatusSuspended) {
		return domain.Server{}, domain.ErrInvalidTransition
	}
	inv, err := s.invoices.GetTx(ctx, tx, invoiceID)
	if err != nil {
		return domain.Server{}, err
	}
	if !belongsTo(inv, server) {
		return domain.Server{}, domain.ErrInvoiceMismatch
	}
	now := s.clock.Now()
	if !inv.Overdue(now, 0) {
		return domain.Server{}, domain.ErrNotOverdue
	}

	ok, err := s.repo.Transition(ctx, tx, serverID, domain.StatusActive, domain.StatusSuspended, map[string]any{
		"suspended_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return domain.Server{}, err
	}
	if !ok {
		return domain.Server{}, domain.ErrInvalidTransition
	}

	s.log.Info("server suspended",
		zap.String("server_id", serverID.String()),
		zap.String("invoice_id", invoiceID.String()),
	)
	return s.GetTx(ctx, tx, serverID)
}

func (s *Service) Unsuspend(ctx context.Context, serverID string) (domain.Server, error) {
	sid, err := parseID(serverID)
	if err != nil {
		return domain.Server{}, err
	}

	var server domain.Server
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.GetTx(ctx, tx, sid)
			if err != nil {
				return err
			}
			if current.Status != domain.StatusSuspended {
				return domain.ErrInvalidTransition
			}
			days, err := pricing.CycleDays(current.BillingCycle, s.lifecycle.Get())
			if err != nil {
				return err
			}

			now := s.clock.Now()
			ok, err := s.repo.Transition(ctx, tx, sid, domain.StatusSuspended, domain.StatusActive, map[string]any{
				"suspended_at": nil,
				"renewal_date": now.AddDate(0, 0, days),
				"updated_at":   now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrInvalidTransition
			}
			server, err = s.GetTx(ctx, tx, sid)
			return err
		})
	})
	if err != nil {
		return domain.Server{}, err
	}

	s.log.Info("server unsuspended",
		zap.String("server_id", server.ID.String()),
		zap.Time("renewal_date", server.RenewalDate),
	)
	s.notifier.Notify(ctx, notification.Message{
		UserID:   server.UserID,
		Template: notification.TemplateServerUnsuspended,
		Data: map[string]any{
			"hostname":     server.Hostname,
			"renewal_date": server.RenewalDate.Format("2006-01-02"),
		},
	})
	return server, nil
}

func (s *Service) Cancel(ctx context.Context, serverID string, invoiceID string, reason string) (domain.Server, error) {
	sid, err := parseID(serverID)
	if err != nil {
		return domain.Server{}, err
	}

	var server domain.Server
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.GetTx(ctx, tx, sid)
			if err != nil {
				return err
			}
			inv, err := s.resolveInvoiceTx(ctx, tx, current, invoiceID)
			if err != nil {
				return err
			}
			server, err = s.CancelTx(ctx, tx, sid, inv.ID, reason)
			return err
		})
	})
	if err != nil {
		return domain.Server{}, err
	}
	s.NotifyCancelled(ctx, server)
	return server, nil
}

// CancelTx is only reachable from suspended. The invoice must be overdue
// beyond the cancellation grace window and the server must have stayed
// suspended for the gap between the two windows.
func (s *Service) CancelTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID, invoiceID snowflake.ID, reason string) (domain.Server, error) {
	server, err := s.GetTx(ctx, tx, serverID)
	if err != nil {
		return domain.Server{}, err
	}
	if !domain.CanTransition(server.Status, domain.StatusCancelled) {
		return domain.Server{}, domain.ErrInvalidTransition
	}
	inv, err := s.invoices.GetTx(ctx, tx, invoiceID)
	if err != nil {
		return domain.Server{}, err
	}
	if !belongsTo(inv, server) {
		return domain.Server{}, domain.ErrInvoiceMismatch
	}

	cfg := s.lifecycle.Get()
	now := s.clock.Now()
	if !inv.Overdue(now, time.Duration(cfg.CancelGraceDays)*dayDuration) {
		return domain.Server{}, domain.ErrNotOverdue
	}
	minSuspension := time.Duration(cfg.CancelGraceDays-cfg.SuspendGraceDays) * dayDuration
	if server.SuspendedAt == nil || now.Sub(*server.SuspendedAt) < minSuspension {
		return domain.Server{}, domain.ErrSuspensionTooShort
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "non-payment"
	}
	ok, err := s.repo.Transition(ctx, tx, serverID, domain.StatusSuspended, domain.StatusCancelled, map[string]any{
		"cancelled_at":  now,
		"cancel_reason": reason,
		"updated_at":    now,
	})
	if err != nil {
		return domain.Server{}, err
	}
	if !ok {
		return domain.Server{}, domain.ErrInvalidTransition
	}

	if _, _, err := s.orders.CancelTx(ctx, tx, server.OrderID, reason); err != nil {
		return domain.Server{}, err
	}
	if _, _, err := s.invoices.MarkCancelledTx(ctx, tx, inv.ID, reason); err != nil {
		return domain.Server{}, err
	}

	s.log.Info("server cancelled",
		zap.String("server_id", serverID.String()),
		zap.String("order_id", server.OrderID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("reason", reason),
	)
	return s.GetTx(ctx, tx, serverID)
}

// ApplyRenewalPaymentTx extends the service period a paid renewal invoice
// covers and restores the server if non-payment had suspended it. It only
// advances when the server still sits at the period the invoice was raised
// for, so paying the same invoice twice never extends twice.
func (s *Service) ApplyRenewalPaymentTx(ctx context.Context, tx *gorm.DB, inv invoicedomain.Invoice) (domain.Server, bool, error) {
	if inv.Kind != invoicedomain.KindRenewal || inv.ServerID == nil {
		return domain.Server{}, false, nil
	}
	server, err := s.GetTx(ctx, tx, *inv.ServerID)
	if err != nil {
		return domain.Server{}, false, err
	}
	if server.Status == domain.StatusCancelled {
		return server, false, nil
	}
	if start, ok := periodStart(inv); ok && !start.Equal(server.RenewalDate) {
		return server, false, nil
	}

	server, err = s.AdvanceRenewalTx(ctx, tx, server)
	if err != nil {
		return domain.Server{}, false, err
	}
	if server.Status == domain.StatusSuspended {
		now := s.clock.Now()
		ok, err := s.repo.Transition(ctx, tx, server.ID, domain.StatusSuspended, domain.StatusActive, map[string]any{
			"suspended_at": nil,
			"updated_at":   now,
		})
		if err != nil {
			return domain.Server{}, false, err
		}
		if ok {
			server, err = s.GetTx(ctx, tx, server.ID)
			if err != nil {
				return domain.Server{}, false, err
			}
		}
	}
	return server, true, nil
}

// AdvanceRenewalTx moves the renewal date forward one cycle from its current
// value. Losing the compare-and-set to a concurrent sweep fails with
// ErrInvalidTransition.
func (s *Service) AdvanceRenewalTx(ctx context.Context, tx *gorm.DB, server domain.Server) (domain.Server, error) {
	days, err := pricing.CycleDays(server.BillingCycle, s.lifecycle.Get())
	if err != nil {
		return domain.Server{}, err
	}
	next := server.RenewalDate.AddDate(0, 0, days)
	ok, err := s.repo.AdvanceRenewal(ctx, tx, server.ID, server.RenewalDate, next, s.clock.Now())
	if err != nil {
		return domain.Server{}, err
	}
	if !ok {
		return domain.Server{}, domain.ErrInvalidTransition
	}
	s.log.Info("server renewal advanced",
		zap.String("server_id", server.ID.String()),
		zap.Time("from", server.RenewalDate),
		zap.Time("to", next),
	)
	return s.GetTx(ctx, tx, server.ID)
}

func (s *Service) UpdateCredentials(ctx context.Context, serverID string, creds domain.Credentials) (domain.Server, error) {
	sid, err := parseID(serverID)
	if err != nil {
		return domain.Server{}, err
	}
	creds, err = normalizeCredentials(creds)
	if err != nil {
		return domain.Server{}, err
	}

	fields := map[string]any{
		"hostname":   creds.Hostname,
		"ip_address": creds.IPAddress,
		"username":   creds.Username,
		"password":   creds.Password,
		"ssh_port":   creds.SSHPort,
		"panel_url":  creds.PanelURL,
		"updated_at": s.clock.Now(),
	}
	if creds.OS != "" {
		fields["os"] = creds.OS
	}
	if creds.ControlPanel != "" {
		fields["control_panel"] = creds.ControlPanel
	}

	var affected int64
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		affected, err = s.repo.Update(ctx, s.db, sid, fields)
		return err
	})
	if err != nil {
		return domain.Server{}, err
	}
	if affected == 0 {
		return domain.Server{}, domain.ErrNotFound
	}

	server, err := s.Get(ctx, serverID)
	if err != nil {
		return domain.Server{}, err
	}
	s.log.Info("server credentials updated", zap.String("server_id", server.ID.String()))
	s.notifyCredentials(ctx, server, notification.TemplateServerCredentials)
	return server, nil
}

func (s *Service) ResendCredentials(ctx context.Context, serverID string) error {
	server, err := s.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if server.Status == domain.StatusCancelled {
		return domain.ErrInvalidTransition
	}
	s.notifyCredentials(ctx, server, notification.TemplateServerCredentials)
	return nil
}

// RequestControl files a reboot or reinstall request as a support ticket.
func (s *Service) RequestControl(ctx context.Context, req domain.ControlRequest) (snowflake.ID, error) {
	if !req.Action.Valid() {
		return 0, domain.ErrInvalidAction
	}
	server, err := s.GetForUser(ctx, req.UserID, req.ServerID)
	if err != nil {
		return 0, err
	}
	if server.Status != domain.StatusActive {
		return 0, domain.ErrInvalidTransition
	}

	var (
		subject  string
		priority = supportdomain.PriorityMedium
		body     strings.Builder
	)
	switch req.Action {
	case domain.ControlReboot:
		subject = "Reboot request: " + server.Hostname
	case domain.ControlReinstall:
		subject = "Reinstall request: " + server.Hostname
		priority = supportdomain.PriorityHigh
	}
	fmt.Fprintf(&body, "Action: %s\nServer: %s (%s)\n", req.Action, server.Hostname, server.IPAddress)
	if os := strings.TrimSpace(req.OS); os != "" && req.Action == domain.ControlReinstall {
		fmt.Fprintf(&body, "Operating system: %s\n", os)
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		fmt.Fprintf(&body, "\n%s\n", msg)
	}

	ticket, err := s.support.Open(ctx, supportdomain.OpenRequest{
		UserID:   server.UserID,
		OrderID:  &server.OrderID,
		ServerID: &server.ID,
		Subject:  subject,
		Priority: priority,
		Message:  body.String(),
	})
	if err != nil {
		return 0, err
	}
	return ticket.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Server, error) {
	sid, err := parseID(id)
	if err != nil {
		return domain.Server{}, err
	}
	var server domain.Server
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		server, err = s.GetTx(ctx, s.db, sid)
		return err
	})
	return server, err
}

func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Server, error) {
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return domain.Server{}, err
	}
	if item == nil {
		return domain.Server{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetForUser(ctx context.Context, userID snowflake.ID, id string) (domain.Server, error) {
	server, err := s.Get(ctx, id)
	if err != nil {
		return domain.Server{}, err
	}
	if server.UserID != userID {
		return domain.Server{}, domain.ErrNotFound
	}
	return server, nil
}

func (s *Service) FindByOrderTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*domain.Server, error) {
	return s.repo.FindByOrderID(ctx, tx, orderID)
}

func (s *Service) List(ctx context.Context, req domain.ListServersRequest) (domain.ListServersResponse, error) {
	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListServersResponse{}, err
	}

	var items []*domain.Server
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx, s.db, req.ListFilter,
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListServersResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	servers := make([]domain.Server, 0, len(items))
	for _, item := range items {
		servers = append(servers, *item)
	}
	return domain.ListServersResponse{PageInfo: pageInfo, Servers: servers}, nil
}

// ListDueForRenewal returns up to limit active servers renewing on or before
// before, ordered by renewal date and positioned after the given key.
func (s *Service) ListDueForRenewal(ctx context.Context, before time.Time, after *pagination.Keyset, limit int) ([]domain.Server, error) {
	var items []*domain.Server
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListDueForRenewal(ctx, s.db, before, after, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Server, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context, filter domain.ListFilter) (int64, error) {
	var count int64
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.repo.Count(ctx, s.db, filter)
		return err
	})
	return count, err
}

// NotifySuspended and NotifyCancelled are shared with the renewal sweep so a
// transition sends the same email whoever triggers it.
func (s *Service) NotifySuspended(ctx context.Context, server domain.Server, inv invoicedomain.Invoice) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   server.UserID,
		Template: notification.TemplateServerSuspended,
		Data: map[string]any{
			"hostname":       server.Hostname,
			"invoice_number": inv.Number,
			"amount":         inv.Amount,
		},
	})
}

func (s *Service) NotifyCancelled(ctx context.Context, server domain.Server) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   server.UserID,
		Template: notification.TemplateServerCancelled,
		Data: map[string]any{
			"hostname": server.Hostname,
			"reason":   server.CancelReason,
		},
	})
}

func (s *Service) notifyCredentials(ctx context.Context, server domain.Server, template string) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   server.UserID,
		Template: template,
		Data: map[string]any{
			"plan_name":    server.PlanName,
			"hostname":     server.Hostname,
			"ip_address":   server.IPAddress,
			"username":     server.Username,
			"password":     server.Password,
			"ssh_port":     server.SSHPort,
			"panel_url":    server.PanelURL,
			"renewal_date": server.RenewalDate.Format("2006-01-02"),
		},
	})
}

// resolveInvoiceTx picks the invoice a staff action refers to: the given id,
// or else the server's most recent unpaid invoice.
func (s *Service) resolveInvoiceTx(ctx context.Context, tx *gorm.DB, server domain.Server, invoiceID string) (invoicedomain.Invoice, error) {
	if strings.TrimSpace(invoiceID) != "" {
		id, err := userservice.ParseID(invoiceID)
		if err != nil {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
		}
		return s.invoices.GetTx(ctx, tx, id)
	}

	inv, err := s.invoices.FindOpenRenewalTx(ctx, tx, server.ID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if inv == nil {
		inv, err = s.invoices.FindForOrderTx(ctx, tx, server.OrderID)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
	}
	if inv == nil {
		return invoicedomain.Invoice{}, domain.ErrNotOverdue
	}
	return *inv, nil
}

func belongsTo(inv invoicedomain.Invoice, server domain.Server) bool {
	if inv.ServerID != nil && *inv.ServerID == server.ID {
		return true
	}
	return inv.OrderID != nil && *inv.OrderID == server.OrderID
}

func periodStart(inv invoicedomain.Invoice) (time.Time, bool) {
	raw, ok := inv.Metadata[MetaPeriodStart].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func normalizeCredentials(c domain.Credentials) (domain.Credentials, error) {
	c.Hostname = strings.TrimSpace(c.Hostname)
	c.IPAddress = strings.TrimSpace(c.IPAddress)
	c.Username = strings.TrimSpace(c.Username)
	c.OS = strings.TrimSpace(c.OS)
	c.ControlPanel = strings.TrimSpace(c.ControlPanel)
	c.PanelURL = strings.TrimSpace(c.PanelURL)
	if c.Hostname == "" || c.IPAddress == "" || c.Username == "" || c.Password == "" {
		return domain.Credentials{}, domain.ErrInvalidCredentials
	}
	if c.SSHPort == 0 {
		c.SSHPort = defaultSSHPort
	}
	if c.SSHPort < 0 || c.SSHPort > 65535 {
		return domain.Credentials{}, domain.ErrInvalidCredentials
	}
	return c, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseID(value string) (snowflake.ID, error) {
	id, err := userservice.ParseID(value)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
