package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/observability/metrics"
	"github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Catalog   catalogdomain.Service
	Invoices  invoicedomain.Service
	Wallet    walletdomain.Service
	Lifecycle *config.LifecycleConfigHolder
	Notifier  notification.Notifier `optional:"true"`
	Metrics   *metrics.Metrics      `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	catalog   catalogdomain.Service
	invoices  invoicedomain.Service
	wallet    walletdomain.Service
	lifecycle *config.LifecycleConfigHolder
	notifier  notification.Notifier
	metrics   *metrics.Metrics
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
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		catalog:   p.Catalog,
		invoices:  p.Invoices,
		wallet:    p.Wallet,
		lifecycle: lifecycle,
		notifier:  notifier,
		metrics:   p.Metrics,
	}
}

func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	if req.UserID == 0 {
		return domain.PlaceOrderResult{}, userdomain.ErrInvalidID
	}
	if !req.PaymentMethod.Valid() {
		return domain.PlaceOrderResult{}, domain.ErrInvalidPaymentMethod
	}
	if !req.BillingCycle.ValidOrderCycle() {
		return domain.PlaceOrderResult{}, pricing.ErrInvalidBillingCycle
	}

	plan, err := s.catalog.GetPlan(ctx, req.PlanID, true)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	var dataCenterID *snowflake.ID
	if strings.TrimSpace(req.DataCenterID) != "" {
		dc, err := s.catalog.GetDataCenter(ctx, req.DataCenterID, true)
		if err != nil {
			return domain.PlaceOrderResult{}, err
		}
		dataCenterID = &dc.ID
	}
	addOns, err := s.catalog.ResolveAddOns(ctx, req.AddOnIDs)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}

	prices := make([]pricing.AddOnPrice, 0, len(addOns))
	addOnIDs := make([]string, 0, len(addOns))
	for _, addOn := range addOns {
		prices = append(prices, addOn.PriceInput())
		addOnIDs = append(addOnIDs, addOn.ID.String())
	}
	amount, err := pricing.ComputeOrderTotal(plan.Prices(), req.BillingCycle, prices)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if amount <= 0 {
		return domain.PlaceOrderResult{}, pricing.ErrInvalidPrice
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		DataCenterID:  dataCenterID,
		BillingCycle:  req.BillingCycle,
		OS:            strings.TrimSpace(req.OS),
		ControlPanel:  strings.TrimSpace(req.ControlPanel),
		AddOnIDs:      datatypes.JSONSlice[string](addOnIDs),
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.StatusPending,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	paidByWallet := req.PaymentMethod == domain.PaymentMethodWallet
	if paidByWallet {
		order.PaymentStatus = domain.PaymentStatusPaid
	}
	description := fmt.Sprintf("%s (%s)", plan.Name, req.BillingCycle)

	var inv invoicedomain.Invoice
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if paidByWallet {
				if _, err := s.wallet.DebitTx(ctx, tx, walletdomain.DebitRequest{
					UserID:      req.UserID,
					Amount:      amount,
					Description: "Order payment: " + description,
					Reference:   "order:" + order.ID.String(),
				}); err != nil {
					return err
				}
			}

			if err := s.repo.Insert(ctx, tx, &order); err != nil {
				return err
			}

			invReq := invoicedomain.CreateRequest{
				UserID:         req.UserID,
				OrderID:        &order.ID,
				Kind:           invoicedomain.KindOrder,
				Amount:         amount,
				Description:    description,
				DueInDays:      s.lifecycle.Get().InvoiceDueDays,
				IdempotencyKey: "order:" + order.ID.String(),
				Metadata:       map[string]any{"payment_method": string(req.PaymentMethod)},
			}
			if paidByWallet {
				invReq.Description = description + " - paid via wallet"
				invReq.Paid = true
				invReq.PaymentReference = "wallet"
			}
			var err error
			inv, err = s.invoices.CreateTx(ctx, tx, invReq)
			return err
		})
	})
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}

	s.metrics.RecordOrderPlaced(ctx, string(order.PaymentMethod))
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("plan_id", order.PlanID.String()),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("amount", order.Amount),
	)
	s.notifier.Notify(ctx, notification.Message{
		UserID:   order.UserID,
		Template: notification.TemplateOrderPlaced,
		Data: map[string]any{
			"order_id":       order.ID.String(),
			"plan_name":      order.PlanName,
			"billing_cycle":  string(order.BillingCycle),
			"amount":         order.Amount,
			"payment_method": string(order.PaymentMethod),
			"paid":           paidByWallet,
			"invoice_number": inv.Number,
			"due_date":       inv.DueDate.Format("2006-01-02"),
		},
	})
	return domain.PlaceOrderResult{Order: order, Invoice: inv}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.GetTx(ctx, s.db, orderID)
		return err
	})
	return order, err
}

func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Order, error) {
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if item == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetForUser(ctx context.Context, userID snowflake.ID, id string) (domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOrdersRequest) (domain.ListOrdersResponse, error) {
	if req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		return domain.ListOrdersResponse{}, domain.ErrInvalidStatus
	}
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListOrdersResponse{}, domain.ErrInvalidStatus
	}
	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}

	var items []*domain.Order
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx, s.db, req.ListFilter,
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	orders := make([]domain.Order, 0, len(items))
	for _, item := range items {
		orders = append(orders, *item)
	}
	return domain.ListOrdersResponse{PageInfo: pageInfo, Orders: orders}, nil
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

// UpdatePaymentStatus is the staff payment confirmation. Refunds go through
// Refund so the wallet is credited.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	if status == domain.PaymentStatusRefunded {
		return s.Refund(ctx, id)
	}
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}

	var (
		order   domain.Order
		changed bool
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			order, changed, err = s.UpdatePaymentStatusTx(ctx, tx, orderID, status, "staff confirmation")
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.notifyUpdated(ctx, order)
	}
	return order, nil
}

// UpdatePaymentStatusTx moves the payment status inside tx. Marking an order
// paid also settles its open order invoice.
func (s *Service) UpdatePaymentStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.PaymentStatus, reference string) (domain.Order, bool, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	if current.PaymentStatus == status {
		return current, false, nil
	}
	if !domain.CanTransitionPayment(current.PaymentStatus, status) {
		return domain.Order{}, false, domain.ErrInvalidTransition
	}

	ok, err := s.repo.TransitionPayment(ctx, tx, id, domain.PaymentSources(status), status, s.clock.Now())
	if err != nil {
		return domain.Order{}, false, err
	}
	if !ok {
		return domain.Order{}, false, domain.ErrInvalidTransition
	}

	if status == domain.PaymentStatusPaid {
		inv, err := s.invoices.FindForOrderTx(ctx, tx, id)
		if err != nil {
			return domain.Order{}, false, err
		}
		if inv != nil && inv.Status.Open() {
			if _, _, err := s.invoices.MarkPaidTx(ctx, tx, inv.ID, reference); err != nil {
				return domain.Order{}, false, err
			}
		}
	}

	order, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	s.log.Info("order payment status changed",
		zap.String("order_id", id.String()),
		zap.String("from", string(current.PaymentStatus)),
		zap.String("to", string(status)),
	)
	return order, true, nil
}

// MarkProvisionedTx activates a paid order once its server exists.
func (s *Service) MarkProvisionedTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Order, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if current.PaymentStatus != domain.PaymentStatusPaid {
		return domain.Order{}, domain.ErrNotPaid
	}
	if !domain.CanTransitionStatus(current.Status, domain.StatusActive) {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	ok, err := s.repo.TransitionStatus(ctx, tx, id, domain.StatusSources(domain.StatusActive), domain.StatusActive, map[string]any{
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	return s.GetTx(ctx, tx, id)
}

// Cancel is the staff cancellation. Orders with a live server are cancelled
// through the server instead.
func (s *Service) Cancel(ctx context.Context, id string, reason string) (domain.Order, error) {
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}

	var (
		order   domain.Order
		changed bool
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.GetTx(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if current.Status == domain.StatusActive {
				return domain.ErrOrderActive
			}
			order, changed, err = s.CancelTx(ctx, tx, orderID, reason)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.notifyUpdated(ctx, order)
	}
	return order, nil
}

// CancelTx cancels the order and any invoice of it still owed. Cancelling a
// cancelled order is a no-op.
func (s *Service) CancelTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (domain.Order, bool, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	if current.Status == domain.StatusCancelled {
		return current, false, nil
	}

	ok, err := s.repo.TransitionStatus(ctx, tx, id, domain.StatusSources(domain.StatusCancelled), domain.StatusCancelled, map[string]any{
		"cancel_reason": strings.TrimSpace(reason),
		"updated_at":    s.clock.Now(),
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	if !ok {
		return domain.Order{}, false, domain.ErrInvalidTransition
	}

	inv, err := s.invoices.FindForOrderTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	if inv != nil && inv.Status.Open() {
		if _, _, err := s.invoices.MarkCancelledTx(ctx, tx, inv.ID, reason); err != nil {
			return domain.Order{}, false, err
		}
	}

	order, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, false, err
	}
	s.log.Info("order cancelled",
		zap.String("order_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("reason", reason),
	)
	return order, true, nil
}

// Refund returns a paid order's amount to the customer's wallet and cancels
// the order. Active orders must have their server cancelled first.
func (s *Service) Refund(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.GetTx(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if current.Status == domain.StatusActive {
				return domain.ErrOrderActive
			}
			if current.PaymentStatus != domain.PaymentStatusPaid {
				return domain.ErrNotPaid
			}

			ok, err := s.repo.TransitionPayment(ctx, tx, orderID, []domain.PaymentStatus{domain.PaymentStatusPaid}, domain.PaymentStatusRefunded, s.clock.Now())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrInvalidTransition
			}

			if _, err := s.wallet.CreditTx(ctx, tx, walletdomain.CreditRequest{
				UserID:      current.UserID,
				Amount:      current.Amount,
				Description: fmt.Sprintf("Refund: %s (%s)", current.PlanName, current.BillingCycle),
				Reference:   "refund:order:" + current.ID.String(),
			}); err != nil {
				return err
			}

			if _, _, err := s.CancelTx(ctx, tx, orderID, "refunded"); err != nil {
				return err
			}
			order, err = s.GetTx(ctx, tx, orderID)
			return err
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order refunded",
		zap.String("order_id", order.ID.String()),
		zap.Int64("amount", order.Amount),
	)
	s.notifyUpdated(ctx, order)
	return order, nil
}

func (s *Service) notifyUpdated(ctx context.Context, order domain.Order) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   order.UserID,
		Template: notification.TemplateOrderUpdated,
		Data: map[string]any{
			"order_id":       order.ID.String(),
			"payment_status": string(order.PaymentStatus),
			"order_status":   string(order.Status),
		},
	})
}

func parseID(value string) (snowflake.ID, error) {
	id, err := userservice.ParseID(value)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
