package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/cloudnest/internal/invoice/service"
	"github.com/smallbiznis/cloudnest/internal/notification"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/payment/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	Invoices     invoicedomain.Service
	Orders       orderdomain.Service
	Provisioning provisioningdomain.Service
	Wallet       walletdomain.Service
	Notifier     notification.Notifier `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	invoices     invoicedomain.Service
	orders       orderdomain.Service
	provisioning provisioningdomain.Service
	wallet       walletdomain.Service
	notifier     notification.Notifier
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		invoices:     p.Invoices,
		orders:       p.Orders,
		provisioning: p.Provisioning,
		wallet:       p.Wallet,
		notifier:     notifier,
	}
}

// PayWithWallet debits the invoice amount from the owner's wallet and marks
// the invoice paid. Either both happen or neither does.
func (s *Service) PayWithWallet(ctx context.Context, userID snowflake.ID, invoiceID string) (domain.WalletPaymentResult, error) {
	id, err := parseInvoiceID(invoiceID)
	if err != nil {
		return domain.WalletPaymentResult{}, err
	}

	var (
		result   domain.WalletPaymentResult
		restored *provisioningdomain.Server
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		restored = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := s.invoices.GetTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if inv.UserID != userID {
				return invoicedomain.ErrNotFound
			}
			if inv.Status == invoicedomain.StatusPaid {
				return domain.ErrAlreadyPaid
			}
			if !inv.Status.Open() {
				return domain.ErrNotPayable
			}

			txn, err := s.wallet.DebitTx(ctx, tx, walletdomain.DebitRequest{
				UserID:      userID,
				Amount:      inv.Amount,
				Description: "Invoice payment: " + inv.Number,
				Reference:   "invoice:" + inv.Number,
			})
			if err != nil {
				return err
			}

			paid, changed, err := s.invoices.MarkPaidTx(ctx, tx, inv.ID, string(domain.MethodWallet))
			if err != nil {
				return err
			}
			if !changed {
				return domain.ErrAlreadyPaid
			}

			payment, err := s.recordTx(ctx, tx, paid, domain.MethodWallet, txn.ID.String(), nil)
			if err != nil {
				return err
			}
			restored, err = s.applyPaidTx(ctx, tx, paid, string(domain.MethodWallet))
			if err != nil {
				return err
			}

			result = domain.WalletPaymentResult{Invoice: paid, Transaction: txn, Payment: payment}
			return nil
		})
	})
	if err != nil {
		return domain.WalletPaymentResult{}, err
	}

	s.log.Info("invoice paid from wallet",
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("amount", result.Invoice.Amount),
	)
	s.notifyPaid(ctx, result.Invoice, restored)
	return result, nil
}

// Settle applies a staff decision to an invoice. Marking a paid invoice paid
// again changes nothing and sends nothing.
func (s *Service) Settle(ctx context.Context, req domain.SettleRequest) (invoicedomain.Invoice, error) {
	id, err := parseInvoiceID(req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	method := req.Method
	if method == "" {
		method = domain.MethodManual
	}
	switch req.Status {
	case invoicedomain.StatusPaid:
		if !validSettlementMethod(method) {
			return invoicedomain.Invoice{}, domain.ErrInvalidMethod
		}
	case invoicedomain.StatusCancelled, invoicedomain.StatusUnpaid:
	default:
		return invoicedomain.Invoice{}, domain.ErrInvalidStatus
	}

	var (
		inv      invoicedomain.Invoice
		changed  bool
		restored *provisioningdomain.Server
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		restored = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			switch req.Status {
			case invoicedomain.StatusPaid:
				inv, changed, err = s.invoices.MarkPaidTx(ctx, tx, id, req.Reference)
				if err != nil || !changed {
					return err
				}
				var staff *snowflake.ID
				if req.StaffID != 0 {
					staff = &req.StaffID
				}
				if _, err := s.recordTx(ctx, tx, inv, method, req.Reference, staff); err != nil {
					return err
				}
				restored, err = s.applyPaidTx(ctx, tx, inv, req.Reference)
				return err

			case invoicedomain.StatusCancelled:
				inv, changed, err = s.invoices.MarkCancelledTx(ctx, tx, id, req.Reason)
				if err != nil || !changed {
					return err
				}
				return s.cancelUnpaidOrderTx(ctx, tx, inv, req.Reason)

			default:
				inv, err = s.invoices.MarkUnpaidTx(ctx, tx, id, req.Reason)
				changed = err == nil
				return err
			}
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !changed {
		return inv, nil
	}

	s.log.Info("invoice settled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("status", string(inv.Status)),
		zap.String("staff_id", req.StaffID.String()),
	)
	if inv.Status == invoicedomain.StatusPaid {
		s.notifyPaid(ctx, inv, restored)
	}
	return inv, nil
}

func (s *Service) FindByInvoice(ctx context.Context, invoiceID snowflake.ID) (*domain.Payment, error) {
	var payment *domain.Payment
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.repo.FindByInvoice(ctx, s.db, invoiceID)
		return err
	})
	return payment, err
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Payment, error) {
	var items []*domain.Payment
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListByUser(ctx, s.db, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) recordTx(ctx context.Context, tx *gorm.DB, inv invoicedomain.Invoice, method domain.Method, reference string, staff *snowflake.ID) (domain.Payment, error) {
	payment := domain.Payment{
		ID:         s.genID.Generate(),
		InvoiceID:  inv.ID,
		UserID:     inv.UserID,
		Method:     method,
		Amount:     inv.Amount,
		Reference:  strings.TrimSpace(reference),
		RecordedBy: staff,
		Metadata:   datatypes.JSONMap{"invoice_number": inv.Number, "kind": string(inv.Kind)},
		CreatedAt:  s.clock.Now(),
	}
	inserted, err := s.repo.Insert(ctx, tx, &payment)
	if err != nil {
		return domain.Payment{}, err
	}
	if !inserted {
		return domain.Payment{}, domain.ErrAlreadyPaid
	}
	return payment, nil
}

// applyPaidTx carries a freshly paid invoice over to what it pays for. It
// returns the server when the payment lifted a suspension.
func (s *Service) applyPaidTx(ctx context.Context, tx *gorm.DB, inv invoicedomain.Invoice, reference string) (*provisioningdomain.Server, error) {
	switch inv.Kind {
	case invoicedomain.KindOrder:
		if inv.OrderID == nil {
			return nil, nil
		}
		_, _, err := s.orders.UpdatePaymentStatusTx(ctx, tx, *inv.OrderID, orderdomain.PaymentStatusPaid, reference)
		return nil, err

	case invoicedomain.KindRenewal:
		if inv.ServerID == nil {
			return nil, nil
		}
		before, err := s.provisioning.GetTx(ctx, tx, *inv.ServerID)
		if err != nil {
			return nil, err
		}
		server, applied, err := s.provisioning.ApplyRenewalPaymentTx(ctx, tx, inv)
		if err != nil {
			return nil, err
		}
		if applied && before.Status == provisioningdomain.StatusSuspended && server.Status == provisioningdomain.StatusActive {
			return &server, nil
		}
	}
	return nil, nil
}

// cancelUnpaidOrderTx drops an order nobody paid for once its only invoice
// is voided.
func (s *Service) cancelUnpaidOrderTx(ctx context.Context, tx *gorm.DB, inv invoicedomain.Invoice, reason string) error {
	if inv.Kind != invoicedomain.KindOrder || inv.OrderID == nil {
		return nil
	}
	order, err := s.orders.GetTx(ctx, tx, *inv.OrderID)
	if err != nil {
		return err
	}
	if order.Status != orderdomain.StatusPending || order.PaymentStatus == orderdomain.PaymentStatusPaid {
		return nil
	}
	if reason == "" {
		reason = "invoice cancelled"
	}
	_, _, err = s.orders.CancelTx(ctx, tx, order.ID, reason)
	return err
}

func (s *Service) notifyPaid(ctx context.Context, inv invoicedomain.Invoice, restored *provisioningdomain.Server) {
	s.notifier.Notify(ctx, notification.Message{
		UserID:   inv.UserID,
		Template: notification.TemplateInvoicePaid,
		Data:     invoiceservice.NotificationData(inv),
	})
	if restored != nil {
		s.notifier.Notify(ctx, notification.Message{
			UserID:   restored.UserID,
			Template: notification.TemplateServerUnsuspended,
			Data: map[string]any{
				"hostname":     restored.Hostname,
				"renewal_date": restored.RenewalDate.Format("2006-01-02"),
			},
		})
	}
}

func validSettlementMethod(m domain.Method) bool {
	switch m {
	case domain.MethodBankTransfer, domain.MethodCrypto, domain.MethodManual:
		return true
	}
	return false
}

func parseInvoiceID(value string) (snowflake.ID, error) {
	id, err := userservice.ParseID(value)
	if err != nil {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
