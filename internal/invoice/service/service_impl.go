package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/observability/metrics"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
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

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Notifier notification.Notifier `optional:"true"`
	Metrics  *metrics.Metrics      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	notifier notification.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		notifier: notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Invoice, error) {
	var inv domain.Invoice
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			inv, err = s.CreateTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	template := notification.TemplateInvoiceCreated
	if inv.Status == domain.StatusPaid {
		template = notification.TemplateInvoicePaid
	}
	s.notifier.Notify(ctx, notification.Message{
		UserID:   inv.UserID,
		Template: template,
		Data:     NotificationData(inv),
	})
	return inv, nil
}

// CreateTx inserts the invoice inside tx. A second invoice with the same
// idempotency key fails with ErrDuplicate and leaves tx unusable on
// postgres, so callers roll the whole transaction back.
func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (domain.Invoice, error) {
	if req.Amount <= 0 {
		return domain.Invoice{}, domain.ErrInvalidAmount
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.KindOrder
	}

	now := s.clock.Now()
	due := now.AddDate(0, 0, req.DueInDays)
	if req.DueDate != nil {
		due = req.DueDate.UTC()
	}

	id := s.genID.Generate()
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = "invoice:" + id.String()
	}

	inv := domain.Invoice{
		ID:             id,
		Number:         NewNumber(now),
		UserID:         req.UserID,
		OrderID:        req.OrderID,
		ServerID:       req.ServerID,
		Kind:           kind,
		Amount:         req.Amount,
		Status:         domain.StatusUnpaid,
		Description:    strings.TrimSpace(req.Description),
		DueDate:        due,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(req.Metadata) > 0 {
		inv.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if req.Paid {
		inv.Status = domain.StatusPaid
		inv.PaidDate = &now
		inv.PaymentReference = strings.TrimSpace(req.PaymentReference)
	}

	if err := s.repo.Insert(ctx, tx, &inv); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, domain.ErrDuplicate
		}
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceTransition(ctx, string(inv.Status))
	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("user_id", inv.UserID.String()),
		zap.String("kind", string(inv.Kind)),
		zap.String("status", string(inv.Status)),
		zap.Int64("amount", inv.Amount),
	)
	return inv, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.GetTx(ctx, s.db, invoiceID)
		return err
	})
	return inv, err
}

func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Invoice, error) {
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *item, nil
}

// GetForUser hides invoices owned by someone else behind ErrNotFound.
func (s *Service) GetForUser(ctx context.Context, userID snowflake.ID, id string) (domain.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.UserID != userID {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoicesRequest) (domain.ListInvoicesResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListInvoicesResponse{}, domain.ErrInvalidStatus
	}
	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}

	var items []*domain.Invoice
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx, s.db, req.ListFilter,
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *item)
	}
	return domain.ListInvoicesResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) MarkPaid(ctx context.Context, id string, reference string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}

	var (
		inv     domain.Invoice
		changed bool
	)
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			inv, changed, err = s.MarkPaidTx(ctx, tx, invoiceID, reference)
			return err
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if changed {
		s.notifier.Notify(ctx, notification.Message{
			UserID:   inv.UserID,
			Template: notification.TemplateInvoicePaid,
			Data:     NotificationData(inv),
		})
	}
	return inv, nil
}

func (s *Service) MarkPaidTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reference string) (domain.Invoice, bool, error) {
	now := s.clock.Now()
	fields := map[string]any{
		"paid_date":  now,
		"updated_at": now,
	}
	if ref := strings.TrimSpace(reference); ref != "" {
		fields["payment_reference"] = ref
	}
	return s.transition(ctx, tx, id, domain.StatusPaid, fields)
}

func (s *Service) MarkCancelled(ctx context.Context, id string, reason string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}

	var inv domain.Invoice
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			inv, _, err = s.MarkCancelledTx(ctx, tx, invoiceID, reason)
			return err
		})
	})
	return inv, err
}

func (s *Service) MarkCancelledTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (domain.Invoice, bool, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	meta := datatypes.JSONMap{}
	for k, v := range current.Metadata {
		meta[k] = v
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		meta["cancel_reason"] = reason
	}
	return s.transition(ctx, tx, id, domain.StatusCancelled, map[string]any{
		"metadata":   meta,
		"updated_at": s.clock.Now(),
	})
}

// MarkUnpaidTx returns a pending invoice to unpaid when staff reject the
// submitted payment proof.
func (s *Service) MarkUnpaidTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (domain.Invoice, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	meta := datatypes.JSONMap{}
	for k, v := range current.Metadata {
		meta[k] = v
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		meta["proof_rejected_reason"] = reason
	}
	inv, changed, err := s.transition(ctx, tx, id, domain.StatusUnpaid, map[string]any{
		"payment_reference": "",
		"metadata":          meta,
		"updated_at":        s.clock.Now(),
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if !changed {
		return domain.Invoice{}, domain.ErrInvalidTransition
	}
	return inv, nil
}

func (s *Service) SubmitPaymentProof(ctx context.Context, userID snowflake.ID, id string, reference string) (domain.Invoice, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.Invoice{}, domain.ErrInvalidReference
	}
	current, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if current.Status != domain.StatusUnpaid {
		return domain.Invoice{}, domain.ErrInvalidTransition
	}

	var inv domain.Invoice
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var (
				changed bool
				err     error
			)
			inv, changed, err = s.transition(ctx, tx, current.ID, domain.StatusPending, map[string]any{
				"payment_reference": reference,
				"updated_at":        s.clock.Now(),
			})
			if err == nil && !changed {
				err = domain.ErrInvalidTransition
			}
			return err
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// transition applies a guarded status change. Re-entering the current status
// is reported as unchanged instead of failing.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, to domain.Status, fields map[string]any) (domain.Invoice, bool, error) {
	current, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	if current.Status == to {
		return current, false, nil
	}
	if !domain.CanTransition(current.Status, to) {
		return domain.Invoice{}, false, domain.ErrInvalidTransition
	}

	ok, err := s.repo.Transition(ctx, tx, id, domain.Sources(to), to, fields)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	if !ok {
		return domain.Invoice{}, false, domain.ErrInvalidTransition
	}

	updated, err := s.GetTx(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, false, err
	}

	s.metrics.RecordInvoiceTransition(ctx, string(to))
	s.log.Info("invoice status changed",
		zap.String("invoice_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
	)
	return updated, true, nil
}

// FindOpenRenewalTx returns the unpaid or pending renewal invoice of a
// server, if any.
func (s *Service) FindOpenRenewalTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID) (*domain.Invoice, error) {
	return s.repo.FindLatest(ctx, tx, domain.ListFilter{ServerID: serverID, Kind: domain.KindRenewal},
		[]domain.Status{domain.StatusUnpaid, domain.StatusPending})
}

func (s *Service) FindForOrderTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*domain.Invoice, error) {
	return s.repo.FindLatest(ctx, tx, domain.ListFilter{OrderID: orderID, Kind: domain.KindOrder}, nil)
}

func (s *Service) ListOverdue(ctx context.Context, dueBefore time.Time, after *pagination.Keyset, limit int) ([]domain.Invoice, error) {
	var items []*domain.Invoice
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListOverdue(ctx, s.db, dueBefore, after, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Invoice, 0, len(items))
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

func (s *Service) Revenue(ctx context.Context) (int64, error) {
	var total int64
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.repo.SumPaid(ctx, s.db)
		return err
	})
	return total, err
}

// NewNumber formats a human-facing invoice number: INV-YYYYMMDD-XXXXXXXX.
// The suffix is the random tail of a ULID.
func NewNumber(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), id[len(id)-8:])
}

// NotificationData is the template payload shared by invoice emails.
func NotificationData(inv domain.Invoice) map[string]any {
	return map[string]any{
		"invoice_number": inv.Number,
		"amount":         inv.Amount,
		"description":    inv.Description,
		"due_date":       inv.DueDate.Format("2006-01-02"),
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := userservice.ParseID(value)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
