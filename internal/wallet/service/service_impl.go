package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/observability/metrics"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	"github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
		log:      p.Log.Named("wallet.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		notifier: notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Credit(ctx context.Context, req domain.CreditRequest) (domain.Transaction, error) {
	var txn domain.Transaction
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			txn, err = s.CreditTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) (domain.Transaction, error) {
	var txn domain.Transaction
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			txn, err = s.DebitTx(ctx, tx, req)
			return err
		})
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req domain.CreditRequest) (domain.Transaction, error) {
	if req.Amount <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	return s.post(ctx, tx, req.UserID, domain.TransactionTypeCredit, req.Amount, req.Description, req.Reference)
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req domain.DebitRequest) (domain.Transaction, error) {
	if req.Amount <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	return s.post(ctx, tx, req.UserID, domain.TransactionTypeDebit, req.Amount, req.Description, req.Reference)
}

// post moves the balance with a guarded update and records the ledger row in
// the same transaction. The guard rejects any change that would leave the
// balance negative, so concurrent debits cannot overdraw the wallet.
func (s *Service) post(ctx context.Context, tx *gorm.DB, userID snowflake.ID, typ domain.TransactionType, amount int64, description, reference string) (domain.Transaction, error) {
	if userID == 0 {
		return domain.Transaction{}, domain.ErrNotFound
	}
	delta := amount
	if typ == domain.TransactionTypeDebit {
		delta = -amount
	}

	now := s.clock.Now()
	applied, err := s.repo.ApplyDelta(ctx, tx, userID, delta, now)
	if err != nil {
		return domain.Transaction{}, err
	}
	balance, found, err := s.repo.Balance(ctx, tx, userID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !found {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if !applied {
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}

	txn := domain.Transaction{
		ID:           s.genID.Generate(),
		UserID:       userID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  strings.TrimSpace(description),
		Reference:    strings.TrimSpace(reference),
		CreatedAt:    now,
	}
	if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
		return domain.Transaction{}, err
	}

	s.metrics.RecordWalletPosting(ctx, string(typ))
	s.log.Info("wallet posting recorded",
		zap.String("user_id", userID.String()),
		zap.String("type", string(typ)),
		zap.Int64("amount", amount),
		zap.Int64("balance_after", balance),
		zap.String("reference", txn.Reference),
	)
	return txn, nil
}

func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	var (
		balance int64
		found   bool
	)
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		balance, found, err = s.repo.Balance(ctx, s.db, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, domain.ErrNotFound
	}
	return balance, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	offset, err := req.Pagination.Offset()
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	var items []*domain.Transaction
	err = db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListTransactions(ctx, s.db, req.UserID,
			option.WithOffset(offset),
			option.WithLimit(req.Pagination.Limit()+1),
		)
		return err
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination, offset)
	out := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListTransactionsResponse{PageInfo: pageInfo, Transactions: out}, nil
}

const defaultAdjustmentNote = "Admin adjustment"

func (s *Service) Adjust(ctx context.Context, req domain.AdjustRequest) (domain.Transaction, error) {
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = defaultAdjustmentNote
	}
	switch {
	case req.Amount > 0:
		return s.Credit(ctx, domain.CreditRequest{UserID: req.UserID, Amount: req.Amount, Description: note, Reference: "adjustment"})
	case req.Amount < 0:
		return s.Debit(ctx, domain.DebitRequest{UserID: req.UserID, Amount: -req.Amount, Description: note, Reference: "adjustment"})
	default:
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
}

func (s *Service) RequestTopUp(ctx context.Context, in domain.TopUpInput) (domain.TopUpRequest, error) {
	if in.Amount <= 0 {
		return domain.TopUpRequest{}, domain.ErrInvalidAmount
	}
	if !in.PaymentMethod.Valid() {
		return domain.TopUpRequest{}, domain.ErrInvalidPaymentMethod
	}

	now := s.clock.Now()
	req := domain.TopUpRequest{
		ID:               s.genID.Generate(),
		UserID:           in.UserID,
		Amount:           in.Amount,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: strings.TrimSpace(in.PaymentReference),
		Status:           domain.TopUpStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.repo.InsertTopUp(ctx, s.db, &req)
	})
	if err != nil {
		return domain.TopUpRequest{}, err
	}

	s.log.Info("topup requested",
		zap.String("topup_id", req.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.Int64("amount", req.Amount),
	)
	return req, nil
}

// ReviewTopUp settles a pending request. Approval credits the wallet in the
// same transaction that flips the status, so a request is credited at most
// once even when two reviewers race.
func (s *Service) ReviewTopUp(ctx context.Context, req domain.ReviewTopUpRequest) (domain.TopUpRequest, error) {
	id, err := userservice.ParseID(req.ID)
	if err != nil {
		return domain.TopUpRequest{}, domain.ErrInvalidTopUpID
	}

	status := domain.TopUpStatusRejected
	if req.Approve {
		status = domain.TopUpStatusApproved
	}
	notes := strings.TrimSpace(req.Notes)

	var item *domain.TopUpRequest
	err = db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.repo.FindTopUp(ctx, tx, id)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrTopUpNotFound
			}

			ok, err := s.repo.ReviewTopUp(ctx, tx, id, status, notes, req.ReviewerID, s.clock.Now())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrTopUpAlreadyReviewed
			}

			if req.Approve {
				_, err := s.CreditTx(ctx, tx, domain.CreditRequest{
					UserID:      current.UserID,
					Amount:      current.Amount,
					Description: fmt.Sprintf("Top-up via %s", current.PaymentMethod),
					Reference:   "topup:" + current.ID.String(),
				})
				if err != nil {
					return err
				}
			}

			item, err = s.repo.FindTopUp(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return domain.TopUpRequest{}, err
	}

	s.log.Info("topup reviewed",
		zap.String("topup_id", item.ID.String()),
		zap.String("status", string(item.Status)),
		zap.String("reviewer_id", req.ReviewerID.String()),
	)
	s.notifier.Notify(ctx, notification.Message{
		UserID:   item.UserID,
		Template: notification.TemplateTopUpReviewed,
		Data: map[string]any{
			"amount": item.Amount,
			"status": string(item.Status),
			"notes":  item.AdminNotes,
		},
	})
	return *item, nil
}

func (s *Service) ListTopUps(ctx context.Context, filter domain.TopUpFilter) ([]domain.TopUpRequest, error) {
	var items []*domain.TopUpRequest
	err := db.Retry(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListTopUps(ctx, s.db, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.TopUpRequest, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}
