package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreditRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Description string
	Reference   string
}

type DebitRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Description string
	Reference   string
}

// AdjustRequest is a staff correction. A positive Amount credits the wallet,
// a negative one debits it.
type AdjustRequest struct {
	UserID snowflake.ID
	Amount int64
	Note   string
}

type ListTransactionsRequest struct {
	UserID snowflake.ID
	pagination.Pagination
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type TopUpInput struct {
	UserID           snowflake.ID
	Amount           int64
	PaymentMethod    TopUpMethod
	PaymentReference string
}

type ReviewTopUpRequest struct {
	ID         string
	Approve    bool
	Notes      string
	ReviewerID snowflake.ID
}

// Service is the wallet ledger. Every balance change is paired with exactly
// one Transaction in the same database transaction, and the balance never
// goes negative.
type Service interface {
	Credit(ctx context.Context, req CreditRequest) (Transaction, error)
	Debit(ctx context.Context, req DebitRequest) (Transaction, error)

	// CreditTx and DebitTx join the caller's transaction so the posting
	// commits or rolls back together with the caller's other writes.
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (Transaction, error)

	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	Adjust(ctx context.Context, req AdjustRequest) (Transaction, error)

	RequestTopUp(ctx context.Context, in TopUpInput) (TopUpRequest, error)
	ReviewTopUp(ctx context.Context, req ReviewTopUpRequest) (TopUpRequest, error)
	ListTopUps(ctx context.Context, filter TopUpFilter) ([]TopUpRequest, error)
}

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrNotFound             = errors.New("wallet_not_found")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidTopUpID       = errors.New("invalid_topup_id")
	ErrTopUpNotFound        = errors.New("topup_not_found")
	ErrTopUpAlreadyReviewed = errors.New("topup_already_reviewed")
)
