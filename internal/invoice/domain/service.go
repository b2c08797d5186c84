package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	UserID      snowflake.ID
	OrderID     *snowflake.ID
	ServerID    *snowflake.ID
	Kind        Kind
	Amount      int64
	Description string
	DueInDays   int
	// DueDate overrides DueInDays when set.
	DueDate *time.Time
	// Paid creates the invoice already settled, for payments taken at
	// creation time such as wallet orders and auto-renewals.
	Paid             bool
	PaymentReference string
	IdempotencyKey   string
	Metadata         map[string]any
}

type ListInvoicesRequest struct {
	ListFilter
	pagination.Pagination
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Invoice, error)
	CreateTx(ctx context.Context, tx *gorm.DB, req CreateRequest) (Invoice, error)

	Get(ctx context.Context, id string) (Invoice, error)
	GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Invoice, error)
	GetForUser(ctx context.Context, userID snowflake.ID, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)

	// MarkPaid settles the invoice. Paying an already paid invoice is a
	// no-op: the invoice is returned unchanged and changed is false.
	MarkPaid(ctx context.Context, id string, reference string) (Invoice, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reference string) (inv Invoice, changed bool, err error)
	MarkCancelled(ctx context.Context, id string, reason string) (Invoice, error)
	MarkCancelledTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (inv Invoice, changed bool, err error)
	MarkUnpaidTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (Invoice, error)

	SubmitPaymentProof(ctx context.Context, userID snowflake.ID, id string, reference string) (Invoice, error)

	FindOpenRenewalTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID) (*Invoice, error)
	FindForOrderTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	ListOverdue(ctx context.Context, dueBefore time.Time, after *pagination.Keyset, limit int) ([]Invoice, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Revenue(ctx context.Context) (int64, error)
}

var (
	ErrInvalidID         = errors.New("invalid_invoice_id")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidStatus     = errors.New("invalid_invoice_status")
	ErrInvalidReference  = errors.New("invalid_payment_reference")
	ErrNotFound          = errors.New("invoice_not_found")
	ErrDuplicate         = errors.New("invoice_already_exists")
	ErrInvalidTransition = errors.New("invalid_invoice_transition")
)
