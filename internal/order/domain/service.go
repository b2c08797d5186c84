package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type PlaceOrderRequest struct {
	UserID        snowflake.ID
	PlanID        string
	BillingCycle  pricing.BillingCycle
	DataCenterID  string
	AddOnIDs      []string
	OS            string
	ControlPanel  string
	PaymentMethod PaymentMethod
	Notes         string
}

type PlaceOrderResult struct {
	Order   Order                 `json:"order"`
	Invoice invoicedomain.Invoice `json:"invoice"`
}

type ListOrdersRequest struct {
	ListFilter
	pagination.Pagination
}

type ListOrdersResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type Service interface {
	// PlaceOrder prices the order and records it together with its invoice.
	// Wallet orders are debited in the same transaction; when the balance
	// does not cover the amount nothing is persisted.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)

	Get(ctx context.Context, id string) (Order, error)
	GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Order, error)
	GetForUser(ctx context.Context, userID snowflake.ID, id string) (Order, error)
	List(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)

	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (Order, error)
	UpdatePaymentStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, status PaymentStatus, reference string) (Order, bool, error)
	MarkProvisionedTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Order, error)
	Cancel(ctx context.Context, id string, reason string) (Order, error)
	CancelTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (Order, bool, error)
	Refund(ctx context.Context, id string) (Order, error)
}

var (
	ErrInvalidID            = errors.New("invalid_order_id")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidStatus        = errors.New("invalid_order_status")
	ErrNotFound             = errors.New("order_not_found")
	ErrInvalidTransition    = errors.New("invalid_order_transition")
	ErrNotPaid              = errors.New("order_not_paid")
	ErrOrderActive          = errors.New("order_active")
)
