package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
)

type WalletPaymentResult struct {
	Invoice     invoicedomain.Invoice    `json:"invoice"`
	Transaction walletdomain.Transaction `json:"transaction"`
	Payment     Payment                  `json:"payment"`
}

// SettleRequest is a staff decision on an invoice: paid records payment
// received outside the platform, unpaid rejects a submitted proof, and
// cancelled voids the invoice.
type SettleRequest struct {
	InvoiceID string
	Status    invoicedomain.Status
	Method    Method
	Reference string
	Reason    string
	StaffID   snowflake.ID
}

// Service settles invoices and carries the consequences of a payment to the
// order or server the invoice belongs to, inside the same transaction.
type Service interface {
	PayWithWallet(ctx context.Context, userID snowflake.ID, invoiceID string) (WalletPaymentResult, error)
	Settle(ctx context.Context, req SettleRequest) (invoicedomain.Invoice, error)
	FindByInvoice(ctx context.Context, invoiceID snowflake.ID) (*Payment, error)
	ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]Payment, error)
}

var (
	ErrInvalidStatus = errors.New("invalid_settlement_status")
	ErrInvalidMethod = errors.New("invalid_payment_method")
	ErrNotPayable    = errors.New("invoice_not_payable")
	ErrAlreadyPaid   = errors.New("invoice_already_paid")
)
