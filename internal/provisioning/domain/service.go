package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

// ProvisionPayment settles an unpaid order as part of provisioning.
type ProvisionPayment string

const (
	// ProvisionPaymentNone requires the order to be paid already.
	ProvisionPaymentNone ProvisionPayment = ""
	// ProvisionPaymentWallet debits the customer's wallet for the order.
	ProvisionPaymentWallet ProvisionPayment = "wallet"
	// ProvisionPaymentExternal records payment received outside the platform.
	ProvisionPaymentExternal ProvisionPayment = "external"
)

func (p ProvisionPayment) Valid() bool {
	switch p {
	case ProvisionPaymentNone, ProvisionPaymentWallet, ProvisionPaymentExternal:
		return true
	}
	return false
}

type ProvisionRequest struct {
	OrderID     string
	Credentials Credentials
	Payment     ProvisionPayment
}

type ControlAction string

const (
	ControlReboot    ControlAction = "reboot"
	ControlReinstall ControlAction = "reinstall"
)

func (a ControlAction) Valid() bool {
	return a == ControlReboot || a == ControlReinstall
}

type ControlRequest struct {
	UserID   snowflake.ID
	ServerID string
	Action   ControlAction
	OS       string
	Message  string
}

type ListServersRequest struct {
	ListFilter
	pagination.Pagination
}

type ListServersResponse struct {
	pagination.PageInfo
	Servers []Server `json:"servers"`
}

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (Server, error)

	// Suspend suspends an active server for an overdue unpaid invoice of
	// its own.
	Suspend(ctx context.Context, serverID string, invoiceID string) (Server, error)
	SuspendTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID, invoiceID snowflake.ID) (Server, error)

	// Unsuspend restores a suspended server and restarts its renewal period
	// from now.
	Unsuspend(ctx context.Context, serverID string) (Server, error)

	// Cancel ends a suspended server for an invoice overdue beyond the
	// cancellation grace window, and cancels its order and that invoice.
	Cancel(ctx context.Context, serverID string, invoiceID string, reason string) (Server, error)
	CancelTx(ctx context.Context, tx *gorm.DB, serverID snowflake.ID, invoiceID snowflake.ID, reason string) (Server, error)

	// ApplyRenewalPaymentTx advances the renewal date by one cycle for a paid
	// renewal invoice.
	ApplyRenewalPaymentTx(ctx context.Context, tx *gorm.DB, inv invoicedomain.Invoice) (Server, bool, error)
	AdvanceRenewalTx(ctx context.Context, tx *gorm.DB, server Server) (Server, error)

	UpdateCredentials(ctx context.Context, serverID string, creds Credentials) (Server, error)
	ResendCredentials(ctx context.Context, serverID string) error
	RequestControl(ctx context.Context, req ControlRequest) (snowflake.ID, error)

	Get(ctx context.Context, id string) (Server, error)
	GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Server, error)
	GetForUser(ctx context.Context, userID snowflake.ID, id string) (Server, error)
	FindByOrderTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*Server, error)
	List(ctx context.Context, req ListServersRequest) (ListServersResponse, error)
	ListDueForRenewal(ctx context.Context, before time.Time, after *pagination.Keyset, limit int) ([]Server, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)

	NotifySuspended(ctx context.Context, server Server, inv invoicedomain.Invoice)
	NotifyCancelled(ctx context.Context, server Server)
}

var (
	ErrInvalidID          = errors.New("invalid_server_id")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidPayment     = errors.New("invalid_provision_payment")
	ErrInvalidAction      = errors.New("invalid_control_action")
	ErrNotFound           = errors.New("server_not_found")
	ErrServerExists       = errors.New("server_already_provisioned")
	ErrOrderNotPaid       = errors.New("order_not_paid")
	ErrOrderNotPending    = errors.New("order_not_pending")
	ErrInvalidTransition  = errors.New("invalid_server_transition")
	ErrInvoiceMismatch    = errors.New("invoice_not_for_server")
	ErrNotOverdue         = errors.New("invoice_not_overdue")
	ErrSuspensionTooShort = errors.New("suspension_grace_not_elapsed")
)
