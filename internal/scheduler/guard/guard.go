// Package guard holds the pure preconditions the renewal sweep checks before
// it opens a transaction for a candidate.
package guard

import (
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
)

var (
	ErrServerNotActive     = errors.New("server_not_active")
	ErrServerNotSuspended  = errors.New("server_not_suspended")
	ErrNotDueForRenewal    = errors.New("server_not_due_for_renewal")
	ErrInvoiceNotOverdue   = errors.New("invoice_not_overdue")
	ErrSuspensionTooRecent = errors.New("suspension_too_recent")
)

const day = 24 * time.Hour

// EnsureServerCanRenew passes for active servers whose renewal date falls
// within the lead window.
func EnsureServerCanRenew(server provisioningdomain.Server, now time.Time, leadDays int) error {
	if server.Status != provisioningdomain.StatusActive {
		return ErrServerNotActive
	}
	if server.RenewalDate.After(now.AddDate(0, 0, leadDays)) {
		return ErrNotDueForRenewal
	}
	return nil
}

func EnsureCanSuspend(server provisioningdomain.Server, inv invoicedomain.Invoice, now time.Time, graceDays int) error {
	if server.Status != provisioningdomain.StatusActive {
		return ErrServerNotActive
	}
	if !inv.Overdue(now, time.Duration(graceDays)*day) {
		return ErrInvoiceNotOverdue
	}
	return nil
}

// EnsureCanCancel requires the invoice to be overdue past the cancellation
// window and the server to have been suspended for the gap between the
// suspension and cancellation windows.
func EnsureCanCancel(server provisioningdomain.Server, inv invoicedomain.Invoice, now time.Time, suspendGraceDays, cancelGraceDays int) error {
	if server.Status != provisioningdomain.StatusSuspended {
		return ErrServerNotSuspended
	}
	if !inv.Overdue(now, time.Duration(cancelGraceDays)*day) {
		return ErrInvoiceNotOverdue
	}
	minSuspension := time.Duration(cancelGraceDays-suspendGraceDays) * day
	if server.SuspendedAt == nil || now.Sub(*server.SuspendedAt) < minSuspension {
		return ErrSuspensionTooRecent
	}
	return nil
}

// Reason maps a guard error to a short label for deferred-work metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrServerNotActive):
		return "server_not_active"
	case errors.Is(err, ErrServerNotSuspended):
		return "server_not_suspended"
	case errors.Is(err, ErrNotDueForRenewal):
		return "not_due"
	case errors.Is(err, ErrInvoiceNotOverdue):
		return "not_overdue"
	case errors.Is(err, ErrSuspensionTooRecent):
		return "suspension_too_recent"
	}
	return ""
}
