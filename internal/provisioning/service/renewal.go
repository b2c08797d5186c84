package service

import (
	"fmt"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/provisioning/domain"
)

// RenewalInvoiceKey identifies the renewal invoice for the period that starts
// at the server's current renewal date.
func RenewalInvoiceKey(server domain.Server) string {
	return fmt.Sprintf("renewal:%s:%s", server.ID, server.RenewalDate.UTC().Format(time.RFC3339Nano))
}

// RenewalInvoiceRequest builds the unpaid renewal invoice for the server's
// next period, due on the renewal date.
func RenewalInvoiceRequest(server domain.Server) invoicedomain.CreateRequest {
	due := server.RenewalDate
	orderID := server.OrderID
	serverID := server.ID
	return invoicedomain.CreateRequest{
		UserID:         server.UserID,
		OrderID:        &orderID,
		ServerID:       &serverID,
		Kind:           invoicedomain.KindRenewal,
		Amount:         server.Amount,
		Description:    fmt.Sprintf("Renewal: %s (%s, %s)", server.PlanName, server.Hostname, server.BillingCycle),
		DueDate:        &due,
		IdempotencyKey: RenewalInvoiceKey(server),
		Metadata: map[string]any{
			MetaPeriodStart: server.RenewalDate.UTC().Format(time.RFC3339Nano),
		},
	}
}
