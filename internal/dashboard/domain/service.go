package domain

import "context"

// Stats is the staff dashboard summary. TotalRevenue is the sum of paid
// invoices in cents.
type Stats struct {
	TotalUsers       int64 `json:"total_users"`
	TotalOrders      int64 `json:"total_orders"`
	PendingOrders    int64 `json:"pending_orders"`
	ActiveServers    int64 `json:"active_servers"`
	SuspendedServers int64 `json:"suspended_servers"`
	UnpaidInvoices   int64 `json:"unpaid_invoices"`
	OpenTickets      int64 `json:"open_tickets"`
	TotalRevenue     int64 `json:"total_revenue"`
}

type Service interface {
	Stats(ctx context.Context) (Stats, error)
}
