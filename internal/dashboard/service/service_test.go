package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/cloudnest/internal/dashboard/service"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatsSummarisesBilling(t *testing.T) {
	stack := testutil.NewStack(t)
	svc := service.New(service.Params{
		Log:          zap.NewNop(),
		Users:        stack.Users,
		Orders:       stack.Orders,
		Provisioning: stack.Provisioning,
		Invoices:     stack.Invoices,
		Support:      stack.Support,
	})

	plan := stack.CreatePlan(t)
	payer := testutil.CreateUser(t, stack.DB, stack.Node, "payer@example.com", 10000)
	debtor := testutil.CreateUser(t, stack.DB, stack.Node, "debtor@example.com", 0)
	testutil.CreateStaff(t, stack.DB, stack.Node, "staff@example.com")

	paid := stack.PlaceOrder(t, payer, plan, orderdomain.PaymentMethodWallet)
	stack.PlaceOrder(t, debtor, plan, orderdomain.PaymentMethodBankTransfer)
	stack.Provision(t, paid.Order)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalUsers)
	require.EqualValues(t, 2, stats.TotalOrders)
	require.EqualValues(t, 1, stats.PendingOrders)
	require.EqualValues(t, 1, stats.ActiveServers)
	require.EqualValues(t, 0, stats.SuspendedServers)
	require.EqualValues(t, 1, stats.UnpaidInvoices)
	require.EqualValues(t, 0, stats.OpenTickets)
	require.EqualValues(t, 3000, stats.TotalRevenue)
}
