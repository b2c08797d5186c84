package service_test

import (
	"context"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/stretchr/testify/require"
)

func TestWalletOrderThenProvision(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "alice@example.com", 10000)
	plan := stack.CreatePlan(t)

	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodWallet)

	require.Equal(t, int64(3000), res.Order.Amount)
	require.Equal(t, domain.PaymentStatusPaid, res.Order.PaymentStatus)
	require.Equal(t, domain.StatusPending, res.Order.Status)
	require.Equal(t, invoicedomain.StatusPaid, res.Invoice.Status)
	require.Equal(t, int64(7000), stack.Balance(t, user.ID))

	server := stack.Provision(t, res.Order)
	require.True(t, server.RenewalDate.Equal(testutil.Epoch.AddDate(0, 0, 30)), "renewal date %s", server.RenewalDate)

	order, err := stack.Orders.Get(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, order.Status)

	require.Contains(t, stack.Notifier.Templates(), notification.TemplateOrderPlaced)
	require.Contains(t, stack.Notifier.Templates(), notification.TemplateServerProvisioned)
}

func TestWalletOrderInsufficientBalancePersistsNothing(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "bob@example.com", 1000)
	plan := stack.CreatePlan(t)

	_, err := stack.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  pricing.CycleMonthly,
		PaymentMethod: domain.PaymentMethodWallet,
	})
	require.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	orders, err := stack.Orders.Count(ctx, domain.ListFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Zero(t, orders)
	invoices, err := stack.Invoices.Count(ctx, invoicedomain.ListFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Zero(t, invoices)
	require.Equal(t, int64(1000), stack.Balance(t, user.ID))
	require.Empty(t, stack.Notifier.Messages())
}

func TestBankTransferOrderAwaitsPayment(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "carol@example.com", 0)
	plan := stack.CreatePlan(t)

	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodBankTransfer)
	require.Equal(t, domain.PaymentStatusPending, res.Order.PaymentStatus)
	require.Equal(t, invoicedomain.StatusUnpaid, res.Invoice.Status)
	require.True(t, res.Invoice.DueDate.Equal(testutil.Epoch.AddDate(0, 0, 7)), "due date %s", res.Invoice.DueDate)

	order, err := stack.Orders.UpdatePaymentStatus(ctx, res.Order.ID.String(), domain.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	inv, err := stack.Invoices.Get(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, inv.Status)

	again, err := stack.Orders.UpdatePaymentStatus(ctx, res.Order.ID.String(), domain.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)
}

func TestPlaceOrderRejectsInvalidInput(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "dave@example.com", 0)
	plan := stack.CreatePlan(t)

	_, err := stack.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  pricing.CycleMonthly,
		PaymentMethod: "paypal",
	})
	require.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	_, err = stack.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  "weekly",
		PaymentMethod: domain.PaymentMethodCrypto,
	})
	require.ErrorIs(t, err, pricing.ErrInvalidBillingCycle)

	_, err = stack.Catalog.SetPlanActive(ctx, plan.ID.String(), false)
	require.NoError(t, err)
	_, err = stack.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  pricing.CycleMonthly,
		PaymentMethod: domain.PaymentMethodCrypto,
	})
	require.ErrorIs(t, err, catalogdomain.ErrPlanNotFound)
}

func TestPlaceOrderAddOnPricing(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "erin@example.com", 0)
	plan := stack.CreatePlan(t)

	backup, err := stack.Catalog.CreateAddOn(ctx, catalogdomain.AddOnInput{
		Name:         "Daily Backup",
		Category:     catalogdomain.AddOnCategoryBackup,
		Price:        500,
		BillingCycle: pricing.CycleMonthly,
	})
	require.NoError(t, err)
	ssl, err := stack.Catalog.CreateAddOn(ctx, catalogdomain.AddOnInput{
		Name:         "Wildcard SSL",
		Category:     catalogdomain.AddOnCategorySSL,
		Price:        2000,
		BillingCycle: pricing.CycleYearly,
	})
	require.NoError(t, err)

	res, err := stack.Orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  pricing.CycleQuarterly,
		AddOnIDs:      []string{backup.ID.String(), ssl.ID.String()},
		PaymentMethod: domain.PaymentMethodCrypto,
	})
	require.NoError(t, err)
	// 80.00 plan + 5.00 x 3 + 20.00 as charged.
	require.Equal(t, int64(11500), res.Order.Amount)
	require.Equal(t, int64(11500), res.Invoice.Amount)
	require.Len(t, res.Order.AddOnIDs, 2)
}

func TestOrderKeepsPriceCapturedAtPurchase(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "frank@example.com", 0)
	plan := stack.CreatePlan(t)

	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodBankTransfer)

	_, err := stack.Catalog.UpdatePlan(ctx, plan.ID.String(), catalogdomain.PlanInput{
		Name:           plan.Name,
		Type:           plan.Type,
		PriceMonthly:   4500,
		PriceQuarterly: 12000,
		PriceYearly:    45000,
	})
	require.NoError(t, err)

	order, err := stack.Orders.Get(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Equal(t, int64(3000), order.Amount)
}

func TestCancelPendingOrderCancelsInvoice(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "gina@example.com", 0)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodCrypto)

	order, err := stack.Orders.Cancel(ctx, res.Order.ID.String(), "customer request")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, order.Status)
	require.Equal(t, "customer request", order.CancelReason)

	inv, err := stack.Invoices.Get(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusCancelled, inv.Status)

	updates := len(stack.Notifier.Messages())
	again, err := stack.Orders.Cancel(ctx, res.Order.ID.String(), "again")
	require.NoError(t, err)
	require.Equal(t, "customer request", again.CancelReason)
	require.Len(t, stack.Notifier.Messages(), updates)
}

func TestCancelActiveOrderRejected(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "hank@example.com", 10000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodWallet)
	stack.Provision(t, res.Order)

	_, err := stack.Orders.Cancel(ctx, res.Order.ID.String(), "")
	require.ErrorIs(t, err, domain.ErrOrderActive)
	_, err = stack.Orders.Refund(ctx, res.Order.ID.String())
	require.ErrorIs(t, err, domain.ErrOrderActive)
}

func TestRefundCreditsWallet(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "ivy@example.com", 10000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, domain.PaymentMethodWallet)
	require.Equal(t, int64(7000), stack.Balance(t, user.ID))

	stack.Clock.Advance(time.Hour)
	order, err := stack.Orders.UpdatePaymentStatus(ctx, res.Order.ID.String(), domain.PaymentStatusRefunded)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)
	require.Equal(t, domain.StatusCancelled, order.Status)
	require.Equal(t, int64(10000), stack.Balance(t, user.ID))

	txns, err := stack.Wallet.ListTransactions(ctx, walletdomain.ListTransactionsRequest{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, txns.Transactions, 2)

	_, err = stack.Orders.Refund(ctx, res.Order.ID.String())
	require.ErrorIs(t, err, domain.ErrNotPaid)
	require.Equal(t, int64(10000), stack.Balance(t, user.ID))
}

func TestOrderPaymentTransitions(t *testing.T) {
	require.True(t, domain.CanTransitionPayment(domain.PaymentStatusPending, domain.PaymentStatusPaid))
	require.True(t, domain.CanTransitionPayment(domain.PaymentStatusFailed, domain.PaymentStatusPaid))
	require.True(t, domain.CanTransitionPayment(domain.PaymentStatusPaid, domain.PaymentStatusRefunded))
	require.False(t, domain.CanTransitionPayment(domain.PaymentStatusRefunded, domain.PaymentStatusPaid))
	require.False(t, domain.CanTransitionPayment(domain.PaymentStatusPaid, domain.PaymentStatusPending))

	require.True(t, domain.CanTransitionStatus(domain.StatusPending, domain.StatusActive))
	require.True(t, domain.CanTransitionStatus(domain.StatusActive, domain.StatusCancelled))
	require.False(t, domain.CanTransitionStatus(domain.StatusCancelled, domain.StatusActive))
	require.False(t, domain.CanTransitionStatus(domain.StatusActive, domain.StatusPending))
}
