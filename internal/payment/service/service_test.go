package service_test

import (
	"context"
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/payment/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	provisioningservice "github.com/smallbiznis/cloudnest/internal/provisioning/service"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/stretchr/testify/require"
)

func renewalInvoice(t *testing.T, stack *testutil.Stack, server provisioningdomain.Server) invoicedomain.Invoice {
	t.Helper()
	inv, err := stack.Invoices.Create(context.Background(), provisioningservice.RenewalInvoiceRequest(server))
	require.NoError(t, err)
	return inv
}

func TestPayWithWalletSettlesOrderInvoice(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "alice@example.com", 5000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodBankTransfer)

	out, err := stack.Payments.PayWithWallet(ctx, user.ID, res.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, out.Invoice.Status)
	require.Equal(t, walletdomain.TransactionTypeDebit, out.Transaction.Type)
	require.Equal(t, "invoice:"+res.Invoice.Number, out.Transaction.Reference)
	require.Equal(t, domain.MethodWallet, out.Payment.Method)
	require.Equal(t, int64(2000), stack.Balance(t, user.ID))

	order, err := stack.Orders.Get(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Equal(t, orderdomain.PaymentStatusPaid, order.PaymentStatus)

	_, err = stack.Payments.PayWithWallet(ctx, user.ID, res.Invoice.ID.String())
	require.ErrorIs(t, err, domain.ErrAlreadyPaid)
	require.Equal(t, int64(2000), stack.Balance(t, user.ID))

	payment, err := stack.Payments.FindByInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	require.Equal(t, int64(3000), payment.Amount)
	require.Contains(t, stack.Notifier.Templates(), notification.TemplateInvoicePaid)
}

func TestPayWithWalletInsufficientBalance(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "bob@example.com", 1000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodCrypto)

	_, err := stack.Payments.PayWithWallet(ctx, user.ID, res.Invoice.ID.String())
	require.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	inv, err := stack.Invoices.Get(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusUnpaid, inv.Status)
	require.Equal(t, int64(1000), stack.Balance(t, user.ID))

	payment, err := stack.Payments.FindByInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	require.Nil(t, payment)
}

func TestPayWithWalletOtherUsersInvoice(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, stack.DB, stack.Node, "carol@example.com", 0)
	other := testutil.CreateUser(t, stack.DB, stack.Node, "mallory@example.com", 10000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, owner, plan, orderdomain.PaymentMethodCrypto)

	_, err := stack.Payments.PayWithWallet(ctx, other.ID, res.Invoice.ID.String())
	require.ErrorIs(t, err, invoicedomain.ErrNotFound)
	require.Equal(t, int64(10000), stack.Balance(t, other.ID))
}

func TestRenewalPaymentAdvancesOnce(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "dan@example.com", 3000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodWallet)
	server := stack.Provision(t, res.Order)
	inv := renewalInvoice(t, stack, server)

	_, err := stack.Payments.Settle(ctx, domain.SettleRequest{
		InvoiceID: inv.ID.String(),
		Status:    invoicedomain.StatusPaid,
		Method:    domain.MethodBankTransfer,
		Reference: "TRX-1001",
	})
	require.NoError(t, err)

	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	want := server.RenewalDate.AddDate(0, 0, 30)
	require.True(t, got.RenewalDate.Equal(want), "renewal date %s", got.RenewalDate)

	again, err := stack.Payments.Settle(ctx, domain.SettleRequest{
		InvoiceID: inv.ID.String(),
		Status:    invoicedomain.StatusPaid,
		Reference: "TRX-1001",
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPaid, again.Status)

	got, err = stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.True(t, got.RenewalDate.Equal(want), "renewal date %s", got.RenewalDate)
}

func TestRenewalPaymentLiftsSuspension(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "eve@example.com", 6000)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodWallet)
	server := stack.Provision(t, res.Order)
	inv := renewalInvoice(t, stack, server)

	stack.Clock.Set(server.RenewalDate.Add(8 * 24 * time.Hour))
	_, err := stack.Provisioning.Suspend(ctx, server.ID.String(), inv.ID.String())
	require.NoError(t, err)

	_, err = stack.Payments.PayWithWallet(ctx, user.ID, inv.ID.String())
	require.NoError(t, err)

	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusActive, got.Status)
	require.Nil(t, got.SuspendedAt)
	require.Equal(t, int64(0), stack.Balance(t, user.ID))
	require.Contains(t, stack.Notifier.Templates(), notification.TemplateServerUnsuspended)
}

func TestSettleRejectsProof(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "finn@example.com", 0)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodBankTransfer)

	pending, err := stack.Invoices.SubmitPaymentProof(ctx, user.ID, res.Invoice.ID.String(), "BCA-778812")
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusPending, pending.Status)

	inv, err := stack.Payments.Settle(ctx, domain.SettleRequest{
		InvoiceID: res.Invoice.ID.String(),
		Status:    invoicedomain.StatusUnpaid,
		Reason:    "transfer not received",
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusUnpaid, inv.Status)
}

func TestSettleCancelDropsUnpaidOrder(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, stack.DB, stack.Node, "gail@example.com", 0)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodCrypto)

	inv, err := stack.Payments.Settle(ctx, domain.SettleRequest{
		InvoiceID: res.Invoice.ID.String(),
		Status:    invoicedomain.StatusCancelled,
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusCancelled, inv.Status)

	order, err := stack.Orders.Get(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusCancelled, order.Status)

	_, err = stack.Payments.Settle(ctx, domain.SettleRequest{
		InvoiceID: res.Invoice.ID.String(),
		Status:    invoicedomain.StatusPaid,
	})
	require.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
}

func TestSettleValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	_, err := stack.Payments.Settle(ctx, domain.SettleRequest{InvoiceID: "1", Status: invoicedomain.StatusPending})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = stack.Payments.Settle(ctx, domain.SettleRequest{InvoiceID: "1", Status: invoicedomain.StatusPaid, Method: domain.MethodWallet})
	require.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = stack.Payments.Settle(ctx, domain.SettleRequest{InvoiceID: "abc", Status: invoicedomain.StatusPaid})
	require.ErrorIs(t, err, invoicedomain.ErrInvalidID)

	_, err = stack.Payments.Settle(ctx, domain.SettleRequest{InvoiceID: "42", Status: invoicedomain.StatusPaid})
	require.ErrorIs(t, err, invoicedomain.ErrNotFound)
}
