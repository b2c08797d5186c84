package scheduler_test

import (
	"context"
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
	schedtesting "github.com/smallbiznis/cloudnest/internal/scheduler/testing"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

func newScheduler(t *testing.T, stack *testutil.Stack, cfg scheduler.Config) *scheduler.Scheduler {
	t.Helper()
	sched, err := scheduler.New(scheduler.Params{
		DB:           stack.DB,
		Log:          zap.NewNop(),
		GenID:        stack.Node,
		Clock:        stack.Clock,
		Invoices:     stack.Invoices,
		Orders:       stack.Orders,
		Provisioning: stack.Provisioning,
		Wallet:       stack.Wallet,
		Lifecycle:    stack.Lifecycle,
		Notifier:     stack.Notifier,
		Config:       cfg,
	})
	require.NoError(t, err)
	return sched
}

// provisioned places a wallet order for a monthly plan priced 30.00 and
// provisions it, leaving balance-3000 in the wallet.
func provisioned(t *testing.T, stack *testutil.Stack, email string, balance int64) (userdomain.User, provisioningdomain.Server) {
	t.Helper()
	user := testutil.CreateUser(t, stack.DB, stack.Node, email, balance)
	plan := stack.CreatePlan(t)
	res := stack.PlaceOrder(t, user, plan, orderdomain.PaymentMethodWallet)
	return user, stack.Provision(t, res.Order)
}

func run(t *testing.T, sched *scheduler.Scheduler, job string) scheduler.Result {
	t.Helper()
	res, err := sched.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, job, res.Job)
	require.Zero(t, res.Errors)
	return res
}

func TestNonPaymentSuspendsThenCancels(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{})
	user, server := provisioned(t, stack, "alice@example.com", 3000)
	require.Zero(t, stack.Balance(t, user.ID))

	renewal := server.RenewalDate
	require.True(t, renewal.Equal(testutil.Epoch.Add(30*day)), "renewal %s", renewal)

	stack.Clock.Set(renewal.Add(-7 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobRenewal).Processed)
	require.Equal(t, 0, run(t, sched, scheduler.JobRenewal).Processed)

	inv, err := stack.Invoices.FindOpenRenewalTx(ctx, stack.DB, server.ID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.Equal(t, invoicedomain.StatusUnpaid, inv.Status)
	require.Equal(t, int64(3000), inv.Amount)
	require.True(t, inv.DueDate.Equal(renewal), "due %s", inv.DueDate)

	stack.Clock.Set(renewal.Add(7 * day))
	require.Equal(t, 0, run(t, sched, scheduler.JobSuspension).Processed)

	stack.Clock.Set(renewal.Add(8 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobSuspension).Processed)
	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusSuspended, got.Status)

	stack.Clock.Set(renewal.Add(14 * day))
	require.Equal(t, 0, run(t, sched, scheduler.JobCancellation).Processed)

	stack.Clock.Set(renewal.Add(15 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobCancellation).Processed)

	got, err = stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusCancelled, got.Status)
	require.Equal(t, "non-payment", got.CancelReason)

	order, err := stack.Orders.Get(ctx, server.OrderID.String())
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusCancelled, order.Status)

	cancelled, err := stack.Invoices.Get(ctx, inv.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusCancelled, cancelled.Status)

	// the cancelled server is out of every later pass
	require.Equal(t, 0, run(t, sched, scheduler.JobSuspension).Processed)
	require.Equal(t, 0, run(t, sched, scheduler.JobCancellation).Processed)

	templates := stack.Notifier.Templates()
	require.Contains(t, templates, notification.TemplateInvoiceCreated)
	require.Contains(t, templates, notification.TemplateServerSuspended)
	require.Contains(t, templates, notification.TemplateServerCancelled)
}

func TestRenewalChargesWalletOncePerPeriod(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{})
	user, server := provisioned(t, stack, "bob@example.com", 9000)
	require.Equal(t, int64(6000), stack.Balance(t, user.ID))

	renewal := server.RenewalDate
	stack.Clock.Set(renewal.Add(-2 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobRenewal).Processed)
	require.Equal(t, int64(3000), stack.Balance(t, user.ID))

	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.True(t, got.RenewalDate.Equal(renewal.Add(30*day)), "renewal %s", got.RenewalDate)

	open, err := stack.Invoices.FindOpenRenewalTx(ctx, stack.DB, server.ID)
	require.NoError(t, err)
	require.Nil(t, open)

	require.Equal(t, 0, run(t, sched, scheduler.JobRenewal).Processed)
	require.Equal(t, int64(3000), stack.Balance(t, user.ID))

	// A sweep that still sees the old renewal date loses on the invoice key
	// and rolls its debit back.
	accel := schedtesting.NewTimeAccelerator(stack.DB)
	require.NoError(t, accel.SetRenewalDate(ctx, server.ID, renewal))
	require.Equal(t, 0, run(t, sched, scheduler.JobRenewal).Processed)
	require.Equal(t, int64(3000), stack.Balance(t, user.ID))

	count, err := accel.CountInvoices(ctx, server.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Contains(t, stack.Notifier.Templates(), notification.TemplateRenewalCharged)
}

func TestPaidRenewalInvoiceStopsEscalation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{})
	user, server := provisioned(t, stack, "carol@example.com", 3000)

	renewal := server.RenewalDate
	stack.Clock.Set(renewal.Add(-1 * day))
	run(t, sched, scheduler.JobRenewal)
	inv, err := stack.Invoices.FindOpenRenewalTx(ctx, stack.DB, server.ID)
	require.NoError(t, err)
	require.NotNil(t, inv)

	stack.Clock.Set(renewal.Add(3 * day))
	_, err = stack.Wallet.Credit(ctx, walletdomain.CreditRequest{UserID: user.ID, Amount: 3000, Description: "Top-up"})
	require.NoError(t, err)
	_, err = stack.Payments.PayWithWallet(ctx, user.ID, inv.ID.String())
	require.NoError(t, err)

	stack.Clock.Set(renewal.Add(20 * day))
	require.NoError(t, sched.RunOnce(ctx))

	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusActive, got.Status)
	require.True(t, got.RenewalDate.Equal(renewal.Add(30*day)), "renewal %s", got.RenewalDate)
}

func TestUnprovisionedOrderIsCancelledAfterGrace(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{})
	user := testutil.CreateUser(t, stack.DB, stack.Node, "dave@example.com", 0)
	res := stack.PlaceOrder(t, user, stack.CreatePlan(t), orderdomain.PaymentMethodBankTransfer)

	due := res.Invoice.DueDate
	stack.Clock.Set(due.Add(14 * day))
	require.Equal(t, 0, run(t, sched, scheduler.JobCancellation).Processed)

	stack.Clock.Set(due.Add(15 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobCancellation).Processed)

	order, err := stack.Orders.Get(ctx, res.Order.ID.String())
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusCancelled, order.Status)
	inv, err := stack.Invoices.Get(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusCancelled, inv.Status)
	require.Contains(t, stack.Notifier.Templates(), notification.TemplateOrderUpdated)
}

func TestPendingProofDoesNotEscalate(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{})
	user, server := provisioned(t, stack, "erin@example.com", 3000)

	stack.Clock.Set(server.RenewalDate.Add(-1 * day))
	run(t, sched, scheduler.JobRenewal)
	inv, err := stack.Invoices.FindOpenRenewalTx(ctx, stack.DB, server.ID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	_, err = stack.Invoices.SubmitPaymentProof(ctx, user.ID, inv.ID.String(), "TRX-991")
	require.NoError(t, err)

	stack.Clock.Set(server.RenewalDate.Add(30 * day))
	require.NoError(t, sched.RunOnce(ctx))

	got, err := stack.Provisioning.Get(ctx, server.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusActive, got.Status)
}

func TestRunRejectsUnknownJob(t *testing.T) {
	stack := testutil.NewStack(t)
	sched := newScheduler(t, stack, scheduler.Config{})
	_, err := sched.Run(context.Background(), "rating")
	require.ErrorIs(t, err, scheduler.ErrUnknownJob)
}

func TestRunOnceStopsOnCancelledContext(t *testing.T) {
	stack := testutil.NewStack(t)
	sched := newScheduler(t, stack, scheduler.Config{EnabledJobs: []string{scheduler.JobRenewal}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sched.RunOnce(ctx), context.Canceled)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := scheduler.New(scheduler.Params{})
	require.ErrorIs(t, err, scheduler.ErrInvalidConfig)
}

// twoServers provisions one server at the epoch and a second five days later,
// so the second renews five days after the first.
func twoServers(t *testing.T, stack *testutil.Stack) (first, second provisioningdomain.Server) {
	t.Helper()
	_, first = provisioned(t, stack, "first@example.com", 3000)
	stack.Clock.Set(testutil.Epoch.Add(5 * day))
	_, second = provisioned(t, stack, "second@example.com", 3000)
	require.True(t, second.RenewalDate.After(first.RenewalDate))
	return first, second
}

func openRenewal(t *testing.T, stack *testutil.Stack, server provisioningdomain.Server) *invoicedomain.Invoice {
	t.Helper()
	inv, err := stack.Invoices.FindOpenRenewalTx(context.Background(), stack.DB, server.ID)
	require.NoError(t, err)
	return inv
}

func TestRenewalReachesServersBehindOpenInvoices(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{BatchSize: 1})
	first, second := twoServers(t, stack)

	stack.Clock.Set(first.RenewalDate.Add(-6 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobRenewal).Processed)
	inv := openRenewal(t, stack, first)
	require.NotNil(t, inv)
	require.Nil(t, openRenewal(t, stack, second))

	// a submitted proof keeps the first server due but never escalates it
	_, err := stack.Invoices.SubmitPaymentProof(ctx, inv.UserID, inv.ID.String(), "TRX-1")
	require.NoError(t, err)

	stack.Clock.Set(second.RenewalDate.Add(-6 * day))
	for i := 0; i < 3; i++ {
		run(t, sched, scheduler.JobRenewal)
	}
	require.NotNil(t, openRenewal(t, stack, second))
	require.Equal(t, 0, run(t, sched, scheduler.JobRenewal).Processed)
}

func TestRenewalVisitsEveryDueServerInOnePass(t *testing.T) {
	stack := testutil.NewStack(t)
	sched := newScheduler(t, stack, scheduler.Config{BatchSize: 1})
	first, second := twoServers(t, stack)

	stack.Clock.Set(second.RenewalDate.Add(-6 * day))
	require.Equal(t, 2, run(t, sched, scheduler.JobRenewal).Processed)
	require.NotNil(t, openRenewal(t, stack, first))
	require.NotNil(t, openRenewal(t, stack, second))
}

func TestSuspensionReachesInvoicesBehindSuspendedServers(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{BatchSize: 1})
	first, second := twoServers(t, stack)

	stack.Clock.Set(second.RenewalDate.Add(-6 * day))
	require.Equal(t, 2, run(t, sched, scheduler.JobRenewal).Processed)

	stack.Clock.Set(first.RenewalDate.Add(8 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobSuspension).Processed)

	// the first invoice is older and its server is already suspended
	stack.Clock.Set(second.RenewalDate.Add(9 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobSuspension).Processed)

	got, err := stack.Provisioning.Get(ctx, second.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusSuspended, got.Status)
}

func TestCancellationReachesInvoicesBehindUnsuspendedServers(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	sched := newScheduler(t, stack, scheduler.Config{BatchSize: 1})
	first, second := twoServers(t, stack)

	stack.Clock.Set(second.RenewalDate.Add(-6 * day))
	require.Equal(t, 2, run(t, sched, scheduler.JobRenewal).Processed)

	stack.Clock.Set(second.RenewalDate.Add(8 * day))
	require.Equal(t, 2, run(t, sched, scheduler.JobSuspension).Processed)

	// staff lift the first suspension without the invoice being paid
	stack.Clock.Set(second.RenewalDate.Add(9 * day))
	_, err := stack.Provisioning.Unsuspend(ctx, first.ID.String())
	require.NoError(t, err)

	stack.Clock.Set(second.RenewalDate.Add(16 * day))
	require.Equal(t, 1, run(t, sched, scheduler.JobCancellation).Processed)

	got, err := stack.Provisioning.Get(ctx, second.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusCancelled, got.Status)
	got, err = stack.Provisioning.Get(ctx, first.ID.String())
	require.NoError(t, err)
	require.Equal(t, provisioningdomain.StatusActive, got.Status)
}
