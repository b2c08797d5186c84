package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/invoice/repository"
	"github.com/smallbiznis/cloudnest/internal/invoice/service"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	svc      domain.Service
	notifier *testutil.RecordingNotifier
	user     userdomain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	notifier := testutil.NewRecordingNotifier()
	svc := service.New(service.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Notifier: notifier,
	})
	return fixture{
		db:       conn,
		clock:    clk,
		svc:      svc,
		notifier: notifier,
		user:     testutil.CreateUser(t, conn, node, "ana@example.com", 0),
	}
}

func (f fixture) create(t *testing.T, key string) domain.Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID:         f.user.ID,
		Amount:         2700,
		Description:    "VPS Small (quarterly)",
		DueInDays:      7,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestCreateStartsUnpaidWithDueDate(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, "order:1")

	require.Equal(t, domain.StatusUnpaid, inv.Status)
	require.Equal(t, domain.KindOrder, inv.Kind)
	require.True(t, inv.DueDate.Equal(testutil.Epoch.AddDate(0, 0, 7)))
	require.Nil(t, inv.PaidDate)
	require.Regexp(t, regexp.MustCompile(`^INV-20260115-[0-9A-Z]{8}$`), inv.Number)
	require.Equal(t, []string{notification.TemplateInvoiceCreated}, f.notifier.Templates())
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	f := newFixture(t)
	f.create(t, "renewal:1:20260201")

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		UserID:         f.user.ID,
		Amount:         100,
		IdempotencyKey: "renewal:1:20260201",
	})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	count, err := f.svc.Count(context.Background(), domain.ListFilter{UserID: f.user.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), domain.CreateRequest{UserID: f.user.ID, Amount: 0})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "order:2")

	f.clock.Advance(24 * time.Hour)
	paid, err := f.svc.MarkPaid(ctx, inv.ID.String(), "TRX-42")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	require.Equal(t, "TRX-42", paid.PaymentReference)

	f.clock.Advance(24 * time.Hour)
	again, err := f.svc.MarkPaid(ctx, inv.ID.String(), "TRX-43")
	require.NoError(t, err)
	require.Equal(t, "TRX-42", again.PaymentReference)
	require.True(t, again.PaidDate.Equal(*paid.PaidDate))

	require.Equal(t, []string{
		notification.TemplateInvoiceCreated,
		notification.TemplateInvoicePaid,
	}, f.notifier.Templates())
}

func TestCancelledAndPaidAreTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := f.create(t, "order:3")
	_, err := f.svc.MarkPaid(ctx, paid.ID.String(), "")
	require.NoError(t, err)
	_, err = f.svc.MarkCancelled(ctx, paid.ID.String(), "late")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	cancelled := f.create(t, "order:4")
	got, err := f.svc.MarkCancelled(ctx, cancelled.ID.String(), "non-payment")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, got.Status)
	require.Equal(t, "non-payment", got.Metadata["cancel_reason"])

	_, err = f.svc.MarkCancelled(ctx, cancelled.ID.String(), "again")
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, cancelled.ID.String(), "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSubmitPaymentProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "order:5")

	_, err := f.svc.SubmitPaymentProof(ctx, f.user.ID, inv.ID.String(), " ")
	require.ErrorIs(t, err, domain.ErrInvalidReference)

	_, err = f.svc.SubmitPaymentProof(ctx, f.user.ID+1, inv.ID.String(), "TRX-9")
	require.ErrorIs(t, err, domain.ErrNotFound)

	pending, err := f.svc.SubmitPaymentProof(ctx, f.user.ID, inv.ID.String(), "TRX-9")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, pending.Status)
	require.Equal(t, "TRX-9", pending.PaymentReference)

	_, err = f.svc.SubmitPaymentProof(ctx, f.user.ID, inv.ID.String(), "TRX-10")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var rejected domain.Invoice
	err = f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rejected, err = f.svc.MarkUnpaidTx(ctx, tx, inv.ID, "no funds received")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnpaid, rejected.Status)
	require.Empty(t, rejected.PaymentReference)
}

func TestListOverdueOnlyReturnsUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := f.create(t, "order:6")
	proof := f.create(t, "order:7")
	_, err := f.svc.SubmitPaymentProof(ctx, f.user.ID, proof.ID.String(), "TRX-1")
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	fresh := f.create(t, "order:8")

	items, err := f.svc.ListOverdue(ctx, f.clock.Now(), nil, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, overdue.ID, items[0].ID)
	require.True(t, items[0].Overdue(f.clock.Now(), 0))
	require.NotEqual(t, fresh.ID, items[0].ID)
}

func TestFSM(t *testing.T) {
	require.True(t, domain.CanTransition(domain.StatusUnpaid, domain.StatusPending))
	require.True(t, domain.CanTransition(domain.StatusPending, domain.StatusUnpaid))
	require.False(t, domain.CanTransition(domain.StatusPaid, domain.StatusCancelled))
	require.False(t, domain.CanTransition(domain.StatusCancelled, domain.StatusUnpaid))
	require.ElementsMatch(t, []domain.Status{domain.StatusUnpaid, domain.StatusPending}, domain.Sources(domain.StatusPaid))
}
