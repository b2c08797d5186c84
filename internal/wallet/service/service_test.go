package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	"github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/internal/wallet/repository"
	"github.com/smallbiznis/cloudnest/internal/wallet/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	notifier *testutil.RecordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.OpenDB(t)
	notifier := testutil.NewRecordingNotifier()
	svc := service.New(service.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    testutil.NewNode(t),
		Clock:    testutil.NewClock(),
		Repo:     repository.Provide(),
		Notifier: notifier,
	})
	return fixture{db: conn, svc: svc, notifier: notifier}
}

func TestDebitReducesBalanceAndRecordsTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 10000)

	txn, err := f.svc.Debit(ctx, domain.DebitRequest{UserID: user.ID, Amount: 3000, Description: "Order payment"})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	require.Equal(t, domain.TransactionTypeDebit, txn.Type)
	require.Equal(t, int64(3000), txn.Amount)
	require.Equal(t, int64(7000), txn.BalanceAfter)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7000), balance)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 500)

	_, err := f.svc.Debit(ctx, domain.DebitRequest{UserID: user.ID, Amount: 501, Description: "too much"})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), balance)

	resp, err := f.svc.ListTransactions(ctx, domain.ListTransactionsRequest{UserID: user.ID})
	require.NoError(t, err)
	require.Empty(t, resp.Transactions)
}

func TestPostingValidatesAmountAndUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 0)

	_, err := f.svc.Credit(ctx, domain.CreditRequest{UserID: user.ID, Amount: 0})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Debit(ctx, domain.DebitRequest{UserID: user.ID, Amount: -5})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Credit(ctx, domain.CreditRequest{UserID: 12345, Amount: 100})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBalanceMatchesLedgerSum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 0)

	_, err := f.svc.Credit(ctx, domain.CreditRequest{UserID: user.ID, Amount: 5000, Description: "top-up"})
	require.NoError(t, err)
	_, err = f.svc.Debit(ctx, domain.DebitRequest{UserID: user.ID, Amount: 1200, Description: "order"})
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, domain.AdjustRequest{UserID: user.ID, Amount: -300, Note: "correction"})
	require.NoError(t, err)
	adjusted, err := f.svc.Adjust(ctx, domain.AdjustRequest{UserID: user.ID, Amount: 50})
	require.NoError(t, err)
	require.Equal(t, "Admin adjustment", adjusted.Description)
	require.Equal(t, domain.TransactionTypeCredit, adjusted.Type)

	repo := repository.Provide()
	credits, err := repo.SumTransactions(ctx, f.db, user.ID, domain.TransactionTypeCredit)
	require.NoError(t, err)
	debits, err := repo.SumTransactions(ctx, f.db, user.ID, domain.TransactionTypeDebit)
	require.NoError(t, err)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3550), balance)
	require.Equal(t, balance, credits-debits)
}

func TestAdjustRejectsZero(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 0)

	_, err := f.svc.Adjust(context.Background(), domain.AdjustRequest{UserID: user.ID})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 1000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(ctx, domain.DebitRequest{UserID: user.ID, Amount: 400, Description: "race"})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, accepted)
	require.Equal(t, int64(200), balance)
}

func TestTopUpApprovalCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := testutil.NewNode(t)
	user := testutil.CreateUser(t, f.db, node, "ana@example.com", 0)
	staff := testutil.CreateStaff(t, f.db, node, "ops@example.com")

	req, err := f.svc.RequestTopUp(ctx, domain.TopUpInput{
		UserID:           user.ID,
		Amount:           2500,
		PaymentMethod:    domain.TopUpMethodBankTransfer,
		PaymentReference: "TRX-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TopUpStatusPending, req.Status)

	reviewed, err := f.svc.ReviewTopUp(ctx, domain.ReviewTopUpRequest{
		ID:         req.ID.String(),
		Approve:    true,
		Notes:      "received",
		ReviewerID: staff.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TopUpStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)

	_, err = f.svc.ReviewTopUp(ctx, domain.ReviewTopUpRequest{ID: req.ID.String(), Approve: true, ReviewerID: staff.ID})
	require.ErrorIs(t, err, domain.ErrTopUpAlreadyReviewed)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2500), balance)
	require.Equal(t, []string{notification.TemplateTopUpReviewed}, f.notifier.Templates())

	resp, err := f.svc.ListTransactions(ctx, domain.ListTransactionsRequest{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	require.Equal(t, "topup:"+req.ID.String(), resp.Transactions[0].Reference)
}

func TestTopUpRejectionLeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := testutil.NewNode(t)
	user := testutil.CreateUser(t, f.db, node, "ana@example.com", 100)

	req, err := f.svc.RequestTopUp(ctx, domain.TopUpInput{UserID: user.ID, Amount: 900, PaymentMethod: domain.TopUpMethodCrypto})
	require.NoError(t, err)

	reviewed, err := f.svc.ReviewTopUp(ctx, domain.ReviewTopUpRequest{ID: req.ID.String(), Approve: false, Notes: "not received"})
	require.NoError(t, err)
	require.Equal(t, domain.TopUpStatusRejected, reviewed.Status)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)

	pending, err := f.svc.ListTopUps(ctx, domain.TopUpFilter{Status: domain.TopUpStatusPending})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRequestTopUpValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, testutil.NewNode(t), "ana@example.com", 0)

	_, err := f.svc.RequestTopUp(ctx, domain.TopUpInput{UserID: user.ID, Amount: 0, PaymentMethod: domain.TopUpMethodCrypto})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.RequestTopUp(ctx, domain.TopUpInput{UserID: user.ID, Amount: 100, PaymentMethod: "cash"})
	require.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	_, err = f.svc.ReviewTopUp(ctx, domain.ReviewTopUpRequest{ID: "abc"})
	require.ErrorIs(t, err, domain.ErrInvalidTopUpID)

	_, err = f.svc.ReviewTopUp(ctx, domain.ReviewTopUpRequest{ID: "99999"})
	require.ErrorIs(t, err, domain.ErrTopUpNotFound)
}
