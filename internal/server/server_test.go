package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	authservice "github.com/smallbiznis/cloudnest/internal/auth/service"
	"github.com/smallbiznis/cloudnest/internal/config"
	dashboardservice "github.com/smallbiznis/cloudnest/internal/dashboard/service"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/observability"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
	"github.com/smallbiznis/cloudnest/internal/testutil"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	stack  *testutil.Stack
	server *Server
	issue  func(user userdomain.User) string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stack := testutil.NewStack(t)
	log := zap.NewNop()
	cfg := config.Config{
		AuthJWTSecret: "handler-test-secret",
		RateLimit: config.RateLimitConfig{
			Enabled:         true,
			OrdersPerMinute: 1,
			OrderBurst:      1,
			TopUpsPerMinute: 1,
			TopUpBurst:      1,

			ContactsPerMinute: 1,
			ContactBurst:      2,
		},
	}

	gateway := authservice.New(authservice.Params{Config: cfg, Log: log, Clock: stack.Clock, Users: stack.Users})
	sched, err := scheduler.New(scheduler.Params{
		DB:           stack.DB,
		Log:          log,
		GenID:        stack.Node,
		Clock:        stack.Clock,
		Invoices:     stack.Invoices,
		Orders:       stack.Orders,
		Provisioning: stack.Provisioning,
		Wallet:       stack.Wallet,
		Lifecycle:    stack.Lifecycle,
		Notifier:     stack.Notifier,
	})
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:         NewEngine(cfg, observability.Config{}, nil),
		Cfg:         cfg,
		Log:         log,
		AuthGateway: gateway,
		UserSvc:     stack.Users,
		CatalogSvc:  stack.Catalog,
		WalletSvc:   stack.Wallet,
		InvoiceSvc:  stack.Invoices,
		OrderSvc:    stack.Orders,
		ServerSvc:   stack.Provisioning,
		SupportSvc:  stack.Support,
		PaymentSvc:  stack.Payments,
		SettingsSvc: stack.Settings,
		DashboardSvc: dashboardservice.New(dashboardservice.Params{
			Log:          log,
			Users:        stack.Users,
			Orders:       stack.Orders,
			Provisioning: stack.Provisioning,
			Invoices:     stack.Invoices,
			Support:      stack.Support,
		}),
		Scheduler: sched,
		Limiter:   ratelimit.NewLimiter(ratelimit.Params{Config: cfg, Log: log, Clock: stack.Clock}),
	})

	return &harness{
		stack:  stack,
		server: srv,
		issue: func(user userdomain.User) string {
			token, _, err := gateway.IssueToken(user, time.Hour)
			require.NoError(t, err)
			return token
		},
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Equal(t, "not_found", resp.Error.Type)
}

func TestCustomerRoutesRequireBearerToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decode[errorResponse](t, rec).Error.Type)

	rec = h.do(t, http.MethodGet, "/api/orders", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	h := newHarness(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "cust@example.com", 0)
	staff := testutil.CreateStaff(t, h.stack.DB, h.stack.Node, "ops@example.com")

	rec := h.do(t, http.MethodGet, "/api/admin/dashboard", h.issue(customer), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/admin/dashboard", h.issue(staff), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[envelope[map[string]int64]](t, rec)
	require.EqualValues(t, 1, stats.Data["total_users"])
}

func TestPlaceOrderAndPayWithWallet(t *testing.T) {
	h := newHarness(t)
	plan := h.stack.CreatePlan(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "buyer@example.com", 0)
	token := h.issue(customer)

	rec := h.do(t, http.MethodPost, "/api/orders", token, gin.H{
		"plan_id":        plan.ID.String(),
		"billing_cycle":  "monthly",
		"os":             "Ubuntu 24.04",
		"payment_method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[envelope[orderdomain.PlaceOrderResult]](t, rec)
	require.Equal(t, orderdomain.PaymentStatusPending, placed.Data.Order.PaymentStatus)
	require.Equal(t, invoicedomain.StatusUnpaid, placed.Data.Invoice.Status)
	invoicePath := "/api/invoices/" + placed.Data.Invoice.ID.String()

	rec = h.do(t, http.MethodPost, invoicePath+"/pay-wallet", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	failed := decode[errorResponse](t, rec)
	require.Equal(t, "invalid_state", failed.Error.Type)
	require.Equal(t, walletdomain.ErrInsufficientBalance.Error(), failed.Error.Message)

	_, err := h.stack.Wallet.Credit(context.Background(), walletdomain.CreditRequest{
		UserID: customer.ID, Amount: 5000, Description: "test funds",
	})
	require.NoError(t, err)

	rec = h.do(t, http.MethodPost, invoicePath+"/pay-wallet", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 2000, h.stack.Balance(t, customer.ID))

	rec = h.do(t, http.MethodGet, invoicePath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[envelope[invoicedomain.Invoice]](t, rec)
	require.Equal(t, invoicedomain.StatusPaid, got.Data.Status)

	rec = h.do(t, http.MethodGet, "/api/orders/"+placed.Data.Order.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[envelope[orderdomain.Order]](t, rec)
	require.Equal(t, orderdomain.PaymentStatusPaid, order.Data.PaymentStatus)
}

func TestCustomerCannotReadOtherInvoices(t *testing.T) {
	h := newHarness(t)
	plan := h.stack.CreatePlan(t)
	owner := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "owner@example.com", 0)
	other := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "other@example.com", 0)
	placed := h.stack.PlaceOrder(t, owner, plan, orderdomain.PaymentMethodBankTransfer)

	rec := h.do(t, http.MethodGet, "/api/invoices/"+placed.Invoice.ID.String(), h.issue(other), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "val@example.com", 0)

	rec := h.do(t, http.MethodPost, "/api/orders", h.issue(customer), "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.Equal(t, "validation_error", resp.Error.Type)
	require.Equal(t, "invalid_request", resp.Error.Errors[0].Code)
}

func TestPlaceOrderIsRateLimited(t *testing.T) {
	h := newHarness(t)
	plan := h.stack.CreatePlan(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "burst@example.com", 0)
	token := h.issue(customer)
	body := gin.H{
		"plan_id":        plan.ID.String(),
		"billing_cycle":  "monthly",
		"payment_method": "crypto",
	}

	rec := h.do(t, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, retryAfter, 60)
	require.Equal(t, "rate_limited", decode[errorResponse](t, rec).Error.Type)

	h.stack.Clock.Advance(time.Minute)
	rec = h.do(t, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestRunRenewalCheckChargesWallet(t *testing.T) {
	h := newHarness(t)
	plan := h.stack.CreatePlan(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "renew@example.com", 10000)
	staff := testutil.CreateStaff(t, h.stack.DB, h.stack.Node, "admin@example.com")
	placed := h.stack.PlaceOrder(t, customer, plan, orderdomain.PaymentMethodWallet)
	server := h.stack.Provision(t, placed.Order)
	require.EqualValues(t, 7000, h.stack.Balance(t, customer.ID))

	h.stack.Clock.Set(server.RenewalDate.Add(-48 * time.Hour))
	rec := h.do(t, http.MethodPost, "/api/admin/run-renewal-check", h.issue(staff), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[envelope[scheduler.Result]](t, rec)
	require.Equal(t, scheduler.JobRenewal, res.Data.Job)
	require.Equal(t, 1, res.Data.Processed)
	require.Equal(t, 0, res.Data.Errors)
	require.EqualValues(t, 4000, h.stack.Balance(t, customer.ID))
}

func TestOnlySuperAdminChangesRoles(t *testing.T) {
	h := newHarness(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "promote@example.com", 0)
	staff := testutil.CreateStaff(t, h.stack.DB, h.stack.Node, "admin2@example.com")

	rec := h.do(t, http.MethodPut, "/api/admin/users/"+customer.ID.String(), h.issue(staff), gin.H{"role": "admin"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/admin/users/"+customer.ID.String(), h.issue(staff), gin.H{"verified": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[envelope[userdomain.User]](t, rec)
	require.False(t, updated.Data.Verified)
}

func TestPublicSettingsNeedNoToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/settings/public", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settings := decode[envelope[settingsdomain.SiteSettings]](t, rec)
	require.Equal(t, "CloudNest", settings.Data.CompanyName)
	require.Empty(t, settings.Data.BankTransferDetails)
}

func TestStaffPublishPaymentInstructions(t *testing.T) {
	h := newHarness(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "reader@example.com", 0)
	staff := testutil.CreateStaff(t, h.stack.DB, h.stack.Node, "settings@example.com")
	body := gin.H{
		"bank_transfer_details": "IBAN DE00 1234 5678",
		"crypto_addresses":      "USDT: TXyz",
	}

	rec := h.do(t, http.MethodPut, "/api/admin/settings", h.issue(customer), body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/admin/settings", h.issue(staff), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/settings/public", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[envelope[settingsdomain.SiteSettings]](t, rec)
	require.Equal(t, "IBAN DE00 1234 5678", settings.Data.BankTransferDetails)
	require.Equal(t, "USDT: TXyz", settings.Data.CryptoAddresses)
	require.Equal(t, "CloudNest", settings.Data.CompanyName)

	rec = h.do(t, http.MethodPut, "/api/admin/settings", h.issue(staff), gin.H{"company_name": " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "validation_error", decode[errorResponse](t, rec).Error.Type)
}

func TestContactFormConfirmsBySender(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/contact", "", gin.H{
		"name":    "Ada",
		"email":   "Ada@Example.com",
		"subject": "Dedicated pricing",
		"message": "Do you offer 10G uplinks?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	msgs := h.stack.Notifier.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, notification.TemplateContactReceived, msgs[0].Template)
	require.Equal(t, "ada@example.com", msgs[0].Email)

	var stored int64
	require.NoError(t, h.stack.DB.Model(&settingsdomain.ContactMessage{}).Count(&stored).Error)
	require.EqualValues(t, 1, stored)
}

func TestContactFormIsRateLimitedPerClient(t *testing.T) {
	h := newHarness(t)
	body := gin.H{"name": "Bob", "email": "bob@example.com", "subject": "Hi", "message": "Hello"}

	for range 2 {
		rec := h.do(t, http.MethodPost, "/api/contact", "", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := h.do(t, http.MethodPost, "/api/contact", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/contact", "", gin.H{"name": "Bob", "email": "bob", "subject": "Hi", "message": "x"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCustomerUpdatesOwnProfile(t *testing.T) {
	h := newHarness(t)
	customer := testutil.CreateUser(t, h.stack.DB, h.stack.Node, "profile@example.com", 0)
	token := h.issue(customer)

	rec := h.do(t, http.MethodPut, "/api/user/profile", token, gin.H{
		"full_name": "Grace Hopper",
		"company":   "Navy Labs",
		"role":      "super_admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[envelope[userdomain.User]](t, rec)
	require.Equal(t, "Grace Hopper", updated.Data.FullName)
	require.Equal(t, "Navy Labs", updated.Data.Company)
	require.Equal(t, userdomain.RoleUser, updated.Data.Role)

	rec = h.do(t, http.MethodPut, "/api/user/profile", token, gin.H{"full_name": "", "company": "Acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated = decode[envelope[userdomain.User]](t, rec)
	require.Equal(t, "Grace Hopper", updated.Data.FullName)
	require.Equal(t, "Acme", updated.Data.Company)

	rec = h.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Acme", decode[envelope[userdomain.User]](t, rec).Data.Company)
}
