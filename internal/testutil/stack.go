package testutil

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/cloudnest/internal/catalog/service"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/cloudnest/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/cloudnest/internal/invoice/service"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	orderrepo "github.com/smallbiznis/cloudnest/internal/order/repository"
	orderservice "github.com/smallbiznis/cloudnest/internal/order/service"
	paymentdomain "github.com/smallbiznis/cloudnest/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/cloudnest/internal/payment/repository"
	paymentservice "github.com/smallbiznis/cloudnest/internal/payment/service"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	provisioningrepo "github.com/smallbiznis/cloudnest/internal/provisioning/repository"
	provisioningservice "github.com/smallbiznis/cloudnest/internal/provisioning/service"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
	settingsservice "github.com/smallbiznis/cloudnest/internal/settings/service"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	supportservice "github.com/smallbiznis/cloudnest/internal/support/service"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	userrepo "github.com/smallbiznis/cloudnest/internal/user/repository"
	userservice "github.com/smallbiznis/cloudnest/internal/user/service"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	walletrepo "github.com/smallbiznis/cloudnest/internal/wallet/repository"
	walletservice "github.com/smallbiznis/cloudnest/internal/wallet/service"
	"github.com/smallbiznis/cloudnest/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stack is every billing service wired against one test database, a fake
// clock and a recording notifier.
type Stack struct {
	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     *clock.FakeClock
	Notifier  *RecordingNotifier
	Lifecycle *config.LifecycleConfigHolder

	Users        userdomain.Service
	Catalog      catalogdomain.Service
	Wallet       walletdomain.Service
	Invoices     invoicedomain.Service
	Orders       orderdomain.Service
	Support      supportdomain.Service
	Provisioning provisioningdomain.Service
	Payments     paymentdomain.Service
	Settings     settingsdomain.Service

	plan *catalogdomain.Plan
}

func NewStack(t testing.TB) *Stack {
	t.Helper()

	conn := OpenDB(t)
	node := NewNode(t)
	clk := NewClock()
	notifier := NewRecordingNotifier()
	lifecycle := config.NewStaticLifecycleConfigHolder(config.DefaultLifecycleConfig())
	log := zap.NewNop()

	s := &Stack{DB: conn, Node: node, Clock: clk, Notifier: notifier, Lifecycle: lifecycle}

	s.Users = userservice.New(userservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: userrepo.Provide(),
	})
	s.Catalog = catalogservice.New(catalogservice.Params{
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Plans:       repository.ProvideStore[catalogdomain.Plan](conn),
		AddOns:      repository.ProvideStore[catalogdomain.AddOn](conn),
		DataCenters: repository.ProvideStore[catalogdomain.DataCenter](conn),
	})
	s.Wallet = walletservice.New(walletservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: walletrepo.Provide(), Notifier: notifier,
	})
	s.Invoices = invoiceservice.New(invoiceservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: invoicerepo.Provide(), Notifier: notifier,
	})
	s.Orders = orderservice.New(orderservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      orderrepo.Provide(),
		Catalog:   s.Catalog,
		Invoices:  s.Invoices,
		Wallet:    s.Wallet,
		Lifecycle: lifecycle,
		Notifier:  notifier,
	})
	s.Support = supportservice.New(supportservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Tickets:  repository.ProvideStore[supportdomain.Ticket](conn),
		Messages: repository.ProvideStore[supportdomain.TicketMessage](conn),
		Notifier: notifier,
	})
	s.Provisioning = provisioningservice.New(provisioningservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      provisioningrepo.Provide(),
		Orders:    s.Orders,
		Invoices:  s.Invoices,
		Wallet:    s.Wallet,
		Support:   s.Support,
		Lifecycle: lifecycle,
		Notifier:  notifier,
	})
	s.Payments = paymentservice.New(paymentservice.Params{
		DB:           conn,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Repo:         paymentrepo.Provide(),
		Invoices:     s.Invoices,
		Orders:       s.Orders,
		Provisioning: s.Provisioning,
		Wallet:       s.Wallet,
		Notifier:     notifier,
	})
	s.Settings = settingsservice.New(settingsservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Settings: repository.ProvideStore[settingsdomain.SiteSettings](conn),
		Contacts: repository.ProvideStore[settingsdomain.ContactMessage](conn),
		Notifier: notifier,
	})
	return s
}

// CreatePlan returns the stack's active plan priced 30.00 / 80.00 / 300.00,
// creating it on first use.
func (s *Stack) CreatePlan(t testing.TB) catalogdomain.Plan {
	t.Helper()
	if s.plan != nil {
		return *s.plan
	}
	plan, err := s.Catalog.CreatePlan(context.Background(), catalogdomain.PlanInput{
		Name:           "VPS Starter",
		Type:           catalogdomain.PlanTypeVPS,
		CPU:            "2 vCPU",
		RAM:            "4 GB",
		Storage:        "80 GB SSD",
		Bandwidth:      "2 TB",
		PriceMonthly:   3000,
		PriceQuarterly: 8000,
		PriceYearly:    30000,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	s.plan = &plan
	return plan
}

// PlaceOrder places a monthly order for plan and fails the test on error.
func (s *Stack) PlaceOrder(t testing.TB, user userdomain.User, plan catalogdomain.Plan, method orderdomain.PaymentMethod) orderdomain.PlaceOrderResult {
	t.Helper()
	res, err := s.Orders.PlaceOrder(context.Background(), orderdomain.PlaceOrderRequest{
		UserID:        user.ID,
		PlanID:        plan.ID.String(),
		BillingCycle:  pricing.CycleMonthly,
		OS:            "Ubuntu 24.04",
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return res
}

// Credentials returns a valid set of server access details.
func Credentials() provisioningdomain.Credentials {
	return provisioningdomain.Credentials{
		Hostname:  "vps-01.cloudnest.test",
		IPAddress: "203.0.113.10",
		Username:  "root",
		Password:  "s3cret-pass",
	}
}

// Provision provisions a server for an already paid order.
func (s *Stack) Provision(t testing.TB, order orderdomain.Order) provisioningdomain.Server {
	t.Helper()
	server, err := s.Provisioning.Provision(context.Background(), provisioningdomain.ProvisionRequest{
		OrderID:     order.ID.String(),
		Credentials: Credentials(),
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	return server
}

// Balance reads the user's wallet balance.
func (s *Stack) Balance(t testing.TB, userID snowflake.ID) int64 {
	t.Helper()
	balance, err := s.Wallet.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}
