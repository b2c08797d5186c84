package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/cloudnest/internal/auth"
	authdomain "github.com/smallbiznis/cloudnest/internal/auth/domain"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/smallbiznis/cloudnest/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/cloudnest/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/observability"
	obsmiddleware "github.com/smallbiznis/cloudnest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cloudnest/internal/observability/metrics"
	obstracing "github.com/smallbiznis/cloudnest/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	paymentdomain "github.com/smallbiznis/cloudnest/internal/payment/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the REST API. The billing domain modules are supplied by the
// binary.
var Module = fx.Module("http.server",
	auth.Module,
	dashboard.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if corsCfg, ok := corsConfig(cfg.CORSAllowedOrigins); ok {
		r.Use(cors.New(corsCfg))
	}
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"}
	cfg.ExposeHeaders = []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg, true
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg, true
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	authGateway  authdomain.Gateway
	userSvc      userdomain.Service
	catalogSvc   catalogdomain.Service
	walletSvc    walletdomain.Service
	invoiceSvc   invoicedomain.Service
	orderSvc     orderdomain.Service
	serverSvc    provisioningdomain.Service
	supportSvc   supportdomain.Service
	paymentSvc   paymentdomain.Service
	dashboardSvc dashboarddomain.Service
	settingsSvc  settingsdomain.Service

	scheduler  *scheduler.Scheduler
	limiter    *ratelimit.Limiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	AuthGateway  authdomain.Gateway
	UserSvc      userdomain.Service
	CatalogSvc   catalogdomain.Service
	WalletSvc    walletdomain.Service
	InvoiceSvc   invoicedomain.Service
	OrderSvc     orderdomain.Service
	ServerSvc    provisioningdomain.Service
	SupportSvc   supportdomain.Service
	PaymentSvc   paymentdomain.Service
	DashboardSvc dashboarddomain.Service
	SettingsSvc  settingsdomain.Service

	Scheduler  *scheduler.Scheduler `optional:"true"`
	Limiter    *ratelimit.Limiter   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authGateway:  p.AuthGateway,
		userSvc:      p.UserSvc,
		catalogSvc:   p.CatalogSvc,
		walletSvc:    p.WalletSvc,
		invoiceSvc:   p.InvoiceSvc,
		orderSvc:     p.OrderSvc,
		serverSvc:    p.ServerSvc,
		supportSvc:   p.SupportSvc,
		paymentSvc:   p.PaymentSvc,
		dashboardSvc: p.DashboardSvc,
		settingsSvc:  p.SettingsSvc,
		scheduler:    p.Scheduler,
		limiter:      p.Limiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerCustomerRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	pub := s.engine.Group("/api")

	pub.GET("/settings/public", s.GetPublicSettings)
	pub.POST("/contact", s.RateLimit(ratelimit.PolicyContact), s.SubmitContact)
}

func (s *Server) registerCustomerRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Catalog --------
	api.GET("/plans", s.ListPlans)
	api.GET("/plans/:id", s.GetPlan)
	api.GET("/addons", s.ListAddOns)
	api.GET("/datacenters", s.ListDataCenters)

	// -------- Orders --------
	api.POST("/orders", s.RateLimit(ratelimit.PolicyPlaceOrder), s.PlaceOrder)
	api.GET("/orders", s.ListMyOrders)
	api.GET("/orders/:id", s.GetMyOrder)

	// -------- Servers --------
	api.GET("/servers", s.ListMyServers)
	api.GET("/servers/:id", s.GetMyServer)
	api.POST("/servers/:id/control", s.RequestServerControl)

	// -------- Invoices --------
	api.GET("/invoices", s.ListMyInvoices)
	api.GET("/invoices/:id", s.GetMyInvoice)
	api.POST("/invoices/:id/pay-wallet", s.PayInvoiceWithWallet)
	api.POST("/invoices/:id/payment-proof", s.SubmitPaymentProof)

	// -------- Profile --------
	api.GET("/user/profile", s.GetProfile)
	api.PUT("/user/profile", s.UpdateProfile)

	// -------- Wallet --------
	api.GET("/user/wallet", s.GetWallet)
	api.GET("/user/wallet/transactions", s.ListWalletTransactions)
	api.GET("/user/wallet/topups", s.ListMyTopUps)
	api.POST("/user/wallet/topup", s.RateLimit(ratelimit.PolicyTopUp), s.RequestTopUp)

	// -------- Support --------
	api.POST("/tickets", s.OpenTicket)
	api.GET("/tickets", s.ListMyTickets)
	api.GET("/tickets/:id", s.GetMyTicket)
	api.POST("/tickets/:id/messages", s.ReplyToMyTicket)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired(), s.RequireStaff())

	admin.GET("/dashboard", s.GetDashboard)

	// -------- Orders --------
	admin.GET("/orders", s.ListOrders)
	admin.PUT("/orders/:id", s.UpdateOrder)
	admin.POST("/orders/:id/refund", s.RefundOrder)

	// -------- Servers --------
	admin.POST("/servers", s.ProvisionServer)
	admin.GET("/servers", s.ListServers)
	admin.PUT("/servers/:id", s.UpdateServerCredentials)
	admin.POST("/servers/:id/send-credentials", s.SendServerCredentials)
	admin.POST("/servers/:id/suspend", s.SuspendServer)
	admin.POST("/servers/:id/unsuspend", s.UnsuspendServer)
	admin.POST("/servers/:id/cancel", s.CancelServer)

	// -------- Invoices --------
	admin.GET("/invoices", s.ListInvoices)
	admin.PUT("/invoices/:id", s.SettleInvoice)

	// -------- Users & wallets --------
	admin.GET("/users", s.ListUsers)
	admin.PUT("/users/:id", s.UpdateUser)
	admin.POST("/users/:id/wallet-adjustments", s.AdjustWallet)
	admin.GET("/topup-requests", s.ListTopUps)
	admin.PUT("/topup-requests/:id", s.ReviewTopUp)

	// -------- Catalog --------
	admin.GET("/plans", s.AdminListPlans)
	admin.POST("/plans", s.CreatePlan)
	admin.PUT("/plans/:id", s.UpdatePlan)
	admin.DELETE("/plans/:id", s.DeactivatePlan)
	admin.GET("/addons", s.AdminListAddOns)
	admin.POST("/addons", s.CreateAddOn)
	admin.PUT("/addons/:id", s.UpdateAddOn)
	admin.DELETE("/addons/:id", s.DeactivateAddOn)
	admin.GET("/datacenters", s.AdminListDataCenters)
	admin.POST("/datacenters", s.CreateDataCenter)
	admin.PUT("/datacenters/:id", s.UpdateDataCenter)
	admin.DELETE("/datacenters/:id", s.DeactivateDataCenter)

	// -------- Support --------
	admin.GET("/tickets", s.ListTickets)
	admin.GET("/tickets/:id", s.GetTicket)
	admin.POST("/tickets/:id/messages", s.ReplyToTicket)
	admin.PUT("/tickets/:id/status", s.SetTicketStatus)

	// -------- Settings --------
	admin.GET("/settings", s.GetSettings)
	admin.PUT("/settings", s.UpdateSettings)

	// -------- Lifecycle sweeps --------
	admin.POST("/run-renewal-check", s.runJobHandler(scheduler.JobRenewal))
	admin.POST("/run-suspend-check", s.runJobHandler(scheduler.JobSuspension))
	admin.POST("/run-cancel-check", s.runJobHandler(scheduler.JobCancellation))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
