package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/catalog"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/smallbiznis/cloudnest/internal/invoice"
	"github.com/smallbiznis/cloudnest/internal/migration"
	"github.com/smallbiznis/cloudnest/internal/notification"
	"github.com/smallbiznis/cloudnest/internal/observability"
	"github.com/smallbiznis/cloudnest/internal/order"
	"github.com/smallbiznis/cloudnest/internal/payment"
	"github.com/smallbiznis/cloudnest/internal/provisioning"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
	"github.com/smallbiznis/cloudnest/internal/server"
	"github.com/smallbiznis/cloudnest/internal/settings"
	"github.com/smallbiznis/cloudnest/internal/support"
	"github.com/smallbiznis/cloudnest/internal/user"
	"github.com/smallbiznis/cloudnest/internal/wallet"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"go.uber.org/fx"
)

// The monolith serves the customer and admin APIs and runs the lifecycle
// sweeps in the same process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		notification.Module,

		// Functional Domains
		user.Module,
		catalog.Module,
		wallet.Module,
		invoice.Module,
		order.Module,
		support.Module,
		settings.Module,
		provisioning.Module,
		payment.Module,

		scheduler.Module,
		scheduler.Runner,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
