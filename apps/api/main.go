package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/catalog"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/smallbiznis/cloudnest/internal/invoice"
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

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		notification.Module,

		user.Module,
		catalog.Module,
		wallet.Module,
		invoice.Module,
		order.Module,
		support.Module,
		settings.Module,
		provisioning.Module,
		payment.Module,

		// Admin run-*-check endpoints; the periodic loop lives in apps/scheduler.
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
