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
	"github.com/smallbiznis/cloudnest/internal/provisioning"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
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

		// Domain services required by the sweeps
		user.Module,
		catalog.Module,
		wallet.Module,
		invoice.Module,
		order.Module,
		support.Module,
		provisioning.Module,

		// No server module!
		scheduler.Module,
		scheduler.Runner,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
