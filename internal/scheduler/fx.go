package scheduler

import (
	"context"

	"github.com/smallbiznis/cloudnest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the Scheduler for on-demand passes. Include Runner as well
// to start the periodic sweep.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

var Runner = fx.Module("scheduler.runner",
	fx.Invoke(StartLoop),
)

func StartLoop(lc fx.Lifecycle, cfg config.Config, sched *Scheduler, log *zap.Logger) {
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler loop disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
