package scheduler

import (
	"context"

	"github.com/agendobot/metrics/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		// Size the pool to the connection budget so tenant workers never
		// starve the pool's own writes.
		poolSize = cfg.DBMaxOpenConn / 2
	}
	return Config{
		RunInterval:    cfg.SchedulerInterval,
		WorkerPoolSize: poolSize,
	}
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
