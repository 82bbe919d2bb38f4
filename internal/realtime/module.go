package realtime

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the hub, the emitter and the cache invalidator.
var Module = fx.Module("realtime",
	fx.Provide(
		func(lc fx.Lifecycle, logger *zap.Logger) *Hub {
			hub := NewHub(logger)
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				hub.Close()
				return nil
			}})
			return hub
		},
		NewEmitter,
		func(e *BusEmitter) Emitter { return e },
		NewInvalidator,
	),
	fx.Invoke(func(lc fx.Lifecycle, inv *Invalidator) {
		lc.Append(fx.Hook{OnStart: inv.Start, OnStop: inv.Stop})
	}),
)
