package store

import "go.uber.org/fx"

// Module provides the store service to Fx.
var Module = fx.Provide(NewService)
