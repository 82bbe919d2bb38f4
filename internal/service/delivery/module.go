package delivery

import "go.uber.org/fx"

// Module provides the delivery service to Fx.
var Module = fx.Provide(NewService)
