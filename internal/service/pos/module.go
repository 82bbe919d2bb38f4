package pos

import "go.uber.org/fx"

// Module provides the checkout service to Fx.
var Module = fx.Provide(NewService)
