package inventory

import "go.uber.org/fx"

// Module provides the inventory service to Fx.
var Module = fx.Provide(NewService)
