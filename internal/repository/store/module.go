package store

import "go.uber.org/fx"

// Module provides the storefront repository to Fx.
var Module = fx.Provide(NewRepository)
