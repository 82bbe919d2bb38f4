package activity

import "go.uber.org/fx"

// Module provides the activity repository to Fx.
var Module = fx.Provide(NewRepository)
