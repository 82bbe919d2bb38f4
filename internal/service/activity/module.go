package activity

import "go.uber.org/fx"

// Module provides the activity service to Fx.
var Module = fx.Provide(NewService)
