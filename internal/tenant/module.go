package tenant

import "go.uber.org/fx"

// Module provides the session token manager.
var Module = fx.Provide(NewTokenManager)
