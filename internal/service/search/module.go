package search

import "go.uber.org/fx"

// Module provides the global search service to Fx.
var Module = fx.Provide(NewService)
