package search

import "go.uber.org/fx"

// Module provides the search repository to Fx.
var Module = fx.Provide(NewRepository)
