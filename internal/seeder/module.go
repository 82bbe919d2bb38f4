package seeder

import "go.uber.org/fx"

// Module provides the demo data seeder.
var Module = fx.Provide(New)
