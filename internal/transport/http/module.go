package http

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/cannadmin/internal/tenant"
	activitytransport "github.com/Additional-Code/cannadmin/internal/transport/http/activity"
	customertransport "github.com/Additional-Code/cannadmin/internal/transport/http/customer"
	deliverytransport "github.com/Additional-Code/cannadmin/internal/transport/http/delivery"
	inventorytransport "github.com/Additional-Code/cannadmin/internal/transport/http/inventory"
	ordertransport "github.com/Additional-Code/cannadmin/internal/transport/http/order"
	postransport "github.com/Additional-Code/cannadmin/internal/transport/http/pos"
	producttransport "github.com/Additional-Code/cannadmin/internal/transport/http/product"
	realtimetransport "github.com/Additional-Code/cannadmin/internal/transport/http/realtime"
	searchtransport "github.com/Additional-Code/cannadmin/internal/transport/http/search"
	storetransport "github.com/Additional-Code/cannadmin/internal/transport/http/store"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	fx.Provide(NewAPIGroup),
	activitytransport.Module,
	customertransport.Module,
	deliverytransport.Module,
	inventorytransport.Module,
	ordertransport.Module,
	postransport.Module,
	producttransport.Module,
	realtimetransport.Module,
	searchtransport.Module,
	storetransport.Module,
)

// NewAPIGroup returns the authenticated route group every tenant-scoped handler mounts on.
func NewAPIGroup(e *echo.Echo, tokens *tenant.TokenManager) *echo.Group {
	return e.Group("/api/v1", tenant.Middleware(tokens))
}
