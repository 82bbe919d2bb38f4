package search

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires the search HTTP handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(g *echo.Group, h *Handler) {
		Register(g, h)
	}),
)
