// Package request holds the echo helpers shared by HTTP handlers.
package request

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

const (
	defaultLimit = 25
	maxLimit     = 100
)

// UUIDParam parses a path parameter as a uuid.
func UUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errorbank.BadRequest("invalid "+name, errorbank.WithCause(err))
	}
	return id, nil
}

// Page reads limit and offset query parameters with defaults and bounds.
func Page(c echo.Context) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// Bind decodes the request body, mapping failures to a bad request.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}
