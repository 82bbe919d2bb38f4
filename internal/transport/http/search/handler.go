package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	service "github.com/Additional-Code/cannadmin/internal/service/search"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/search")

// Service is the search behaviour the handler depends on.
type Service interface {
	Search(ctx context.Context, sess tenant.Session, term string) (*service.Results, error)
	MinTermLength() int
}

// Handler exposes global search.
type Handler struct {
	svc Service
}

// NewHandler constructs a search Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	g.GET("/search", h.search)
}

type prompt struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) search(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "search.search")
	defer span.End()

	res, err := h.svc.Search(ctx, sess, c.QueryParam("q"))
	if errors.Is(err, service.ErrTermTooShort) {
		// A short term is a prompt to keep typing, not a failure.
		msg := fmt.Sprintf("Type at least %d characters to search", h.svc.MinTermLength())
		return b.WithData(prompt{Prompt: msg}).Build()
	}
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(res).WithMeta("total", res.Total()).Build()
}
