package activity

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/request"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	service "github.com/Additional-Code/cannadmin/internal/service/activity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/activity")

// Service lists audit entries.
type Service interface {
	List(ctx context.Context, sess tenant.Session, activityType string, limit, offset int) ([]entity.ActivityLog, int, error)
}

// Handler exposes the activity log.
type Handler struct {
	svc Service
}

// NewHandler constructs an activity Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	g.GET("/activity", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, offset := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "activity.list")
	defer span.End()

	entries, total, err := h.svc.List(ctx, sess, c.QueryParam("type"), limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(entries).WithPage(total, limit, offset).Build()
}
