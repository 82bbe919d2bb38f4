package delivery

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/request"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	service "github.com/Additional-Code/cannadmin/internal/service/delivery"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/delivery")

// Service is the tracking behaviour the handlers depend on.
type Service interface {
	RecordPing(ctx context.Context, sess tenant.Session, orderID uuid.UUID, lat, lng float64) (*entity.DeliveryPing, error)
	Track(ctx context.Context, sess tenant.Session, orderID uuid.UUID) (*service.Tracking, error)
}

// Handler exposes delivery tracking endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs a delivery Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	deliveries := g.Group("/deliveries")
	deliveries.GET("/:orderId", h.track)
	deliveries.POST("/:orderId/pings", h.recordPing)
}

func (h *Handler) recordPing(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	orderID, err := request.UUIDParam(c, "orderId")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliveries.recordPing", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	ping, err := h.svc.RecordPing(ctx, sess, orderID, payload.Latitude, payload.Longitude)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(ping).Build()
}

func (h *Handler) track(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	orderID, err := request.UUIDParam(c, "orderId")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliveries.track", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	tracking, err := h.svc.Track(ctx, sess, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(tracking).Build()
}
