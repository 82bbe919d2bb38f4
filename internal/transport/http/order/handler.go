package order

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/dto"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/request"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	repo "github.com/Additional-Code/cannadmin/internal/repository/order"
	service "github.com/Additional-Code/cannadmin/internal/service/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/order")

// Service is the order behaviour the handlers depend on.
type Service interface {
	Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, sess tenant.Session, f repo.Filter) ([]entity.Order, int, error)
	Create(ctx context.Context, sess tenant.Session, order *entity.Order) error
	UpdateStatus(ctx context.Context, sess tenant.Session, id uuid.UUID, to entity.OrderStatus) (*entity.Order, error)
	BulkUpdateStatus(ctx context.Context, sess tenant.Session, ids []uuid.UUID, to entity.OrderStatus) ([]service.BulkResult, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	orders := g.Group("/orders")
	orders.GET("", h.list)
	orders.POST("", h.create)
	orders.POST("/status", h.bulkStatus)
	orders.GET("/:id", h.getByID)
	orders.PATCH("/:id/status", h.updateStatus)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	f := repo.Filter{
		Status: entity.OrderStatus(c.QueryParam("status")),
		Source: entity.OrderSource(c.QueryParam("source")),
	}
	f.Limit, f.Offset = request.Page(c)
	if raw := c.QueryParam("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid customer_id", errorbank.WithCause(err))).Build()
		}
		f.CustomerID = &id
	}
	if raw := c.QueryParam("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid store_id", errorbank.WithCause(err))).Build()
		}
		f.StoreID = &id
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, total, err := h.svc.List(ctx, sess, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(orders).WithPage(total, f.Limit, f.Offset).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.Get(ctx, sess, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.OrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	order := payload.ToEntity()

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.Int("order.items", len(order.Items)))
	defer span.End()

	if err := h.svc.Create(ctx, sess, order); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(order).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.StatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.status", string(payload.Status)),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, sess, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) bulkStatus(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.BulkStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.bulkStatus", trace.WithAttributes(
		attribute.Int("orders.count", len(payload.IDs)),
		attribute.String("order.status", string(payload.Status)),
	))
	defer span.End()

	results, err := h.svc.BulkUpdateStatus(ctx, sess, payload.IDs, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.BulkStatusResult, 0, len(results))
	failed := 0
	for _, r := range results {
		item := dto.BulkStatusResult{OrderID: r.OrderID, Applied: r.Error == nil, Order: r.Order}
		if r.Error != nil {
			failed++
			appErr := errorbank.From(r.Error)
			item.Error = &dto.ErrorBody{Kind: string(appErr.Kind()), Message: appErr.Message()}
		}
		out = append(out, item)
	}
	return b.WithData(out).WithMeta("failed", failed).Build()
}
