package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/request"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	inventoryrepo "github.com/Additional-Code/cannadmin/internal/repository/inventory"
	service "github.com/Additional-Code/cannadmin/internal/service/inventory"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/inventory")

// Service is the stock behaviour the handlers depend on.
type Service interface {
	Adjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64, reason string) (*service.Result, error)
	QuickAdjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64) (*service.Result, error)
	ManualAdjust(ctx context.Context, sess tenant.Session, productID uuid.UUID, delta int64, movementType entity.MovementType, reason string) (*service.Result, error)
	Front(ctx context.Context, sess tenant.Session, productID uuid.UUID, qty int64, reason string) (*service.Result, error)
	SettleFront(ctx context.Context, sess tenant.Session, productID uuid.UUID, qty int64, returned bool, reason string) (*service.Result, error)
	Movements(ctx context.Context, sess tenant.Session, f inventoryrepo.MovementFilter) ([]entity.InventoryMovement, int, error)
	LowStock(ctx context.Context, sess tenant.Session, limit, offset int) ([]entity.Product, int, error)
}

// Handler exposes stock adjustment endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs an inventory Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	inv := g.Group("/inventory")
	inv.GET("/movements", h.movements)
	inv.GET("/low-stock", h.lowStock)
	inv.POST("/:productId/adjust", h.adjust)
	inv.POST("/:productId/quick", h.quick)
	inv.POST("/:productId/manual", h.manual)
	inv.POST("/:productId/front", h.front)
	inv.POST("/:productId/settle", h.settle)
}

type adjustPayload struct {
	Delta        int64               `json:"delta"`
	Quantity     int64               `json:"quantity"`
	MovementType entity.MovementType `json:"movement_type"`
	Reason       string              `json:"reason"`
	Returned     bool                `json:"returned"`
}

type mutation func(ctx context.Context, sess tenant.Session, productID uuid.UUID, p adjustPayload) (*service.Result, error)

func (h *Handler) mutate(c echo.Context, op string, fn mutation) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	productID, err := request.UUIDParam(c, "productId")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload adjustPayload
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory."+op, trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int64("inventory.delta", payload.Delta),
	))
	defer span.End()

	res, err := fn(ctx, sess, productID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(res).Build()
}

func (h *Handler) adjust(c echo.Context) error {
	return h.mutate(c, "adjust", func(ctx context.Context, sess tenant.Session, id uuid.UUID, p adjustPayload) (*service.Result, error) {
		return h.svc.Adjust(ctx, sess, id, p.Delta, p.Reason)
	})
}

func (h *Handler) quick(c echo.Context) error {
	return h.mutate(c, "quick", func(ctx context.Context, sess tenant.Session, id uuid.UUID, p adjustPayload) (*service.Result, error) {
		return h.svc.QuickAdjust(ctx, sess, id, p.Delta)
	})
}

func (h *Handler) manual(c echo.Context) error {
	return h.mutate(c, "manual", func(ctx context.Context, sess tenant.Session, id uuid.UUID, p adjustPayload) (*service.Result, error) {
		return h.svc.ManualAdjust(ctx, sess, id, p.Delta, p.MovementType, p.Reason)
	})
}

func (h *Handler) front(c echo.Context) error {
	return h.mutate(c, "front", func(ctx context.Context, sess tenant.Session, id uuid.UUID, p adjustPayload) (*service.Result, error) {
		return h.svc.Front(ctx, sess, id, p.Quantity, p.Reason)
	})
}

func (h *Handler) settle(c echo.Context) error {
	return h.mutate(c, "settle", func(ctx context.Context, sess tenant.Session, id uuid.UUID, p adjustPayload) (*service.Result, error) {
		return h.svc.SettleFront(ctx, sess, id, p.Quantity, p.Returned, p.Reason)
	})
}

func (h *Handler) movements(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	f := inventoryrepo.MovementFilter{Type: entity.MovementType(c.QueryParam("type"))}
	f.Limit, f.Offset = request.Page(c)
	if raw := c.QueryParam("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid product_id", errorbank.WithCause(err))).Build()
		}
		f.ProductID = &id
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.movements")
	defer span.End()

	movements, total, err := h.svc.Movements(ctx, sess, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(movements).WithPage(total, f.Limit, f.Offset).Build()
}

func (h *Handler) lowStock(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, offset := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.lowStock")
	defer span.End()

	products, total, err := h.svc.LowStock(ctx, sess, limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(products).WithPage(total, limit, offset).Build()
}
