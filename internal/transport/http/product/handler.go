package product

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/request"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	repo "github.com/Additional-Code/cannadmin/internal/repository/product"
	service "github.com/Additional-Code/cannadmin/internal/service/product"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/product")

// Service is the catalog behaviour the handlers depend on.
type Service interface {
	Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Product, error)
	List(ctx context.Context, sess tenant.Session, f repo.Filter) ([]entity.Product, int, error)
	Create(ctx context.Context, sess tenant.Session, in service.Input) (*entity.Product, error)
	Update(ctx context.Context, sess tenant.Session, id uuid.UUID, expectedVersion int64, in service.Input) (*entity.Product, error)
	Delete(ctx context.Context, sess tenant.Session, id uuid.UUID) error
}

// Handler exposes catalog endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs a product Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	products := g.Group("/products")
	products.GET("", h.list)
	products.POST("", h.create)
	products.GET("/:id", h.getByID)
	products.PUT("/:id", h.update)
	products.DELETE("/:id", h.delete)
}

type updatePayload struct {
	service.Input
	Version int64 `json:"version"`
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	f := repo.Filter{Category: c.QueryParam("category"), LowStock: c.QueryParam("low_stock") == "true"}
	f.Limit, f.Offset = request.Page(c)
	if raw := c.QueryParam("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid in_stock", errorbank.WithCause(err))).Build()
		}
		f.InStock = &v
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.list")
	defer span.End()

	products, total, err := h.svc.List(ctx, sess, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(products).WithPage(total, f.Limit, f.Offset).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "products.getByID", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	p, err := h.svc.Get(ctx, sess, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(p).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var in service.Input
	if err := request.Bind(c, &in); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.create", trace.WithAttributes(attribute.String("product.sku", in.SKU)))
	defer span.End()

	p, err := h.svc.Create(ctx, sess, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(p).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload updatePayload
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if payload.Version <= 0 {
		return b.WithError(errorbank.BadRequest("version is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.update", trace.WithAttributes(
		attribute.String("product.id", id.String()),
		attribute.Int64("product.version", payload.Version),
	))
	defer span.End()

	p, err := h.svc.Update(ctx, sess, id, payload.Version, payload.Input)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(p).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.delete", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	if err := h.svc.Delete(ctx, sess, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"id": id.String()}).Build()
}
