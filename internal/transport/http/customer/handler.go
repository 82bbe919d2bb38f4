package customer

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
	service "github.com/Additional-Code/cannadmin/internal/service/customer"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/customer")

// Service is the directory behaviour the handlers depend on.
type Service interface {
	Create(ctx context.Context, sess tenant.Session, in service.Input) (*entity.Customer, error)
	Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Customer, error)
	List(ctx context.Context, sess tenant.Session, customerType entity.CustomerType, limit, offset int) ([]entity.Customer, int, error)
	UpdateType(ctx context.Context, sess tenant.Session, id uuid.UUID, raw string) (*entity.Customer, error)
}

// Handler exposes customer endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs a customer Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	customers := g.Group("/customers")
	customers.GET("", h.list)
	customers.POST("", h.create)
	customers.GET("/:id", h.getByID)
	customers.PATCH("/:id/type", h.updateType)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, offset := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.list")
	defer span.End()

	customers, total, err := h.svc.List(ctx, sess, entity.CustomerType(c.QueryParam("type")), limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(customers).WithPage(total, limit, offset).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.getByID", trace.WithAttributes(attribute.String("customer.id", id.String())))
	defer span.End()

	customer, err := h.svc.Get(ctx, sess, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(customer).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.create")
	defer span.End()

	customer, err := h.svc.Create(ctx, sess, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(customer).Build()
}

func (h *Handler) updateType(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload struct {
		Type string `json:"customer_type"`
	}
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "customers.updateType", trace.WithAttributes(
		attribute.String("customer.id", id.String()),
		attribute.String("customer.type", payload.Type),
	))
	defer span.End()

	customer, err := h.svc.UpdateType(ctx, sess, id, payload.Type)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(customer).Build()
}
