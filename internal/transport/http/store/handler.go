package store

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
	service "github.com/Additional-Code/cannadmin/internal/service/store"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/store")

// Service is the storefront behaviour the handlers depend on.
type Service interface {
	Create(ctx context.Context, sess tenant.Session, in service.Input) (*entity.Store, error)
	Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*service.View, error)
	List(ctx context.Context, sess tenant.Session) ([]entity.Store, error)
	Update(ctx context.Context, sess tenant.Session, id uuid.UUID, in service.Input) (*entity.Store, error)
	SetFlags(ctx context.Context, sess tenant.Session, id uuid.UUID, f service.Flags) (*entity.Store, error)
}

// Handler exposes white-label storefront endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs a store Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	stores := g.Group("/stores")
	stores.GET("", h.list)
	stores.POST("", h.create)
	stores.GET("/:id", h.getByID)
	stores.PUT("/:id", h.update)
	stores.PATCH("/:id/flags", h.setFlags)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stores.list")
	defer span.End()

	stores, err := h.svc.List(ctx, sess)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stores).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "stores.getByID", trace.WithAttributes(attribute.String("store.id", id.String())))
	defer span.End()

	view, err := h.svc.Get(ctx, sess, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(view).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "stores.create", trace.WithAttributes(attribute.String("store.slug", in.Slug)))
	defer span.End()

	st, err := h.svc.Create(ctx, sess, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(st).Build()
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
	var in service.Input
	if err := request.Bind(c, &in); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stores.update", trace.WithAttributes(attribute.String("store.id", id.String())))
	defer span.End()

	st, err := h.svc.Update(ctx, sess, id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(st).Build()
}

func (h *Handler) setFlags(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var flags service.Flags
	if err := request.Bind(c, &flags); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stores.setFlags", trace.WithAttributes(attribute.String("store.id", id.String())))
	defer span.End()

	st, err := h.svc.SetFlags(ctx, sess, id, flags)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(st).Build()
}
