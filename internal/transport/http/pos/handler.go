package pos

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
	"github.com/Additional-Code/cannadmin/internal/pricing"
	service "github.com/Additional-Code/cannadmin/internal/service/pos"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/pos")

// Service is the register behaviour the handlers depend on.
type Service interface {
	Quote(ctx context.Context, sess tenant.Session, req service.CheckoutRequest) (pricing.Totals, error)
	Checkout(ctx context.Context, sess tenant.Session, req service.CheckoutRequest) (*service.Receipt, error)
	Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.PosTransaction, error)
	List(ctx context.Context, sess tenant.Session, limit, offset int) ([]entity.PosTransaction, int, error)
}

// Handler exposes point-of-sale endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs a pos Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	pos := g.Group("/pos")
	pos.POST("/quote", h.quote)
	pos.POST("/checkout", h.checkout)
	pos.GET("/transactions", h.list)
	pos.GET("/transactions/:id", h.getByID)
}

func (h *Handler) quote(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var req service.CheckoutRequest
	if err := request.Bind(c, &req); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pos.quote", trace.WithAttributes(attribute.Int("pos.items", len(req.Items))))
	defer span.End()

	totals, err := h.svc.Quote(ctx, sess, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(totals).Build()
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var req service.CheckoutRequest
	if err := request.Bind(c, &req); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pos.checkout", trace.WithAttributes(
		attribute.Int("pos.items", len(req.Items)),
		attribute.String("pos.payment_method", string(req.PaymentMethod)),
	))
	defer span.End()

	receipt, err := h.svc.Checkout(ctx, sess, req)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(receipt).WithMeta("path", receipt.Path).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, offset := request.Page(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "pos.list")
	defer span.End()

	txs, total, err := h.svc.List(ctx, sess, limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(txs).WithPage(total, limit, offset).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "pos.getByID", trace.WithAttributes(attribute.String("pos.transaction_id", id.String())))
	defer span.End()

	tx, err := h.svc.Get(ctx, sess, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(tx).Build()
}
