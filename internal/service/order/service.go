package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/optimistic"
	"github.com/Additional-Code/cannadmin/internal/pricing"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	activityrepo "github.com/Additional-Code/cannadmin/internal/repository/activity"
	customerrepo "github.com/Additional-Code/cannadmin/internal/repository/customer"
	repo "github.com/Additional-Code/cannadmin/internal/repository/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/cannadmin/service/order")
	meter         = otel.Meter("github.com/Additional-Code/cannadmin/service/order")
)

// Repository is the order persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, s tenant.Session, order *entity.Order) error
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, s tenant.Session, f repo.Filter) ([]entity.Order, int, error)
	TransitionStatus(ctx context.Context, s tenant.Session, t repo.Transition) (*entity.Order, error)
	MarkCompleted(ctx context.Context, s tenant.Session, orderID, transactionID uuid.UUID) error
}

// CustomerReader resolves the pricing class of a buyer.
type CustomerReader interface {
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Customer, error)
}

// ActivityStore appends audit entries.
type ActivityStore interface {
	Append(ctx context.Context, s tenant.Session, entries ...entity.ActivityLog) error
}

// Service encapsulates business logic around orders.
type Service struct {
	repo       Repository
	customers  CustomerReader
	activities ActivityStore
	views      optimistic.Store[entity.Order]
	cache      cache.Store
	rules      pricing.Rules
	emitter    realtime.Emitter
	logger     *zap.Logger
	now        func() time.Time
	transits   metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Customers  *customerrepo.Repository
	Activities *activityrepo.Repository
	Cache      cache.Store
	Config     config.Config
	Emitter    realtime.Emitter
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Customers, p.Activities, p.Cache, p.Config, p.Emitter, p.Logger)
}

// New builds a Service from its collaborators.
func New(r Repository, customers CustomerReader, activities ActivityStore, c cache.Store, cfg config.Config, emitter realtime.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Status updates stage their optimistic view in the cache, so a process-local store stands in.
	if c == nil {
		c = cache.NewMemoryStore()
	}
	transits, err := meter.Int64Counter("orders.status_transitions",
		metric.WithDescription("Order status transitions by outcome"))
	if err != nil {
		logger.Warn("order transition counter unavailable", zap.Error(err))
	}
	return &Service{
		repo:       r,
		customers:  customers,
		activities: activities,
		views:      optimistic.NewCacheStore[entity.Order](c, cfg.Cache.DefaultTTL),
		cache:      c,
		rules:      pricing.RulesFromConfig(cfg.POS),
		emitter:    emitter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		transits:   transits,
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Order, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	key := cache.OrderKey(sess.TenantID, id)
	if order, ok, err := s.views.Load(ctx, key); err == nil && ok {
		return &order, nil
	} else if err != nil {
		s.logger.Warn("orders cache read failed", zap.String("id", id.String()), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, sess, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.views.Save(ctx, key, *order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id.String()), zap.Error(err))
	}
	return order, nil
}

// List returns a page of orders.
func (s *Service) List(ctx context.Context, sess tenant.Session, f repo.Filter) ([]entity.Order, int, error) {
	if err := sess.Validate(); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !KnownStatus(f.Status) {
		return nil, 0, errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", f.Status))
	}
	orders, total, err := s.repo.List(ctx, sess, f)
	if err != nil {
		return nil, 0, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, total, nil
}

// Create prices and persists a new pending order.
func (s *Service) Create(ctx context.Context, sess tenant.Session, order *entity.Order) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	if len(order.Items) == 0 {
		return errorbank.BadRequest("order must contain at least one item")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int("order.items", len(order.Items))))
	defer span.End()

	customerType := ""
	if order.CustomerID != nil && s.customers != nil {
		c, err := s.customers.GetByID(ctx, sess, *order.CustomerID)
		if errors.Is(err, customerrepo.ErrNotFound) {
			return errorbank.BadRequest("customer not found")
		}
		if err != nil {
			return errorbank.Internal("failed to load customer", errorbank.WithCause(err))
		}
		customerType = string(c.Type)
	}

	lines := make([]pricing.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	totals, err := s.rules.Compute(lines, customerType)
	if err != nil {
		return errorbank.BadRequest(err.Error())
	}

	now := s.now()
	order.Subtotal, order.Tax, order.Discount, order.Total = totals.Subtotal, totals.Tax, totals.Discount, totals.Total
	order.Status = entity.OrderStatusPending
	if order.Source == "" {
		order.Source = entity.OrderSourceDirect
	}
	if order.Fulfillment == "" {
		order.Fulfillment = entity.FulfillmentDelivery
	}
	if order.Number == "" {
		order.Number = fmt.Sprintf("ORD-%s", now.Format("20060102-150405.000"))
	}
	order.CreatedAt, order.UpdatedAt = now, now

	if err := s.repo.Create(ctx, sess, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.views.Save(ctx, cache.OrderKey(sess.TenantID, order.ID), *order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.ID.String()), zap.Error(err))
	}
	s.emit(ctx, sess, realtime.EventInsert, order.ID)
	return nil
}

// UpdateStatus moves an order to status `to`. The cached order view is updated
// speculatively and restored if the write is rejected; failures are not retried.
func (s *Service) UpdateStatus(ctx context.Context, sess tenant.Session, id uuid.UUID, to entity.OrderStatus) (*entity.Order, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if !KnownStatus(to) {
		return nil, errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", to))
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	var from entity.OrderStatus
	at := s.now()
	updated, outcome, err := optimistic.Run(ctx, s.views, optimistic.Mutation[entity.Order]{
		Key: cache.OrderKey(sess.TenantID, id),
		Apply: func(prev entity.Order, had bool) (entity.Order, bool) {
			if !had || !CanTransition(prev.Status, to) {
				return prev, false
			}
			next := prev
			next.Status = to
			next.UpdatedAt = at
			return next, true
		},
		Commit: func(ctx context.Context) (entity.Order, error) {
			current, err := s.repo.GetByID(ctx, sess, id)
			if err != nil {
				return entity.Order{}, err
			}
			from = current.Status
			if !CanTransition(from, to) {
				return entity.Order{}, errorbank.Conflict(
					fmt.Sprintf("order cannot move from %s to %s", from, to),
					errorbank.WithDetail("from", from), errorbank.WithDetail("to", to))
			}
			out, err := s.repo.TransitionStatus(ctx, sess, repo.Transition{OrderID: id, From: from, To: to, At: at})
			if err != nil {
				return entity.Order{}, err
			}
			return *out, nil
		},
	})
	if outcome.StoreErr != nil {
		s.logger.Warn("order view update failed", zap.String("id", id.String()), zap.Error(outcome.StoreErr))
	}
	if err != nil {
		s.count(ctx, to, "rejected")
		if outcome.RolledBack {
			s.logger.Info("order status update rolled back", zap.String("id", id.String()), zap.String("to", string(to)), zap.Error(err))
		}
		return nil, s.mapError(span, err)
	}

	s.count(ctx, to, "applied")
	s.emit(ctx, sess, realtime.EventUpdate, id)
	s.audit(ctx, sess, &updated, from)
	return &updated, nil
}

// BulkResult is the per-order outcome of a bulk status update.
type BulkResult struct {
	OrderID uuid.UUID     `json:"order_id"`
	Order   *entity.Order `json:"order,omitempty"`
	Error   error         `json:"-"`
}

// BulkUpdateStatus applies UpdateStatus to every id and reports each outcome.
func (s *Service) BulkUpdateStatus(ctx context.Context, sess tenant.Session, ids []uuid.UUID, to entity.OrderStatus) ([]BulkResult, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errorbank.BadRequest("at least one order id is required")
	}
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		order, err := s.UpdateStatus(ctx, sess, id, to)
		results = append(results, BulkResult{OrderID: id, Order: order, Error: err})
	}
	return results, nil
}

// CompleteFromSale closes a pending order that was paid at the register.
func (s *Service) CompleteFromSale(ctx context.Context, sess tenant.Session, orderID, transactionID uuid.UUID) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CompleteFromSale", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	if err := s.repo.MarkCompleted(ctx, sess, orderID, transactionID); err != nil {
		return s.mapError(span, err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.OrderKey(sess.TenantID, orderID)); err != nil {
			s.logger.Warn("orders cache invalidation failed", zap.String("id", orderID.String()), zap.Error(err))
		}
	}
	s.emit(ctx, sess, realtime.EventUpdate, orderID)
	return nil
}

func (s *Service) mapError(span trace.Span, err error) error {
	var appErr *errorbank.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrStatusChanged):
		return errorbank.Conflict("order status changed, refresh and try again", errorbank.WithCause(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
}

func (s *Service) emit(ctx context.Context, sess tenant.Session, typ realtime.EventType, id uuid.UUID) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, realtime.NewChange(realtime.TableOrders, typ, sess.TenantID, id))
}

func (s *Service) audit(ctx context.Context, sess tenant.Session, order *entity.Order, from entity.OrderStatus) {
	if s.activities == nil {
		return
	}
	entry := entity.ActivityLog{
		ActivityType: entity.ActivityOrderStatusChanged,
		Description:  fmt.Sprintf("order %s: %s -> %s", order.Number, from, order.Status),
		Entity:       "order",
		EntityID:     &order.ID,
	}
	if err := s.activities.Append(ctx, sess, entry); err != nil {
		s.logger.Warn("activity log append failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func (s *Service) count(ctx context.Context, to entity.OrderStatus, outcome string) {
	if s.transits == nil {
		return
	}
	s.transits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(to)),
		attribute.String("outcome", outcome),
	))
}
