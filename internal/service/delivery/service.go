package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	deliveryrepo "github.com/Additional-Code/cannadmin/internal/repository/delivery"
	orderrepo "github.com/Additional-Code/cannadmin/internal/repository/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

const trailLimit = 200

// ErrNotInTransit is returned when pings are sent for an order that is not on the road.
var ErrNotInTransit = errorbank.Conflict("order is not out for delivery")

// PingStore persists courier locations.
type PingStore interface {
	Insert(ctx context.Context, s tenant.Session, p *entity.DeliveryPing) error
	Trail(ctx context.Context, s tenant.Session, orderID uuid.UUID, limit int) ([]entity.DeliveryPing, error)
}

// OrderReader resolves the order a ping belongs to.
type OrderReader interface {
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error)
}

// Tracking is the live position of a delivery.
type Tracking struct {
	OrderID uuid.UUID             `json:"order_id"`
	Status  entity.OrderStatus    `json:"status"`
	Latest  *entity.DeliveryPing  `json:"latest,omitempty"`
	Trail   []entity.DeliveryPing `json:"trail"`
}

// Service records and reads courier positions.
type Service struct {
	pings   PingStore
	orders  OrderReader
	emitter realtime.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a new Service instance.
func NewService(pings *deliveryrepo.Repository, orders *orderrepo.Repository, emitter realtime.Emitter, logger *zap.Logger) *Service {
	return New(pings, orders, emitter, logger)
}

// New builds a Service.
func New(pings PingStore, orders OrderReader, emitter realtime.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pings: pings, orders: orders, emitter: emitter, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// RecordPing stores a courier position for an order that is out for delivery.
func (s *Service) RecordPing(ctx context.Context, sess tenant.Session, orderID uuid.UUID, lat, lng float64) (*entity.DeliveryPing, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, errorbank.BadRequest("coordinates out of range",
			errorbank.WithDetail("latitude", lat), errorbank.WithDetail("longitude", lng))
	}
	order, err := s.order(ctx, sess, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusOutForDelivery && order.Status != entity.OrderStatusInTransit {
		return nil, ErrNotInTransit
	}

	p := &entity.DeliveryPing{
		OrderID:    orderID,
		CourierID:  sess.Actor(),
		Latitude:   lat,
		Longitude:  lng,
		RecordedAt: s.now(),
	}
	if err := s.pings.Insert(ctx, sess, p); err != nil {
		return nil, errorbank.Internal("failed to record ping", errorbank.WithCause(err))
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, realtime.NewChange(realtime.TableDeliveryPings, realtime.EventInsert, sess.TenantID, orderID))
	}
	return p, nil
}

// Track returns the latest position and the recent trail of an order.
func (s *Service) Track(ctx context.Context, sess tenant.Session, orderID uuid.UUID) (*Tracking, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	order, err := s.order(ctx, sess, orderID)
	if err != nil {
		return nil, err
	}
	trail, err := s.pings.Trail(ctx, sess, orderID, trailLimit)
	if err != nil {
		return nil, errorbank.Internal("failed to load trail", errorbank.WithCause(err))
	}
	t := &Tracking{OrderID: orderID, Status: order.Status, Trail: trail}
	if len(trail) > 0 {
		t.Latest = &trail[0]
	}
	return t, nil
}

func (s *Service) order(ctx context.Context, sess tenant.Session, id uuid.UUID) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, sess, id)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}
