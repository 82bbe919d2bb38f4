package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/messaging"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	orderrepo "github.com/Additional-Code/cannadmin/internal/repository/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/internal/worker"
)

var (
	workerTracer = otel.Tracer("github.com/Additional-Code/cannadmin/worker/order")
	meter        = otel.Meter("github.com/Additional-Code/cannadmin/worker/order")
)

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// OrderReader loads the order a change refers to.
type OrderReader interface {
	GetByID(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error)
}

// NewOrderEventsHandler sets up a worker handler that logs order changes from the feed.
func NewOrderEventsHandler(orders *orderrepo.Repository, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Name:    "order-events",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: newHandler(orders, logger),
	}
}

func newHandler(orders OrderReader, logger *zap.Logger) messaging.Handler {
	counter, err := meter.Int64Counter("orders.changes", metric.WithDescription("Order change events consumed from the feed"))
	if err != nil {
		logger.Warn("order change counter unavailable", zap.Error(err))
	}

	return func(ctx context.Context, msg messaging.Message) error {
		if table, ok := msg.Headers[realtime.HeaderTable]; ok && table != realtime.TableOrders {
			return nil
		}
		change, err := realtime.Decode(msg.Value)
		if err != nil {
			logger.Error("failed to decode change", zap.Error(err))
			return nil
		}
		if change.Table != realtime.TableOrders {
			return nil
		}

		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("order.id", change.RecordID.String()),
			attribute.String("change.type", string(change.Type)),
		))
		defer span.End()

		if counter != nil {
			counter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(change.Type))))
		}

		fields := []zap.Field{
			zap.String("tenant_id", change.TenantID.String()),
			zap.String("id", change.RecordID.String()),
			zap.String("type", string(change.Type)),
			zap.Time("at", change.At),
		}
		if change.Type == realtime.EventDelete {
			logger.Info("order change processed", fields...)
			return nil
		}

		sess := tenant.Session{TenantID: change.TenantID, Role: tenant.RoleSystem}
		order, err := orders.GetByID(ctx, sess, change.RecordID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			logger.Warn("order change for missing order", fields...)
			return nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load order")
			return err
		}

		logger.Info("order change processed", append(fields,
			zap.String("number", order.Number),
			zap.String("status", string(order.Status)),
			zap.String("source", string(order.Source)),
		)...)
		return nil
	}
}
