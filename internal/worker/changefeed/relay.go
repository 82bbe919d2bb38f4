// Package changefeed relays change events from the message bus into the local realtime hub.
package changefeed

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/messaging"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	"github.com/Additional-Code/cannadmin/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/cannadmin/worker/changefeed")

// Module registers the relay with the worker engine.
var Module = fx.Module("worker_changefeed",
	fx.Provide(
		fx.Annotate(
			NewRelay,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Dispatcher receives decoded changes.
type Dispatcher interface {
	Dispatch(c realtime.Change)
}

// NewRelay forwards every change on the feed topic to the hub of this process.
func NewRelay(hub *realtime.Hub, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Name:    "changefeed-relay",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: relay(hub, logger),
	}
}

func relay(hub Dispatcher, logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.changefeed.relay", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		change, err := realtime.Decode(msg.Value)
		if err != nil {
			// A malformed event can never succeed; skipping it keeps the feed moving.
			logger.Error("failed to decode change", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("change.table", change.Table))

		hub.Dispatch(change)
		return nil
	}
}
