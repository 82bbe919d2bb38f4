package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/messaging"
)

var (
	engineTracer = otel.Tracer("github.com/Additional-Code/cannadmin/worker")
	engineMeter  = otel.Meter("github.com/Additional-Code/cannadmin/worker")
)

// HandlerRegistration binds message topics to handlers. Several registrations may share a
// topic; each message is handed to all of them in registration order.
type HandlerRegistration struct {
	Name    string
	Topic   string
	Handler messaging.Handler
}

type route struct {
	name    string
	handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine orchestrates background message consumption.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string][]route
	processed     metric.Int64Counter
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string][]route, len(p.Registrations))
	for i, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("handler-%d", i)
		}
		reg[r.Topic] = append(reg[r.Topic], route{name: name, handler: r.Handler})
	}

	processed, err := engineMeter.Int64Counter("worker.messages.processed",
		metric.WithDescription("Messages handled per registration and outcome"))
	if err != nil {
		p.Logger.Warn("worker counter unavailable", zap.Error(err))
	}

	return &Engine{
		client:        p.Client,
		logger:        p.Logger,
		cfg:           p.Config,
		registrations: reg,
		processed:     processed,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	topics := make([]string, 0, len(e.registrations))
	for topic := range e.registrations {
		topics = append(topics, topic)
	}
	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.Strings("topics", topics))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	base := e.cfg.Messaging.Workers.PollInterval
	if base <= 0 {
		base = time.Second
	}
	backoff := base
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))

			return e.dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// dispatch runs every handler registered for the message topic. All handlers run even when
// one fails; the joined error leaves the message uncommitted for redelivery.
func (e *Engine) dispatch(ctx context.Context, msg messaging.Message) error {
	routes, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))

		return nil
	}

	var errs []error
	for _, r := range routes {
		if err := e.run(ctx, r, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) run(ctx context.Context, r route, msg messaging.Message) error {
	ctx, span := engineTracer.Start(ctx, "worker.dispatch", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.String("worker.handler", r.name),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	outcome := "ok"
	err := r.handler(ctx, msg)
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
	}
	if e.processed != nil {
		e.processed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("handler", r.name),
			attribute.String("outcome", outcome),
		))
	}
	return err
}
