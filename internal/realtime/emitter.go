package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/messaging"
)

// Emitter publishes row changes.
type Emitter interface {
	Emit(ctx context.Context, c Change)
}

// BusEmitter publishes through the message bus when it is enabled so every API instance
// sees the change, and dispatches straight to the local hub otherwise.
type BusEmitter struct {
	client  messaging.Client
	hub     *Hub
	enabled bool
	logger  *zap.Logger
}

// NewEmitter wires the emitter from configuration.
func NewEmitter(cfg config.Config, client messaging.Client, hub *Hub, logger *zap.Logger) *BusEmitter {
	return &BusEmitter{
		client:  client,
		hub:     hub,
		enabled: cfg.Messaging.Enabled && cfg.Messaging.Driver != "noop",
		logger:  logger,
	}
}

// Emit never fails the caller; the write it reports has already committed.
func (e *BusEmitter) Emit(ctx context.Context, c Change) {
	if !e.enabled || e.client == nil {
		e.hub.Dispatch(c)
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		e.logger.Error("marshal change", zap.Error(err))
		e.hub.Dispatch(c)
		return
	}
	if err := e.client.Publish(ctx, []byte(c.TenantID.String()), payload, Headers(c)); err != nil {
		e.logger.Error("publish change; dispatching locally",
			zap.String("table", c.Table),
			zap.Error(err),
		)
		e.hub.Dispatch(c)
	}
}

// Message header names set on every published change.
const (
	HeaderTable = "change-table"
	HeaderType  = "change-type"
)

// Headers lets consumers route a change without decoding the payload.
func Headers(c Change) map[string]string {
	return map[string]string{
		"content-type": "application/json",
		HeaderTable:    c.Table,
		HeaderType:     string(c.Type),
	}
}

// Decode parses a change published by BusEmitter.
func Decode(raw []byte) (Change, error) {
	var c Change
	err := json.Unmarshal(raw, &c)
	return c, err
}
