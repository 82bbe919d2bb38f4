package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/cannadmin/transport/http/realtime")

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	bufferSize   = 32
)

// Subscriber hands out change subscriptions.
type Subscriber interface {
	Subscribe(f realtime.Filter, buffer int) (<-chan realtime.Change, func())
}

// Message is what clients receive for every matching change. Clients refetch on receipt.
type Message struct {
	Type     string             `json:"type"`
	Table    string             `json:"table"`
	Event    realtime.EventType `json:"event"`
	RecordID uuid.UUID          `json:"record_id"`
	At       time.Time          `json:"at"`
}

// Handler streams change notifications over websockets.
type Handler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler constructs a realtime Handler.
func NewHandler(hub *realtime.Hub, logger *zap.Logger) *Handler {
	return newHandler(hub, logger)
}

func newHandler(hub Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Sessions are bearer tokens, not cookies, so cross-origin upgrades are harmless.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	g.GET("/realtime", h.stream)
}

func (h *Handler) stream(c echo.Context) error {
	sess, err := tenant.FromEcho(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	filter := realtime.Filter{TenantID: sess.TenantID}
	if raw := c.QueryParam("tables"); raw != "" {
		filter.Tables = strings.Split(raw, ",")
	}
	if raw := c.QueryParam("record_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return response.New(c).WithError(errorbank.BadRequest("invalid record_id", errorbank.WithCause(err))).Build()
		}
		filter.RecordID = &id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	_, span := httpTracer.Start(c.Request().Context(), "realtime.stream", trace.WithAttributes(
		attribute.String("tenant.id", sess.TenantID.String()),
		attribute.StringSlice("realtime.tables", filter.Tables),
	))
	defer span.End()

	changes, release := h.hub.Subscribe(filter, bufferSize)
	defer release()

	h.logger.Debug("realtime subscriber connected", zap.String("tenant_id", sess.TenantID.String()))
	done := h.readPump(conn)
	h.writePump(conn, changes, done)
	h.logger.Debug("realtime subscriber disconnected", zap.String("tenant_id", sess.TenantID.String()))
	return nil
}

// readPump drains client frames so control messages are processed; it closes done when the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("realtime read failed", zap.Error(err))
				}
				return
			}
		}
	}()
	return done
}

func (h *Handler) writePump(conn *websocket.Conn, changes <-chan realtime.Change, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case change, ok := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			msg := Message{Type: "invalidate", Table: change.Table, Event: change.Type, RecordID: change.RecordID, At: change.At}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("realtime write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
