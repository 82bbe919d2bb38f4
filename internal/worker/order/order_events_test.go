package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/messaging"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	orderrepo "github.com/Additional-Code/cannadmin/internal/repository/order"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

type fakeOrders struct {
	orders   map[uuid.UUID]entity.Order
	err      error
	sessions []tenant.Session
}

func (f *fakeOrders) GetByID(_ context.Context, s tenant.Session, id uuid.UUID) (*entity.Order, error) {
	f.sessions = append(f.sessions, s)
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	return &o, nil
}

func encode(t *testing.T, c realtime.Change) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	return messaging.Message{Topic: "feed", Value: raw}
}

func TestLogsOrderChanges(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tenantID := uuid.New()
	o := entity.Order{ID: uuid.New(), TenantID: tenantID, Number: "ORD-1", Status: entity.OrderStatusConfirmed}
	orders := &fakeOrders{orders: map[uuid.UUID]entity.Order{o.ID: o}}
	handler := newHandler(orders, zap.New(core))

	err := handler(context.Background(), encode(t, realtime.NewChange(realtime.TableOrders, realtime.EventUpdate, tenantID, o.ID)))
	require.NoError(t, err)

	require.Len(t, orders.sessions, 1)
	assert.Equal(t, tenantID, orders.sessions[0].TenantID)

	entries := logs.FilterMessage("order change processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ORD-1", entries[0].ContextMap()["number"])
	assert.Equal(t, "confirmed", entries[0].ContextMap()["status"])
}

func TestIgnoresOtherTables(t *testing.T) {
	orders := &fakeOrders{}
	handler := newHandler(orders, zap.NewNop())

	err := handler(context.Background(), encode(t, realtime.NewChange(realtime.TableProducts, realtime.EventUpdate, uuid.New(), uuid.New())))
	require.NoError(t, err)
	assert.Empty(t, orders.sessions)
}

func TestMissingOrderIsNotRetried(t *testing.T) {
	handler := newHandler(&fakeOrders{}, zap.NewNop())
	err := handler(context.Background(), encode(t, realtime.NewChange(realtime.TableOrders, realtime.EventInsert, uuid.New(), uuid.New())))
	assert.NoError(t, err)
}

func TestLoadFailureIsRetried(t *testing.T) {
	boom := errors.New("connection reset")
	handler := newHandler(&fakeOrders{err: boom}, zap.NewNop())
	err := handler(context.Background(), encode(t, realtime.NewChange(realtime.TableOrders, realtime.EventUpdate, uuid.New(), uuid.New())))
	assert.ErrorIs(t, err, boom)
}

func TestDeleteSkipsLookup(t *testing.T) {
	orders := &fakeOrders{}
	handler := newHandler(orders, zap.NewNop())
	err := handler(context.Background(), encode(t, realtime.NewChange(realtime.TableOrders, realtime.EventDelete, uuid.New(), uuid.New())))
	require.NoError(t, err)
	assert.Empty(t, orders.sessions)
}

func TestHeaderSkipsDecode(t *testing.T) {
	orders := &fakeOrders{}
	handler := newHandler(orders, zap.NewNop())

	msg := messaging.Message{
		Value:   []byte("not json"),
		Headers: map[string]string{realtime.HeaderTable: realtime.TableProducts},
	}
	require.NoError(t, handler(context.Background(), msg))
	assert.Empty(t, orders.sessions)
}
