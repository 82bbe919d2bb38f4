package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/messaging"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func assertNothing(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c, ok := <-ch:
		if ok {
			t.Fatalf("unexpected change %+v", c)
		}
	default:
	}
}

func TestFilterMatch(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	record := uuid.New()
	c := NewChange(TableProducts, EventUpdate, tenantA, record)

	other := uuid.New()
	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"same tenant any table", Filter{TenantID: tenantA}, true},
		{"other tenant", Filter{TenantID: tenantB}, false},
		{"table match", Filter{TenantID: tenantA, Tables: []string{TableOrders, TableProducts}}, true},
		{"table miss", Filter{TenantID: tenantA, Tables: []string{TableOrders}}, false},
		{"record match", Filter{TenantID: tenantA, RecordID: &record}, true},
		{"record miss", Filter{TenantID: tenantA, RecordID: &other}, false},
		{"internal cross tenant", Filter{Tables: []string{TableProducts}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Match(c))
		})
	}
}

func TestHubDeliversAndReleases(t *testing.T) {
	hub := NewHub(zap.NewNop())
	tenant := uuid.New()

	products, releaseProducts := hub.Subscribe(Filter{TenantID: tenant, Tables: []string{TableProducts}}, 4)
	orders, releaseOrders := hub.Subscribe(Filter{TenantID: tenant, Tables: []string{TableOrders}}, 4)
	assert.Equal(t, 2, hub.Subscribers())

	change := NewChange(TableProducts, EventDelete, tenant, uuid.New())
	hub.Dispatch(change)
	assert.Equal(t, change, receive(t, products))
	assertNothing(t, orders)

	releaseProducts()
	releaseProducts()
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-products
	assert.False(t, open, "released channel is closed")

	hub.Close()
	_, open = <-orders
	assert.False(t, open)
	releaseOrders()
	assert.Equal(t, 0, hub.Subscribers())

	late, _ := hub.Subscribe(Filter{TenantID: tenant}, 1)
	_, open = <-late
	assert.False(t, open, "subscribing to a closed hub yields a closed channel")
}

func TestHubDropsForLaggingSubscriber(t *testing.T) {
	hub := NewHub(nil)
	tenant := uuid.New()
	ch, release := hub.Subscribe(Filter{TenantID: tenant}, 1)
	defer release()

	hub.Dispatch(NewChange(TableOrders, EventUpdate, tenant, uuid.New()))
	hub.Dispatch(NewChange(TableOrders, EventUpdate, tenant, uuid.New()))

	receive(t, ch)
	assertNothing(t, ch)
}

type recordingClient struct {
	published [][]byte
	headers   []map[string]string
	err       error
}

func (r *recordingClient) Publish(_ context.Context, _ []byte, value []byte, headers map[string]string) error {
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, value)
	r.headers = append(r.headers, headers)
	return nil
}

func (r *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *recordingClient) Topic() string { return "changes" }

func TestBusEmitter(t *testing.T) {
	tenant := uuid.New()
	change := NewChange(TableOrders, EventInsert, tenant, uuid.New())

	t.Run("local when messaging disabled", func(t *testing.T) {
		hub := NewHub(nil)
		ch, release := hub.Subscribe(Filter{TenantID: tenant}, 1)
		defer release()
		client := &recordingClient{}
		e := NewEmitter(config.Config{Messaging: config.Messaging{Enabled: false, Driver: "noop"}}, client, hub, zap.NewNop())

		e.Emit(context.Background(), change)
		assert.Equal(t, change, receive(t, ch))
		assert.Empty(t, client.published)
	})

	t.Run("bus when enabled", func(t *testing.T) {
		hub := NewHub(nil)
		ch, release := hub.Subscribe(Filter{TenantID: tenant}, 1)
		defer release()
		client := &recordingClient{}
		e := NewEmitter(config.Config{Messaging: config.Messaging{Enabled: true, Driver: "kafka"}}, client, hub, zap.NewNop())

		e.Emit(context.Background(), change)
		require.Len(t, client.published, 1)
		decoded, err := Decode(client.published[0])
		require.NoError(t, err)
		assert.Equal(t, change.RecordID, decoded.RecordID)
		assert.True(t, change.At.Equal(decoded.At))
		assert.Equal(t, change.Table, client.headers[0][HeaderTable])
		assert.Equal(t, string(change.Type), client.headers[0][HeaderType])
		assertNothing(t, ch)
	})

	t.Run("falls back to local on publish failure", func(t *testing.T) {
		hub := NewHub(nil)
		ch, release := hub.Subscribe(Filter{TenantID: tenant}, 1)
		defer release()
		client := &recordingClient{err: errors.New("broker down")}
		e := NewEmitter(config.Config{Messaging: config.Messaging{Enabled: true, Driver: "kafka"}}, client, hub, zap.NewNop())

		e.Emit(context.Background(), change)
		assert.Equal(t, change, receive(t, ch))
	})
}

type deletingStore struct {
	deleted chan string
}

func (d *deletingStore) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrCacheMiss }
func (d *deletingStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (d *deletingStore) Delete(_ context.Context, key string) error {
	d.deleted <- key
	return nil
}

func TestInvalidatorDropsCachedViews(t *testing.T) {
	hub := NewHub(nil)
	store := &deletingStore{deleted: make(chan string, 4)}
	inv := NewInvalidator(hub, store, zap.NewNop())
	require.NoError(t, inv.Start(context.Background()))

	tenant, product, order := uuid.New(), uuid.New(), uuid.New()
	hub.Dispatch(NewChange(TableCustomers, EventUpdate, tenant, uuid.New()))
	hub.Dispatch(NewChange(TableProducts, EventUpdate, tenant, product))
	hub.Dispatch(NewChange(TableOrders, EventDelete, tenant, order))

	assert.Equal(t, cache.ProductKey(tenant, product), <-store.deleted)
	assert.Equal(t, cache.OrderKey(tenant, order), <-store.deleted)

	require.NoError(t, inv.Stop(context.Background()))
	assert.Equal(t, 0, hub.Subscribers())
}
