package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	inventoryrepo "github.com/Additional-Code/cannadmin/internal/repository/inventory"
	productrepo "github.com/Additional-Code/cannadmin/internal/repository/product"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

type fakeProducts struct {
	mu        sync.Mutex
	products  map[uuid.UUID]entity.Product
	movements []entity.InventoryMovement
	// staleOnce makes the next write lose its compare-and-set.
	staleOnce bool
}

func newFakeProducts(ps ...entity.Product) *fakeProducts {
	f := &fakeProducts{products: map[uuid.UUID]entity.Product{}}
	for _, p := range ps {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetPrimary(_ context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.TenantID != s.TenantID {
		return nil, productrepo.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) WriteStockWithMovement(_ context.Context, s tenant.Session, u productrepo.StockUpdate, m *entity.InventoryMovement) (*entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[u.ProductID]
	if !ok || p.TenantID != s.TenantID {
		return nil, productrepo.ErrNotFound
	}
	if f.staleOnce {
		f.staleOnce = false
		return nil, productrepo.ErrStale
	}
	if p.AvailableQuantity != u.BeforeAvailable || p.FrontedQuantity != u.BeforeFronted {
		return nil, productrepo.ErrStale
	}
	p.FrontedQuantity = u.Fronted
	p.SetAvailable(u.Available)
	p.Version++
	f.products[p.ID] = p
	m.ID = uuid.New()
	m.TenantID = s.TenantID
	f.movements = append(f.movements, *m)
	return &p, nil
}

func (f *fakeProducts) List(_ context.Context, s tenant.Session, filter productrepo.Filter) ([]entity.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Product
	for _, p := range f.products {
		if p.TenantID != s.TenantID {
			continue
		}
		if filter.LowStock && !p.LowStock() {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeProducts) ListMovements(_ context.Context, s tenant.Session, _ inventoryrepo.MovementFilter) ([]entity.InventoryMovement, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.InventoryMovement
	for _, m := range f.movements {
		if m.TenantID == s.TenantID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

type fakeActivities struct {
	mu      sync.Mutex
	entries []entity.ActivityLog
}

func (f *fakeActivities) Append(_ context.Context, _ tenant.Session, entries ...entity.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

type recordingEmitter struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recordingEmitter) Emit(_ context.Context, c realtime.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

type fixture struct {
	svc        *Service
	products   *fakeProducts
	activities *fakeActivities
	emitter    *recordingEmitter
	locker     *cache.LocalLocker
	session    tenant.Session
	product    entity.Product
}

func newFixture(t *testing.T, available int64) *fixture {
	t.Helper()
	sess := tenant.Session{TenantID: uuid.New(), AdminID: uuid.New(), Role: tenant.RoleAdmin}
	p := entity.Product{ID: uuid.New(), TenantID: sess.TenantID, Name: "Blue Dream 3.5g", LowStockThreshold: 5}
	p.SetAvailable(available)

	f := &fixture{
		products:   newFakeProducts(p),
		activities: &fakeActivities{},
		emitter:    &recordingEmitter{},
		locker:     cache.NewLocalLocker(),
		session:    sess,
		product:    p,
	}
	f.svc = New(f.products, f.products, f.activities, nil, f.locker, f.emitter,
		config.Inventory{LockTTL: time.Second, LockAttempts: 3, LockBackoff: time.Millisecond}, nil)
	f.svc.sleep = func(time.Duration) {}
	return f
}

func TestAdjustClampsAtZero(t *testing.T) {
	f := newFixture(t, 5)

	res, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, -8, "shrinkage")
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Product.AvailableQuantity)
	assert.False(t, res.Product.InStock)
	assert.True(t, res.Clamped)
	assert.Equal(t, int64(5), res.Movement.QuantityBefore)
	assert.Equal(t, int64(0), res.Movement.QuantityAfter)
	assert.Equal(t, int64(-5), res.Movement.QuantityChange)
	assert.Len(t, f.activities.entries, 1)
	assert.Equal(t, entity.ActivityInventoryAdjustment, f.activities.entries[0].ActivityType)
}

func TestAdjustPositive(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, 12, "restock")
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Product.AvailableQuantity)
	assert.True(t, res.Product.InStock)
	assert.False(t, res.Clamped)
}

func TestAdjustEmitsProductAndMovementChanges(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, 1, "")
	require.NoError(t, err)

	require.Len(t, f.emitter.changes, 2)
	assert.Equal(t, realtime.TableProducts, f.emitter.changes[0].Table)
	assert.Equal(t, realtime.EventUpdate, f.emitter.changes[0].Type)
	assert.Equal(t, f.product.ID, f.emitter.changes[0].RecordID)
	assert.Equal(t, realtime.TableMovements, f.emitter.changes[1].Table)
}

func TestQuickAdjust(t *testing.T) {
	tests := []struct {
		delta   int64
		want    int64
		wantErr bool
	}{
		{delta: 1, want: 4},
		{delta: -1, want: 2},
		{delta: 10, want: 13},
		{delta: -10, want: 0},
		{delta: 5, wantErr: true},
		{delta: 0, wantErr: true},
	}
	for _, tt := range tests {
		f := newFixture(t, 3)
		res, err := f.svc.QuickAdjust(context.Background(), f.session, f.product.ID, tt.delta)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrQuickDelta)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Product.AvailableQuantity, "delta %d", tt.delta)
	}
}

func TestManualAdjustRejectsNegative(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.ManualAdjust(context.Background(), f.session, f.product.ID, -6, entity.MovementWaste, "spoiled")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnprocessableEntity))

	p, _ := f.products.GetPrimary(context.Background(), f.session, f.product.ID)
	assert.Equal(t, int64(5), p.AvailableQuantity)
	assert.Empty(t, f.products.movements)
}

func TestManualAdjustRecordsMovementType(t *testing.T) {
	f := newFixture(t, 5)

	res, err := f.svc.ManualAdjust(context.Background(), f.session, f.product.ID, -2, entity.MovementWaste, "spoiled")
	require.NoError(t, err)
	assert.Equal(t, entity.MovementWaste, res.Movement.MovementType)
	assert.Equal(t, "spoiled", res.Movement.Reason)
	assert.Equal(t, f.session.Actor(), res.Movement.CreatedBy)
}

func TestAdjustRetriesStaleWrite(t *testing.T) {
	f := newFixture(t, 5)
	f.products.staleOnce = true

	res, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, -1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Product.AvailableQuantity)
}

func TestAdjustFailsWhenLocked(t *testing.T) {
	f := newFixture(t, 5)
	ok, err := f.locker.AcquireLock(context.Background(), lockKey(f.session.TenantID, f.product.ID), "other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Adjust(context.Background(), f.session, f.product.ID, -1, "")
	assert.ErrorIs(t, err, ErrLocked)
}

type downLocker struct{}

func (downLocker) AcquireLock(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func (downLocker) ReleaseLock(context.Context, string, string) error { return nil }

func TestAdjustLockBackendDown(t *testing.T) {
	f := newFixture(t, 5)
	f.svc.locker = downLocker{}

	_, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, -1, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnavailable))
	assert.Empty(t, f.products.movements)
}

func TestAdjustReleasesLock(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.Adjust(context.Background(), f.session, f.product.ID, -1, "")
	require.NoError(t, err)

	ok, err := f.locker.AcquireLock(context.Background(), lockKey(f.session.TenantID, f.product.ID), "next", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdjustOtherTenantNotFound(t *testing.T) {
	f := newFixture(t, 5)
	other := tenant.Session{TenantID: uuid.New()}

	_, err := f.svc.Adjust(context.Background(), other, f.product.ID, 1, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestAdjustRequiresTenant(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.Adjust(context.Background(), tenant.Session{}, f.product.ID, 1, "")
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

func TestConcurrentAdjustmentsNeverGoNegative(t *testing.T) {
	f := newFixture(t, 20)
	f.svc.cfg.LockAttempts = 1000

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Adjust(context.Background(), f.session, f.product.ID, -1, "")
		}()
	}
	wg.Wait()

	p, err := f.products.GetPrimary(context.Background(), f.session, f.product.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.AvailableQuantity, int64(0))
	for _, m := range f.products.movements {
		assert.GreaterOrEqual(t, m.QuantityAfter, int64(0))
		assert.Equal(t, m.QuantityAfter-m.QuantityBefore, m.QuantityChange)
	}
}

func TestFrontAndSettle(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	res, err := f.svc.Front(ctx, f.session, f.product.ID, 4, "consignment")
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Product.AvailableQuantity)
	assert.Equal(t, int64(4), res.Product.FrontedQuantity)
	assert.Equal(t, int64(10), res.Product.TotalQuantity)
	assert.Equal(t, entity.MovementFront, res.Movement.MovementType)

	res, err = f.svc.SettleFront(ctx, f.session, f.product.ID, 1, true, "returned")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Product.AvailableQuantity)
	assert.Equal(t, int64(3), res.Product.FrontedQuantity)

	res, err = f.svc.SettleFront(ctx, f.session, f.product.ID, 3, false, "paid")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Product.AvailableQuantity)
	assert.Equal(t, int64(0), res.Product.FrontedQuantity)
	assert.Equal(t, entity.MovementFrontSettle, res.Movement.MovementType)

	_, err = f.svc.SettleFront(ctx, f.session, f.product.ID, 1, false, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnprocessableEntity))

	_, err = f.svc.Front(ctx, f.session, f.product.ID, 50, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnprocessableEntity))
}

func TestLowStock(t *testing.T) {
	f := newFixture(t, 5)

	out, total, err := f.svc.LowStock(context.Background(), f.session, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, f.product.ID, out[0].ID)
}
