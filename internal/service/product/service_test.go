package product

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/cache"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/realtime"
	repo "github.com/Additional-Code/cannadmin/internal/repository/product"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

type fakeRepo struct {
	products map[uuid.UUID]entity.Product
	gets     int
}

func (f *fakeRepo) Create(_ context.Context, s tenant.Session, p *entity.Product) error {
	for _, existing := range f.products {
		if existing.TenantID == s.TenantID && existing.SKU == p.SKU {
			return repo.ErrDuplicateSKU
		}
	}
	p.ID = uuid.New()
	p.TenantID = s.TenantID
	p.Version = 1
	f.products[p.ID] = *p
	return nil
}

func (f *fakeRepo) Get(_ context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	f.gets++
	p, ok := f.products[id]
	if !ok || p.TenantID != s.TenantID {
		return nil, repo.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRepo) List(context.Context, tenant.Session, repo.Filter) ([]entity.Product, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Update(_ context.Context, _ tenant.Session, p *entity.Product, expectedVersion int64) error {
	stored := f.products[p.ID]
	if stored.Version != expectedVersion {
		return repo.ErrStale
	}
	p.Version = expectedVersion + 1
	f.products[p.ID] = *p
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, _ tenant.Session, id uuid.UUID) error {
	delete(f.products, id)
	return nil
}

type recordingEmitter struct{ changes []realtime.Change }

func (r *recordingEmitter) Emit(_ context.Context, c realtime.Change) { r.changes = append(r.changes, c) }

type fakeActivities struct{ entries []entity.ActivityLog }

func (f *fakeActivities) Append(_ context.Context, _ tenant.Session, entries ...entity.ActivityLog) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func newService() (*Service, *fakeRepo, *recordingEmitter, *fakeActivities) {
	r := &fakeRepo{products: map[uuid.UUID]entity.Product{}}
	e := &recordingEmitter{}
	a := &fakeActivities{}
	return New(r, a, cache.NewMemoryStore(), time.Minute, e, nil), r, e, a
}

func input() Input {
	return Input{Name: "Gelato 3.5g", SKU: "GEL-35", Category: "flower", RetailPrice: decimal.RequireFromString("35.00"), InitialQuantity: 12, LowStockThreshold: 3}
}

func TestCreateAndCachedGet(t *testing.T) {
	svc, r, e, a := newService()
	sess := tenant.Session{TenantID: uuid.New(), Role: tenant.RoleAdmin}
	ctx := context.Background()

	p, err := svc.Create(ctx, sess, input())
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.AvailableQuantity)
	assert.True(t, p.InStock)
	assert.Equal(t, realtime.EventInsert, e.changes[0].Type)
	assert.Equal(t, entity.ActivityProductCreated, a.entries[0].ActivityType)

	got, err := svc.Get(ctx, sess, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Zero(t, r.gets, "served from cache")
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newService()
	sess := tenant.Session{TenantID: uuid.New()}

	in := input()
	in.RetailPrice = decimal.NewFromInt(-1)
	_, err := svc.Create(context.Background(), sess, in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	in = input()
	in.SKU = " "
	_, err = svc.Create(context.Background(), sess, in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc, _, _, _ := newService()
	sess := tenant.Session{TenantID: uuid.New()}

	_, err := svc.Create(context.Background(), sess, input())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), sess, input())
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))
}

func TestUpdateVersionLock(t *testing.T) {
	svc, r, _, _ := newService()
	sess := tenant.Session{TenantID: uuid.New()}
	ctx := context.Background()

	p, err := svc.Create(ctx, sess, input())
	require.NoError(t, err)

	in := input()
	in.Name = "Gelato 7g"
	updated, err := svc.Update(ctx, sess, p.ID, 1, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = svc.Update(ctx, sess, p.ID, 1, in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	r.gets = 0
	got, err := svc.Get(ctx, sess, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gelato 7g", got.Name)
	assert.Equal(t, 1, r.gets, "update invalidates the cached view")
}

func TestDeleteRequiresManager(t *testing.T) {
	svc, _, e, _ := newService()
	admin := tenant.Session{TenantID: uuid.New(), Role: tenant.RoleAdmin}
	staff := tenant.Session{TenantID: admin.TenantID, Role: tenant.RoleStaff}
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, input())
	require.NoError(t, err)

	err = svc.Delete(ctx, staff, p.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	require.NoError(t, svc.Delete(ctx, admin, p.ID))
	assert.Equal(t, realtime.EventDelete, e.changes[len(e.changes)-1].Type)

	_, err = svc.Get(ctx, admin, p.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestGetOtherTenant(t *testing.T) {
	svc, _, _, _ := newService()
	sess := tenant.Session{TenantID: uuid.New()}

	p, err := svc.Create(context.Background(), sess, input())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), tenant.Session{TenantID: uuid.New()}, p.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

type slowRepo struct {
	*fakeRepo
	release chan struct{}
	calls   atomic.Int32
}

func (r *slowRepo) Get(ctx context.Context, s tenant.Session, id uuid.UUID) (*entity.Product, error) {
	r.calls.Add(1)
	<-r.release
	return r.fakeRepo.Get(ctx, s, id)
}

func TestConcurrentMissesReturnCopies(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	p := entity.Product{ID: uuid.New(), TenantID: sess.TenantID, Name: "Runtz 1g"}
	r := &slowRepo{fakeRepo: &fakeRepo{products: map[uuid.UUID]entity.Product{p.ID: p}}, release: make(chan struct{})}
	svc := New(r, &fakeActivities{}, nil, time.Minute, &recordingEmitter{}, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*entity.Product, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.Get(context.Background(), sess, p.ID)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(r.release)
	wg.Wait()

	assert.LessOrEqual(t, r.calls.Load(), int32(callers))
	for _, got := range results {
		require.NotNil(t, got)
		assert.Equal(t, p.ID, got.ID)
	}
	assert.NotSame(t, results[0], results[1])
}
