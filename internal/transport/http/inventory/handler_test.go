package inventory

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/entity"
	inventoryrepo "github.com/Additional-Code/cannadmin/internal/repository/inventory"
	service "github.com/Additional-Code/cannadmin/internal/service/inventory"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/internal/transport/http/handlertest"
)

type call struct {
	op       string
	delta    int64
	mtype    entity.MovementType
	reason   string
	returned bool
}

type fakeService struct {
	stock  int64
	calls  []call
	filter inventoryrepo.MovementFilter
}

func (f *fakeService) result(id uuid.UUID, delta int64) *service.Result {
	before := f.stock
	f.stock = max(0, f.stock+delta)
	p := &entity.Product{ID: id}
	p.SetAvailable(f.stock)
	return &service.Result{
		Product:  p,
		Movement: &entity.InventoryMovement{ProductID: id, QuantityBefore: before, QuantityAfter: f.stock, QuantityChange: f.stock - before},
		Clamped:  before+delta < 0,
	}
}

func (f *fakeService) Adjust(_ context.Context, _ tenant.Session, id uuid.UUID, delta int64, reason string) (*service.Result, error) {
	f.calls = append(f.calls, call{op: "adjust", delta: delta, reason: reason})
	return f.result(id, delta), nil
}

func (f *fakeService) QuickAdjust(_ context.Context, _ tenant.Session, id uuid.UUID, delta int64) (*service.Result, error) {
	f.calls = append(f.calls, call{op: "quick", delta: delta})
	switch delta {
	case 1, -1, 10, -10:
		return f.result(id, delta), nil
	}
	return nil, service.ErrQuickDelta
}

func (f *fakeService) ManualAdjust(_ context.Context, _ tenant.Session, id uuid.UUID, delta int64, mt entity.MovementType, reason string) (*service.Result, error) {
	f.calls = append(f.calls, call{op: "manual", delta: delta, mtype: mt, reason: reason})
	if f.stock+delta < 0 {
		return nil, service.ErrNegativeStock
	}
	return f.result(id, delta), nil
}

func (f *fakeService) Front(_ context.Context, _ tenant.Session, id uuid.UUID, qty int64, reason string) (*service.Result, error) {
	f.calls = append(f.calls, call{op: "front", delta: qty, reason: reason})
	return f.result(id, -qty), nil
}

func (f *fakeService) SettleFront(_ context.Context, _ tenant.Session, id uuid.UUID, qty int64, returned bool, reason string) (*service.Result, error) {
	f.calls = append(f.calls, call{op: "settle", delta: qty, returned: returned, reason: reason})
	return f.result(id, 0), nil
}

func (f *fakeService) Movements(_ context.Context, _ tenant.Session, flt inventoryrepo.MovementFilter) ([]entity.InventoryMovement, int, error) {
	f.filter = flt
	return []entity.InventoryMovement{{ID: uuid.New()}}, 1, nil
}

func (f *fakeService) LowStock(context.Context, tenant.Session, int, int) ([]entity.Product, int, error) {
	return []entity.Product{{ID: uuid.New()}}, 1, nil
}

func setup(stock int64) (*fakeService, func(*echo.Group)) {
	svc := &fakeService{stock: stock}
	h := &Handler{svc: svc}
	return svc, func(g *echo.Group) { Register(g, h) }
}

func TestAdjustClamps(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New(), AdminID: uuid.New()}
	svc, register := setup(3)
	id := uuid.New()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+id.String()+"/adjust",
		map[string]any{"delta": -5, "reason": "waste"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got service.Result
	handlertest.Decode(t, rec, &got)
	assert.True(t, got.Clamped)
	assert.EqualValues(t, 0, got.Product.AvailableQuantity)
	assert.EqualValues(t, -3, got.Movement.QuantityChange)
	assert.Equal(t, []call{{op: "adjust", delta: -5, reason: "waste"}}, svc.calls)
}

func TestQuickRejectsOtherDeltas(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	_, register := setup(3)

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+uuid.NewString()+"/quick",
		map[string]any{"delta": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+uuid.NewString()+"/quick",
		map[string]any{"delta": 10})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestManualRejectsNegative(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	svc, register := setup(2)

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+uuid.NewString()+"/manual",
		map[string]any{"delta": -3, "movement_type": "waste", "reason": "spoiled"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Len(t, svc.calls, 1)
	assert.Equal(t, entity.MovementWaste, svc.calls[0].mtype)
}

func TestFrontAndSettle(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	svc, register := setup(10)
	id := uuid.New().String()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+id+"/front",
		map[string]any{"quantity": 4, "reason": "consignment"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/"+id+"/settle",
		map[string]any{"quantity": 4, "returned": true})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, svc.calls, 2)
	assert.Equal(t, "front", svc.calls[0].op)
	assert.True(t, svc.calls[1].returned)
}

func TestMovementsFilter(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	svc, register := setup(0)
	productID := uuid.New()

	rec := handlertest.Serve(t, register, &sess, http.MethodGet,
		"/inventory/movements?type=sale&product_id="+productID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.MovementSale, svc.filter.Type)
	require.NotNil(t, svc.filter.ProductID)
	assert.Equal(t, productID, *svc.filter.ProductID)

	rec = handlertest.Serve(t, register, &sess, http.MethodGet, "/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := handlertest.Decode(t, rec, nil)
	assert.EqualValues(t, 1, env.Meta["total"])
}

func TestInvalidProductID(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	_, register := setup(0)

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/inventory/xyz/adjust", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
