package pos

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/pricing"
	service "github.com/Additional-Code/cannadmin/internal/service/pos"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/internal/transport/http/handlertest"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

type fakeService struct {
	last service.CheckoutRequest
	txs  map[uuid.UUID]entity.PosTransaction
}

func (f *fakeService) Quote(_ context.Context, _ tenant.Session, req service.CheckoutRequest) (pricing.Totals, error) {
	f.last = req
	if len(req.Items) == 0 {
		return pricing.Totals{}, service.ErrEmptyCart
	}
	return pricing.Totals{Subtotal: decimal.NewFromInt(10), Total: decimal.NewFromInt(10)}, nil
}

func (f *fakeService) Checkout(_ context.Context, sess tenant.Session, req service.CheckoutRequest) (*service.Receipt, error) {
	f.last = req
	if len(req.Items) == 0 {
		return nil, service.ErrEmptyCart
	}
	if req.PaymentMethod == entity.PaymentCash && req.CashTendered.LessThan(decimal.NewFromInt(10)) {
		return nil, service.ErrInsufficientCash
	}
	tx := &entity.PosTransaction{ID: uuid.New(), TenantID: sess.TenantID, PaymentMethod: req.PaymentMethod}
	return &service.Receipt{Transaction: tx, Path: service.PathFallback}, nil
}

func (f *fakeService) Get(_ context.Context, _ tenant.Session, id uuid.UUID) (*entity.PosTransaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return nil, errorbank.NotFound("transaction not found")
	}
	return &tx, nil
}

func (f *fakeService) List(context.Context, tenant.Session, int, int) ([]entity.PosTransaction, int, error) {
	out := make([]entity.PosTransaction, 0, len(f.txs))
	for _, tx := range f.txs {
		out = append(out, tx)
	}
	return out, len(out), nil
}

func setup() (*fakeService, func(*echo.Group)) {
	svc := &fakeService{txs: map[uuid.UUID]entity.PosTransaction{}}
	h := &Handler{svc: svc}
	return svc, func(g *echo.Group) { Register(g, h) }
}

func TestCheckout(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New(), AdminID: uuid.New()}
	svc, register := setup()
	productID := uuid.New()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/pos/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": productID, "quantity": 2}},
		"payment_method": "cash",
		"cash_tendered":  "20.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got service.Receipt
	env := handlertest.Decode(t, rec, &got)
	assert.Equal(t, service.PathFallback, env.Meta["path"])
	assert.Equal(t, sess.TenantID, got.Transaction.TenantID)
	require.Len(t, svc.last.Items, 1)
	assert.Equal(t, productID, svc.last.Items[0].ProductID)
	assert.True(t, svc.last.CashTendered.Equal(decimal.NewFromInt(20)))
}

func TestCheckoutGuards(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	_, register := setup()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/pos/checkout", map[string]any{"payment_method": "card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := handlertest.Decode(t, rec, nil)
	assert.Equal(t, "cart is empty", env.Error.Message)

	rec = handlertest.Serve(t, register, &sess, http.MethodPost, "/pos/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
		"payment_method": "cash",
		"cash_tendered":  "5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuote(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	_, register := setup()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/pos/quote", map[string]any{
		"items": []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var got pricing.Totals
	handlertest.Decode(t, rec, &got)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(10)))
}

func TestTransactions(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	svc, register := setup()
	tx := entity.PosTransaction{ID: uuid.New(), TenantID: sess.TenantID}
	svc.txs[tx.ID] = tx

	rec := handlertest.Serve(t, register, &sess, http.MethodGet, "/pos/transactions/"+tx.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = handlertest.Serve(t, register, &sess, http.MethodGet, "/pos/transactions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = handlertest.Serve(t, register, &sess, http.MethodGet, "/pos/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := handlertest.Decode(t, rec, nil)
	assert.EqualValues(t, 1, env.Meta["total"])
}
