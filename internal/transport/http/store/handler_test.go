package store

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
	service "github.com/Additional-Code/cannadmin/internal/service/store"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/internal/transport/http/handlertest"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

type fakeService struct {
	stores map[uuid.UUID]entity.Store
}

func (f *fakeService) Create(_ context.Context, sess tenant.Session, in service.Input) (*entity.Store, error) {
	if in.Slug == "" {
		return nil, errorbank.BadRequest("slug must be lowercase letters, digits and dashes")
	}
	st := entity.Store{ID: uuid.New(), TenantID: sess.TenantID, Slug: in.Slug, Name: in.Name}
	f.stores[st.ID] = st
	return &st, nil
}

func (f *fakeService) Get(_ context.Context, _ tenant.Session, id uuid.UUID) (*service.View, error) {
	st, ok := f.stores[id]
	if !ok {
		return nil, errorbank.NotFound("store not found")
	}
	return &service.View{Store: st, Stats: entity.StoreStats{TotalOrders: 3, TotalRevenue: decimal.RequireFromString("120.50"), TotalCustomers: 2}}, nil
}

func (f *fakeService) List(context.Context, tenant.Session) ([]entity.Store, error) {
	out := make([]entity.Store, 0, len(f.stores))
	for _, st := range f.stores {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeService) Update(_ context.Context, _ tenant.Session, id uuid.UUID, in service.Input) (*entity.Store, error) {
	st, ok := f.stores[id]
	if !ok {
		return nil, errorbank.NotFound("store not found")
	}
	st.Name = in.Name
	f.stores[id] = st
	return &st, nil
}

func (f *fakeService) SetFlags(_ context.Context, _ tenant.Session, id uuid.UUID, flags service.Flags) (*entity.Store, error) {
	st, ok := f.stores[id]
	if !ok {
		return nil, errorbank.NotFound("store not found")
	}
	if flags.IsActive != nil {
		st.IsActive = *flags.IsActive
	}
	if flags.IsPublic != nil {
		st.IsPublic = *flags.IsPublic
	}
	f.stores[id] = st
	return &st, nil
}

func setup() (*fakeService, func(*echo.Group)) {
	svc := &fakeService{stores: map[uuid.UUID]entity.Store{}}
	h := &Handler{svc: svc}
	return svc, func(g *echo.Group) { Register(g, h) }
}

func TestCreateAndGetWithStats(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	_, register := setup()

	rec := handlertest.Serve(t, register, &sess, http.MethodPost, "/stores", map[string]any{"slug": "green-leaf", "name": "Green Leaf"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created entity.Store
	handlertest.Decode(t, rec, &created)

	rec = handlertest.Serve(t, register, &sess, http.MethodGet, "/stores/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view service.View
	handlertest.Decode(t, rec, &view)
	assert.Equal(t, "green-leaf", view.Slug)
	assert.EqualValues(t, 3, view.Stats.TotalOrders)
	assert.True(t, view.Stats.TotalRevenue.Equal(decimal.RequireFromString("120.5")))

	rec = handlertest.Serve(t, register, &sess, http.MethodPost, "/stores", map[string]any{"name": "No Slug"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetFlagsLeavesUnsetFlags(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	svc, register := setup()
	st := entity.Store{ID: uuid.New(), IsActive: true, IsPublic: false}
	svc.stores[st.ID] = st

	rec := handlertest.Serve(t, register, &sess, http.MethodPatch, "/stores/"+st.ID.String()+"/flags", map[string]any{"is_public": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.stores[st.ID].IsActive)
	assert.True(t, svc.stores[st.ID].IsPublic)
}
