package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

type fakeRepo struct {
	calls     atomic.Int32
	failOrder error
}

func (f *fakeRepo) Users(_ context.Context, _ tenant.Session, term string, limit int) ([]entity.AdminUser, error) {
	f.calls.Add(1)
	return []entity.AdminUser{{Email: term + "@example.com"}}, nil
}

func (f *fakeRepo) Orders(_ context.Context, _ tenant.Session, _ string, _ int) ([]entity.Order, error) {
	f.calls.Add(1)
	if f.failOrder != nil {
		return nil, f.failOrder
	}
	return []entity.Order{{Number: "ORD-1"}, {Number: "ORD-2"}}, nil
}

func (f *fakeRepo) Products(_ context.Context, _ tenant.Session, _ string, limit int) ([]entity.Product, error) {
	f.calls.Add(1)
	out := make([]entity.Product, limit)
	return out, nil
}

func (f *fakeRepo) Addresses(_ context.Context, _ tenant.Session, _ string, _ int) ([]entity.Address, error) {
	f.calls.Add(1)
	return nil, nil
}

func session() tenant.Session {
	return tenant.Session{TenantID: uuid.New()}
}

func TestSearchShortTermMakesNoCalls(t *testing.T) {
	for _, term := range []string{"", "a", "  b  ", "é"} {
		repo := &fakeRepo{}
		svc := New(repo, config.Search{}, nil)

		_, err := svc.Search(context.Background(), session(), term)
		assert.ErrorIs(t, err, ErrTermTooShort, "term %q", term)
		assert.Zero(t, repo.calls.Load())
	}
}

func TestSearchGroupsResults(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, config.Search{MinTermLength: 2, Limit: 10}, nil)

	res, err := svc.Search(context.Background(), session(), "  og ")
	require.NoError(t, err)

	assert.Equal(t, int32(4), repo.calls.Load())
	assert.Equal(t, "og", res.Term)
	assert.Equal(t, "og@example.com", res.Users[0].Email)
	assert.Len(t, res.Products, 10)
	assert.Equal(t, map[string]int{"users": 1, "orders": 2, "products": 10, "addresses": 0}, res.Counts)
	assert.Equal(t, 13, res.Total())
}

func TestSearchFailsWhenAnyLookupFails(t *testing.T) {
	repo := &fakeRepo{failOrder: errors.New("timeout")}
	svc := New(repo, config.Search{}, nil)

	_, err := svc.Search(context.Background(), session(), "kush")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInternal))
}

func TestSearchRequiresTenant(t *testing.T) {
	svc := New(&fakeRepo{}, config.Search{}, nil)

	_, err := svc.Search(context.Background(), tenant.Session{}, "kush")
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}
