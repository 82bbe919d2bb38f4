package pos

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/database/dbtest"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

func TestPrepareStampsTenantAndIDs(t *testing.T) {
	s := tenant.Session{TenantID: uuid.New()}
	tx := &entity.PosTransaction{
		Items: []entity.PosTransactionItem{
			{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		},
	}

	prepare(s, tx)

	assert.Equal(t, s.TenantID, tx.TenantID)
	assert.NotEqual(t, uuid.Nil, tx.ID)
	for _, item := range tx.Items {
		assert.Equal(t, s.TenantID, item.TenantID)
		assert.Equal(t, tx.ID, item.TransactionID)
		assert.NotEqual(t, uuid.Nil, item.ID)
	}
}

func TestCommitQueryCallsFunction(t *testing.T) {
	repo := NewRepository(dbtest.Connections(t))

	b, err := repo.commitQuery([]byte(`{"total":"1.00"}`)).AppendQuery(repo.writer.Formatter(), nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT pos_commit_sale('{"total":"1.00"}'::jsonb)`, string(b))
}

func TestGetQueryIsTenantScoped(t *testing.T) {
	repo := NewRepository(dbtest.Connections(t))
	s := tenant.Session{TenantID: uuid.New()}

	sql := repo.getQuery(s, uuid.New(), new(entity.PosTransaction)).String()
	assert.Contains(t, sql, `"pt"."tenant_id" = '`+s.TenantID.String()+`'`)
}
