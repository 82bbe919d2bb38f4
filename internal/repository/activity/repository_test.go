package activity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/cannadmin/internal/database/dbtest"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

func TestListQuery(t *testing.T) {
	repo := NewRepository(dbtest.Connections(t))
	s := tenant.Session{TenantID: uuid.New()}

	var dest []entity.ActivityLog
	sql := repo.listQuery(s, entity.ActivitySaleCompleted, 50, 0, &dest).String()
	assert.Contains(t, sql, `"al"."tenant_id" = '`+s.TenantID.String()+`'`)
	assert.Contains(t, sql, `"al"."activity_type" = 'SALE_COMPLETED'`)
	assert.Contains(t, sql, `ORDER BY "created_at" DESC`)
}
