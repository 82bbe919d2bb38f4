package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/cannadmin/internal/database/dbtest"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

func TestMovementsQuery(t *testing.T) {
	repo := NewRepository(dbtest.Connections(t))
	s := tenant.Session{TenantID: uuid.New()}
	productID := uuid.New()

	var dest []entity.InventoryMovement
	sql := repo.movementsQuery(s, MovementFilter{ProductID: &productID, Type: entity.MovementWaste, Limit: 20}, &dest).String()
	assert.Contains(t, sql, `"im"."tenant_id" = '`+s.TenantID.String()+`'`)
	assert.Contains(t, sql, `"im"."product_id" = '`+productID.String()+`'`)
	assert.Contains(t, sql, `"im"."movement_type" = 'waste'`)
	assert.NotContains(t, sql, "UPDATE")
}
