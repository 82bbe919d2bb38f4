package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MovementType tags the reason class of an inventory movement.
type MovementType string

const (
	MovementAdjustment  MovementType = "adjustment"
	MovementRestock     MovementType = "restock"
	MovementSale        MovementType = "sale"
	MovementWaste       MovementType = "waste"
	MovementFront       MovementType = "front"
	MovementFrontSettle MovementType = "front_settle"
	MovementFrontReturn MovementType = "front_return"
	MovementCompensate  MovementType = "compensation"
)

// InventoryMovement is an append-only record of a stock change.
type InventoryMovement struct {
	bun.BaseModel `bun:"table:inventory_movements,alias:im"`

	ID             uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	TenantID       uuid.UUID    `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	ProductID      uuid.UUID    `bun:"product_id,type:uuid,notnull" json:"product_id"`
	MovementType   MovementType `bun:"movement_type,notnull" json:"movement_type"`
	QuantityChange int64        `bun:"quantity_change,notnull" json:"quantity_change"`
	QuantityBefore int64        `bun:"quantity_before,notnull" json:"quantity_before"`
	QuantityAfter  int64        `bun:"quantity_after,notnull" json:"quantity_after"`
	Reason         string       `bun:"reason" json:"reason,omitempty"`
	ReferenceType  string       `bun:"reference_type" json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID   `bun:"reference_id,type:uuid" json:"reference_id,omitempty"`
	CreatedBy      *uuid.UUID   `bun:"created_by,type:uuid" json:"created_by,omitempty"`
	CreatedAt      time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
