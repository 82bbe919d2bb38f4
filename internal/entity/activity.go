package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activity types recorded in the audit log.
const (
	ActivitySaleCompleted       = "SALE_COMPLETED"
	ActivityInventoryAdjustment = "INVENTORY_ADJUSTMENT"
	ActivityOrderStatusChanged  = "ORDER_STATUS_CHANGED"
	ActivityProductCreated      = "PRODUCT_CREATED"
	ActivityProductUpdated      = "PRODUCT_UPDATED"
	ActivityProductDeleted      = "PRODUCT_DELETED"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	TenantID     uuid.UUID  `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	ActivityType string     `bun:"activity_type,notnull" json:"activity_type"`
	Description  string     `bun:"description,notnull" json:"description"`
	Entity       string     `bun:"entity" json:"entity,omitempty"`
	EntityID     *uuid.UUID `bun:"entity_id,type:uuid" json:"entity_id,omitempty"`
	ActorID      *uuid.UUID `bun:"actor_id,type:uuid" json:"actor_id,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// DeliveryPing is a courier location sample for an order in transit.
type DeliveryPing struct {
	bun.BaseModel `bun:"table:delivery_pings,alias:dp"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	TenantID   uuid.UUID  `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	OrderID    uuid.UUID  `bun:"order_id,type:uuid,notnull" json:"order_id"`
	CourierID  *uuid.UUID `bun:"courier_id,type:uuid" json:"courier_id,omitempty"`
	Latitude   float64    `bun:"latitude,notnull" json:"latitude"`
	Longitude  float64    `bun:"longitude,notnull" json:"longitude"`
	RecordedAt time.Time  `bun:"recorded_at,notnull" json:"recorded_at"`
}
