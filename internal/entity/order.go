package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle stage of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRejected       OrderStatus = "rejected"
)

// OrderSource names the channel an order arrived through.
type OrderSource string

const (
	OrderSourceDirect         OrderSource = "orders"
	OrderSourceMarketplace    OrderSource = "marketplace_orders"
	OrderSourceDisposableMenu OrderSource = "disposable_menu_orders"
	OrderSourcePOS            OrderSource = "pos"
)

// FulfillmentType distinguishes delivery from pickup orders.
type FulfillmentType string

const (
	FulfillmentDelivery FulfillmentType = "delivery"
	FulfillmentPickup   FulfillmentType = "pickup"
)

// Order is a customer order owned by a tenant.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                     uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	TenantID               uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Number                 string          `bun:"number,notnull" json:"number"`
	CustomerID             *uuid.UUID      `bun:"customer_id,type:uuid" json:"customer_id,omitempty"`
	StoreID                *uuid.UUID      `bun:"store_id,type:uuid" json:"store_id,omitempty"`
	Source                 OrderSource     `bun:"source,notnull" json:"source"`
	Status                 OrderStatus     `bun:"status,notnull" json:"status"`
	Fulfillment            FulfillmentType `bun:"fulfillment,notnull" json:"fulfillment"`
	DeliveryAddress        string          `bun:"delivery_address" json:"delivery_address,omitempty"`
	PickupAt               *time.Time      `bun:"pickup_at" json:"pickup_at,omitempty"`
	Subtotal               decimal.Decimal `bun:"subtotal,type:numeric(12,2),notnull" json:"subtotal"`
	Tax                    decimal.Decimal `bun:"tax,type:numeric(12,2),notnull" json:"tax"`
	Discount               decimal.Decimal `bun:"discount,type:numeric(12,2),notnull" json:"discount"`
	Total                  decimal.Decimal `bun:"total,type:numeric(12,2),notnull" json:"total"`
	CompletedTransactionID *uuid.UUID      `bun:"completed_transaction_id,type:uuid" json:"completed_transaction_id,omitempty"`
	AcceptedAt             *time.Time      `bun:"accepted_at" json:"accepted_at,omitempty"`
	CourierAssignedAt      *time.Time      `bun:"courier_assigned_at" json:"courier_assigned_at,omitempty"`
	DeliveredAt            *time.Time      `bun:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt              time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt              time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Items []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	TenantID  uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	OrderID   uuid.UUID       `bun:"order_id,type:uuid,notnull" json:"order_id"`
	ProductID uuid.UUID       `bun:"product_id,type:uuid,notnull" json:"product_id"`
	Quantity  int64           `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}
