package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Product is a catalog item with its stock counters.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID                uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	TenantID          uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Name              string          `bun:"name,notnull" json:"name"`
	SKU               string          `bun:"sku,notnull" json:"sku"`
	Barcode           string          `bun:"barcode" json:"barcode,omitempty"`
	Category          string          `bun:"category" json:"category,omitempty"`
	CostPrice         decimal.Decimal `bun:"cost_price,type:numeric(12,2),notnull" json:"cost_price"`
	WholesalePrice    decimal.Decimal `bun:"wholesale_price,type:numeric(12,2),notnull" json:"wholesale_price"`
	RetailPrice       decimal.Decimal `bun:"retail_price,type:numeric(12,2),notnull" json:"retail_price"`
	AvailableQuantity int64           `bun:"available_quantity,notnull" json:"available_quantity"`
	ReservedQuantity  int64           `bun:"reserved_quantity,notnull" json:"reserved_quantity"`
	FrontedQuantity   int64           `bun:"fronted_quantity,notnull" json:"fronted_quantity"`
	TotalQuantity     int64           `bun:"total_quantity,notnull" json:"total_quantity"`
	LowStockThreshold int64           `bun:"low_stock_threshold,notnull" json:"low_stock_threshold"`
	InStock           bool            `bun:"in_stock,notnull" json:"in_stock"`
	Version           int64           `bun:"version,notnull" json:"version"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt         time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// SetAvailable updates the available quantity and the counters derived from it.
func (p *Product) SetAvailable(qty int64) {
	if qty < 0 {
		qty = 0
	}
	p.AvailableQuantity = qty
	p.TotalQuantity = p.AvailableQuantity + p.ReservedQuantity + p.FrontedQuantity
	p.InStock = p.AvailableQuantity > 0
}

// LowStock reports whether available stock is at or below the threshold.
func (p *Product) LowStock() bool {
	return p.LowStockThreshold > 0 && p.AvailableQuantity <= p.LowStockThreshold
}
