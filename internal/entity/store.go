package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Store is a tenant's white-label storefront configuration.
type Store struct {
	bun.BaseModel `bun:"table:stores,alias:s"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	TenantID       uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Slug           string    `bun:"slug,notnull" json:"slug"`
	Name           string    `bun:"name,notnull" json:"name"`
	LogoURL        string    `bun:"logo_url" json:"logo_url,omitempty"`
	PrimaryColor   string    `bun:"primary_color" json:"primary_color,omitempty"`
	SecondaryColor string    `bun:"secondary_color" json:"secondary_color,omitempty"`
	IsActive       bool      `bun:"is_active,notnull" json:"is_active"`
	IsPublic       bool      `bun:"is_public,notnull" json:"is_public"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// StoreStats are aggregate counters read from the order tables, never stored.
type StoreStats struct {
	TotalOrders    int64           `bun:"total_orders" json:"total_orders"`
	TotalRevenue   decimal.Decimal `bun:"total_revenue" json:"total_revenue"`
	TotalCustomers int64           `bun:"total_customers" json:"total_customers"`
}
