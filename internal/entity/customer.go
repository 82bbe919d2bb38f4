package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CustomerType drives pricing eligibility.
type CustomerType string

const (
	CustomerTypeRecreational CustomerType = "recreational"
	CustomerTypeMedical      CustomerType = "medical"
	CustomerTypeWholesale    CustomerType = "wholesale"
)

// Customer is a buyer known to a tenant.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	TenantID      uuid.UUID    `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Name          string       `bun:"name,notnull" json:"name"`
	Email         string       `bun:"email" json:"email,omitempty"`
	Phone         string       `bun:"phone" json:"phone,omitempty"`
	Type          CustomerType `bun:"customer_type,notnull" json:"customer_type"`
	LoyaltyPoints int64        `bun:"loyalty_points,notnull" json:"loyalty_points"`
	CreatedAt     time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Address is a postal address attached to a customer.
type Address struct {
	bun.BaseModel `bun:"table:addresses,alias:a"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	TenantID   uuid.UUID  `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	CustomerID *uuid.UUID `bun:"customer_id,type:uuid" json:"customer_id,omitempty"`
	Line1      string     `bun:"line1,notnull" json:"line1"`
	City       string     `bun:"city" json:"city"`
	Region     string     `bun:"region" json:"region"`
	PostalCode string     `bun:"postal_code" json:"postal_code"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// AdminUser is a console user belonging to a tenant.
type AdminUser struct {
	bun.BaseModel `bun:"table:admin_users,alias:u"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	TenantID  uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Email     string    `bun:"email,notnull" json:"email"`
	FullName  string    `bun:"full_name" json:"full_name"`
	Role      string    `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
