package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PaymentMethod is how a point-of-sale transaction was tendered.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentDebit PaymentMethod = "debit"
)

// PosTransaction is a completed point-of-sale sale.
type PosTransaction struct {
	bun.BaseModel `bun:"table:pos_transactions,alias:pt"`

	ID                  uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	TenantID            uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Number              string          `bun:"number,notnull" json:"number"`
	CustomerID          *uuid.UUID      `bun:"customer_id,type:uuid" json:"customer_id,omitempty"`
	CashierID           *uuid.UUID      `bun:"cashier_id,type:uuid" json:"cashier_id,omitempty"`
	PaymentMethod       PaymentMethod   `bun:"payment_method,notnull" json:"payment_method"`
	Subtotal            decimal.Decimal `bun:"subtotal,type:numeric(12,2),notnull" json:"subtotal"`
	Tax                 decimal.Decimal `bun:"tax,type:numeric(12,2),notnull" json:"tax"`
	Discount            decimal.Decimal `bun:"discount,type:numeric(12,2),notnull" json:"discount"`
	Total               decimal.Decimal `bun:"total,type:numeric(12,2),notnull" json:"total"`
	CashTendered        decimal.Decimal `bun:"cash_tendered,type:numeric(12,2),notnull" json:"cash_tendered"`
	ChangeDue           decimal.Decimal `bun:"change_due,type:numeric(12,2),notnull" json:"change_due"`
	LoyaltyPointsEarned int64           `bun:"loyalty_points_earned,notnull" json:"loyalty_points_earned"`
	SourceOrderID       *uuid.UUID      `bun:"source_order_id,type:uuid" json:"source_order_id,omitempty"`
	CreatedAt           time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Items []PosTransactionItem `bun:"rel:has-many,join:id=transaction_id" json:"items"`
}

// PosTransactionItem is one sold line of a transaction.
type PosTransactionItem struct {
	bun.BaseModel `bun:"table:pos_transaction_items,alias:pti"`

	ID            uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	TenantID      uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	TransactionID uuid.UUID       `bun:"transaction_id,type:uuid,notnull" json:"transaction_id"`
	ProductID     uuid.UUID       `bun:"product_id,type:uuid,notnull" json:"product_id"`
	Name          string          `bun:"name" json:"name"`
	Quantity      int64           `bun:"quantity,notnull" json:"quantity"`
	UnitPrice     decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
	LineTotal     decimal.Decimal `bun:"line_total,type:numeric(12,2),notnull" json:"line_total"`
}
