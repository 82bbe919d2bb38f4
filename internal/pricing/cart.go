// Package pricing computes point-of-sale cart totals to the cent.
//
// Amounts are shopspring decimals. Tax and discount are each rounded to two places,
// half away from zero, before the total is formed, so
// total == subtotal + tax - discount holds exactly.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/cannadmin/internal/config"
)

const centPlaces = 2

// ErrInvalidLine is returned for non-positive quantities or negative prices.
var ErrInvalidLine = errors.New("cart line must have positive quantity and non-negative price")

// Line is a single cart entry.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Rules holds the tax and discount parameters.
type Rules struct {
	TaxRate              decimal.Decimal
	DiscountRate         decimal.Decimal
	DiscountCustomerType string
}

// RulesFromConfig extracts pricing rules from the POS configuration.
func RulesFromConfig(cfg config.POS) Rules {
	return Rules{
		TaxRate:              cfg.TaxRate,
		DiscountRate:         cfg.DiscountRate,
		DiscountCustomerType: cfg.DiscountCustomerType,
	}
}

// Totals is the priced result of a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}

// DiscountEligible reports whether the customer type receives the discount.
// An empty type is a walk-in customer.
func (r Rules) DiscountEligible(customerType string) bool {
	if r.DiscountCustomerType == "" || customerType == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(customerType), r.DiscountCustomerType)
}

// Compute prices the cart for the given customer type.
func (r Rules) Compute(lines []Line, customerType string) (Totals, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidLine
		}
		subtotal = subtotal.Add(l.Total())
	}
	subtotal = Round2(subtotal)

	tax := Round2(subtotal.Mul(r.TaxRate))
	discount := decimal.Zero
	if r.DiscountEligible(customerType) {
		discount = Round2(subtotal.Mul(r.DiscountRate))
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount),
	}, nil
}

// LoyaltyPoints returns whole points earned for a total at the given rate.
func LoyaltyPoints(total, perUnit decimal.Decimal) int64 {
	if total.IsNegative() || perUnit.IsNegative() {
		return 0
	}
	return total.Mul(perUnit).Floor().IntPart()
}
