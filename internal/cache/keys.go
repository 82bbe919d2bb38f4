package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// ProductKey is the cache key of a product view.
func ProductKey(tenantID, productID uuid.UUID) string {
	return fmt.Sprintf("products:%s:%s", tenantID, productID)
}

// OrderKey is the cache key of an order view.
func OrderKey(tenantID, orderID uuid.UUID) string {
	return fmt.Sprintf("orders:%s:%s", tenantID, orderID)
}
