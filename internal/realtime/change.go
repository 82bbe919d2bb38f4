// Package realtime carries row-level change notifications from writers to subscribers.
// Subscribers react by invalidating and refetching; changes carry no row payload.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Tables that publish changes.
const (
	TableProducts        = "products"
	TableOrders          = "orders"
	TablePosTransactions = "pos_transactions"
	TableCustomers       = "customers"
	TableStores          = "stores"
	TableDeliveryPings   = "delivery_pings"
	TableMovements       = "inventory_movements"
)

// Change describes one row change.
type Change struct {
	Table    string    `json:"table"`
	Type     EventType `json:"type"`
	TenantID uuid.UUID `json:"tenant_id"`
	RecordID uuid.UUID `json:"record_id"`
	At       time.Time `json:"at"`
}

// NewChange stamps a change with the current time.
func NewChange(table string, typ EventType, tenantID, recordID uuid.UUID) Change {
	return Change{Table: table, Type: typ, TenantID: tenantID, RecordID: recordID, At: time.Now().UTC()}
}

// Filter selects changes for a subscriber.
type Filter struct {
	// Tables to receive; empty means every table.
	Tables []string
	// TenantID must match. uuid.Nil is reserved for internal cross-tenant consumers.
	TenantID uuid.UUID
	// RecordID narrows to a single row when set.
	RecordID *uuid.UUID
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Change) bool {
	if f.TenantID != uuid.Nil && f.TenantID != c.TenantID {
		return false
	}
	if f.RecordID != nil && *f.RecordID != c.RecordID {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if t == c.Table {
			return true
		}
	}
	return false
}
