package order

import "github.com/Additional-Code/cannadmin/internal/entity"

// allowedTransitions lists the forward moves of the order lifecycle. in_transit is an
// alternative name some channels use for out_for_delivery.
var allowedTransitions = map[entity.OrderStatus][]entity.OrderStatus{
	entity.OrderStatusPending:        {entity.OrderStatusConfirmed},
	entity.OrderStatusConfirmed:      {entity.OrderStatusPreparing},
	entity.OrderStatusPreparing:      {entity.OrderStatusReady},
	entity.OrderStatusReady:          {entity.OrderStatusOutForDelivery, entity.OrderStatusInTransit},
	entity.OrderStatusOutForDelivery: {entity.OrderStatusDelivered},
	entity.OrderStatusInTransit:      {entity.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
// Cancellation and rejection are allowed from every non-terminal status.
func CanTransition(from, to entity.OrderStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == entity.OrderStatusCancelled || to == entity.OrderStatusRejected {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// KnownStatus reports whether s is a lifecycle status.
func KnownStatus(s entity.OrderStatus) bool {
	switch s {
	case entity.OrderStatusPending, entity.OrderStatusConfirmed, entity.OrderStatusPreparing,
		entity.OrderStatusReady, entity.OrderStatusInTransit, entity.OrderStatusOutForDelivery,
		entity.OrderStatusDelivered, entity.OrderStatusCompleted, entity.OrderStatusCancelled,
		entity.OrderStatusRejected:
		return true
	}
	return false
}
