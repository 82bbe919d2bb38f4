package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/cannadmin/internal/entity"
)

// OrderItemRequest is one line of an order submitted over a transport.
type OrderItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderRequest is the payload accepted when creating an order.
type OrderRequest struct {
	CustomerID      *uuid.UUID             `json:"customer_id"`
	StoreID         *uuid.UUID             `json:"store_id"`
	Source          entity.OrderSource     `json:"source"`
	Fulfillment     entity.FulfillmentType `json:"fulfillment"`
	DeliveryAddress string                 `json:"delivery_address"`
	Items           []OrderItemRequest     `json:"items"`
}

// ToEntity converts the request into an unpriced order.
func (r OrderRequest) ToEntity() *entity.Order {
	order := &entity.Order{
		CustomerID:      r.CustomerID,
		StoreID:         r.StoreID,
		Source:          r.Source,
		Fulfillment:     r.Fulfillment,
		DeliveryAddress: r.DeliveryAddress,
		Items:           make([]entity.OrderItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		order.Items = append(order.Items, entity.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order
}

// StatusRequest moves one order.
type StatusRequest struct {
	Status entity.OrderStatus `json:"status"`
}

// BulkStatusRequest moves several orders to the same status.
type BulkStatusRequest struct {
	IDs    []uuid.UUID        `json:"ids"`
	Status entity.OrderStatus `json:"status"`
}

// BulkStatusResult reports the outcome for a single order of a bulk request.
type BulkStatusResult struct {
	OrderID uuid.UUID     `json:"order_id"`
	Applied bool          `json:"applied"`
	Order   *entity.Order `json:"order,omitempty"`
	Error   *ErrorBody    `json:"error,omitempty"`
}

// ErrorBody is the transport shape of an application error.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
