package events

import "time"

const (
	OrderPlacedEventName    = "OrderPlaced"
	OrderPlacedEventVersion = 1
	OrderPlacedSchemaPath   = "contracts/events/order/OrderPlaced.v1.enveloped.schema.json"

	OrderStatusChangedEventName    = "OrderStatusChanged"
	OrderStatusChangedEventVersion = 1
	OrderStatusChangedSchemaPath   = "contracts/events/order/OrderStatusChanged.v1.enveloped.schema.json"
)

type OrderItemEvent struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	UnitMeasure string  `json:"unitMeasure"`
}

type OrderPlaced struct {
	OrderID     string           `json:"orderId"`
	BuyerEmail  string           `json:"buyerEmail"`
	VendorEmail string           `json:"vendorEmail"`
	Items       []OrderItemEvent `json:"items"`
	TotalAmount float64          `json:"totalAmount"`
	Timestamp   time.Time        `json:"timestamp"`
}

type OrderStatusChanged struct {
	OrderID     string    `json:"orderId"`
	BuyerEmail  string    `json:"buyerEmail"`
	VendorEmail string    `json:"vendorEmail"`
	FromStatus  string    `json:"fromStatus"`
	ToStatus    string    `json:"toStatus"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
