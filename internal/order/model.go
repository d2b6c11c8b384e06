package order

import "time"

type Item struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	UnitMeasure string  `json:"unitMeasure"`
}

// PaymentDetails is the snapshot stored with the order. Only the last
// four digits and the holder name are ever persisted.
type PaymentDetails struct {
	CardLast4  string `json:"cardLast4,omitempty"`
	CardHolder string `json:"cardHolder,omitempty"`
}

// Order is an immutable-items, mutable-status record created from one
// vendor's portion of a checkout.
type Order struct {
	ID              string         `json:"orderId"`
	BuyerEmail      string         `json:"buyerEmail"`
	VendorEmail     string         `json:"vendorEmail"`
	Items           []Item         `json:"items"`
	TotalAmount     float64        `json:"totalAmount"`
	Status          Status         `json:"status"`
	PaymentMethod   string         `json:"paymentMethod"`
	PaymentDetails  PaymentDetails `json:"paymentDetails"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
