package cart

import "time"

// Item is one cart row: a pending, unconfirmed intent to purchase a
// given product/quantity. Price and ProductStock are snapshots taken
// at add-time; they are not re-read from the catalog afterwards.
type Item struct {
	ID           string    `json:"id"`
	UserEmail    string    `json:"userEmail"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	Price        float64   `json:"price"`
	Quantity     int       `json:"quantity"`
	UnitMeasure  string    `json:"unitMeasure"`
	VendorEmail  string    `json:"vendorEmail"`
	ProductStock int       `json:"productStock"`
	AddedAt      time.Time `json:"addedAt"`
}

// Subtotal is the line total for this row.
func (i Item) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}
