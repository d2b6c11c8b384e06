package catalog

import "time"

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Price        float64   `json:"price"`
	Quantity     int       `json:"quantity"`
	UnitMeasure  string    `json:"unitMeasure"`
	MinimumOrder int       `json:"minimumOrder"`
	VendorEmail  string    `json:"vendorEmail"`
	Rating       float64   `json:"rating"`
	RatingCount  int       `json:"ratingCount"`
	ImageURL     string    `json:"imageUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
