package orders

import "time"

// Item is a line snapshot taken at checkout time. Price and name are frozen
// here; re-deriving totals from these values is a security property.
type Item struct {
	ProductID int     `json:"id"`
	Barcode   *string `json:"barcode,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order is created once at checkout. Status is the only field that mutates
// afterwards; items and totals are immutable. Amount is the integer figure the
// payment code was generated for; provider confirmations are validated against
// it, not against the float totals.
type Order struct {
	OrderID      string    `json:"order_id"`
	UserIdentity string    `json:"user_identity"`
	Items        []Item    `json:"items"`
	Subtotal     float64   `json:"subtotal"`
	ShippingCost float64   `json:"shipping_cost"`
	TotalCost    float64   `json:"total_cost"`
	Amount       int       `json:"amount"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type StatusResponse struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}
