package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid           = "OrderPaid"
	EventOrderFulfilled      = "OrderFulfilled"
	EventFulfillmentRejected = "FulfillmentRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidPayload struct {
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
}

type OrderFulfilledPayload struct {
	OrderID string `json:"order_id"`
}

type StockShortfall struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type FulfillmentRejectedPayload struct {
	OrderID string          `json:"order_id"`
	Reason  string          `json:"reason"` // e.g. OUT_OF_STOCK
	Detail  *StockShortfall `json:"detail,omitempty"`
}
