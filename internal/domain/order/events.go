package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderLineAdded   = "OrderLineAdded"
	EventOrderLineUpdated = "OrderLineUpdated"
	EventOrderLineRemoved = "OrderLineRemoved"
	EventOrderShippingSet = "OrderShippingSet"
	EventOrderConfirmed   = "OrderConfirmed"
	EventOrderProcessing  = "OrderProcessing"
	EventOrderShipped     = "OrderShipped"
	EventOrderDelivered   = "OrderDelivered"
	EventOrderCompleted   = "OrderCompleted"
	EventOrderCancelled   = "OrderCancelled"
)

// Totals travels with every event that changes the order amounts so read
// models never recompute them.
type Totals struct {
	AmountUntaxed decimal.Decimal `json:"amount_untaxed"`
	AmountTax     decimal.Decimal `json:"amount_tax"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	AmountTotal   decimal.Decimal `json:"amount_total"`
}

type OrderCreated struct {
	OrderID      string          `json:"order_id"`
	Reference    string          `json:"reference"`
	CustomerID   string          `json:"customer_id"`
	VendorID     string          `json:"vendor_id"`
	Lines        []Line          `json:"lines"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	CustomerNote string          `json:"customer_note,omitempty"`
	Totals       Totals          `json:"totals"`
	CreatedAt    time.Time       `json:"created_at"`
}

type OrderLineAdded struct {
	OrderID string    `json:"order_id"`
	Line    Line      `json:"line"`
	Totals  Totals    `json:"totals"`
	At      time.Time `json:"at"`
}

type OrderLineUpdated struct {
	OrderID string    `json:"order_id"`
	Line    Line      `json:"line"`
	Totals  Totals    `json:"totals"`
	At      time.Time `json:"at"`
}

type OrderLineRemoved struct {
	OrderID string    `json:"order_id"`
	LineID  string    `json:"line_id"`
	Totals  Totals    `json:"totals"`
	At      time.Time `json:"at"`
}

type OrderShippingSet struct {
	OrderID      string          `json:"order_id"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Totals       Totals          `json:"totals"`
	At           time.Time       `json:"at"`
}

type OrderConfirmed struct {
	OrderID      string          `json:"order_id"`
	CommissionID string          `json:"commission_id"`
	AmountTotal  decimal.Decimal `json:"amount_total"`
	ConfirmedAt  time.Time       `json:"confirmed_at"`
}

type OrderProcessing struct {
	OrderID      string    `json:"order_id"`
	ProcessingAt time.Time `json:"processing_at"`
}

type OrderShipped struct {
	OrderID        string    `json:"order_id"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	ShippedAt      time.Time `json:"shipped_at"`
}

type OrderDelivered struct {
	OrderID     string    `json:"order_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type OrderCompleted struct {
	OrderID   string    `json:"order_id"`
	InvoiceID string    `json:"invoice_id"`
	DoneAt    time.Time `json:"done_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	Reason      string    `json:"reason,omitempty"`
	Restocked   bool      `json:"restocked"`
	CancelledAt time.Time `json:"cancelled_at"`
}
