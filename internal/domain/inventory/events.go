package inventory

import "time"

const (
	EventStockAdded    = "StockAdded"
	EventStockRemoved  = "StockRemoved"
	EventStockReserved = "StockReserved"
	EventStockReleased = "StockReleased"
)

type StockAdded struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	OnHand    int       `json:"on_hand"`
	AddedAt   time.Time `json:"added_at"`
}

type StockRemoved struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	OnHand    int       `json:"on_hand"`
	Reason    string    `json:"reason,omitempty"`
	RemovedAt time.Time `json:"removed_at"`
}

type StockReserved struct {
	ProductID  string    `json:"product_id"`
	OrderID    string    `json:"order_id"`
	Quantity   int       `json:"quantity"`
	OnHand     int       `json:"on_hand"`
	ReservedAt time.Time `json:"reserved_at"`
}

type StockReleased struct {
	ProductID  string    `json:"product_id"`
	OrderID    string    `json:"order_id"`
	Quantity   int       `json:"quantity"`
	OnHand     int       `json:"on_hand"`
	ReleasedAt time.Time `json:"released_at"`
}
