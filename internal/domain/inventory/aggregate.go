package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Inventory"

var (
	ErrInsufficientStock = errors.Wrap(domainerr.ErrInsufficientStock, "inventory")
	ErrInvalidQuantity   = errors.Wrap(domainerr.ErrValidation, "stock quantity must be positive")
)

// StreamID is the event stream of a product's inventory. It differs from the
// product id so both aggregates keep independent versions.
func StreamID(productID string) string {
	return "inventory:" + productID
}

// Inventory is the on-hand quantity of one product.
type Inventory struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	OnHand    int    `json:"on_hand"`
	Version   int    `json:"version"`
}

// Aggregate interface implementation
func (i *Inventory) GetID() string    { return i.ID }
func (i *Inventory) GetVersion() int  { return i.Version }
func (i *Inventory) SetVersion(v int) { i.Version = v }

func newInventory(productID string) *Inventory {
	return &Inventory{ID: StreamID(productID), ProductID: productID}
}

func (i *Inventory) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, i, AggregateType, eventType, data)
}

func (i *Inventory) Add(b *store.Batch, qty int, at time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return i.record(b, EventStockAdded, StockAdded{
		ProductID: i.ProductID, Quantity: qty, OnHand: i.OnHand + qty, AddedAt: at,
	})
}

// Remove is a manual downward adjustment; on-hand can never go negative.
func (i *Inventory) Remove(b *store.Batch, qty int, reason string, at time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if i.OnHand < qty {
		return errors.Wrapf(ErrInsufficientStock, "product %s has %d, cannot remove %d", i.ProductID, i.OnHand, qty)
	}
	return i.record(b, EventStockRemoved, StockRemoved{
		ProductID: i.ProductID, Quantity: qty, OnHand: i.OnHand - qty, Reason: reason, RemovedAt: at,
	})
}

// CanReserve reports whether qty units are on hand.
func (i *Inventory) CanReserve(qty int) bool {
	return i.OnHand >= qty
}

// Reserve decrements on-hand by qty for an order. The check and the decrement
// happen against the loaded version; the commit fails if another writer moved it.
func (i *Inventory) Reserve(b *store.Batch, orderID string, qty int, at time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !i.CanReserve(qty) {
		return errors.Wrapf(ErrInsufficientStock, "product %s has %d, order needs %d", i.ProductID, i.OnHand, qty)
	}
	return i.record(b, EventStockReserved, StockReserved{
		ProductID: i.ProductID, OrderID: orderID, Quantity: qty, OnHand: i.OnHand - qty, ReservedAt: at,
	})
}

// Release increments on-hand by qty unconditionally.
func (i *Inventory) Release(b *store.Batch, orderID string, qty int, at time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return i.record(b, EventStockReleased, StockReleased{
		ProductID: i.ProductID, OrderID: orderID, Quantity: qty, OnHand: i.OnHand + qty, ReleasedAt: at,
	})
}

// ApplyEvent applies a single event to the inventory state
func (i *Inventory) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventStockAdded:
		var data StockAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.ProductID = data.ProductID
		i.OnHand += data.Quantity
	case EventStockRemoved:
		var data StockRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.OnHand -= data.Quantity
	case EventStockReserved:
		var data StockReserved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.OnHand -= data.Quantity
	case EventStockReleased:
		var data StockReleased
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		i.OnHand += data.Quantity
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Load returns the inventory of a product. A product without stock events has
// an empty inventory at version 0.
func (s *Service) Load(ctx context.Context, productID string) (*Inventory, error) {
	inv, _, err := aggregate.LoadAggregate(ctx, s.eventStore, StreamID(productID), func() *Inventory {
		return newInventory(productID)
	})
	return inv, err
}

func (s *Service) apply(ctx context.Context, productID string, fn func(inv *Inventory, b *store.Batch) error) (*Inventory, error) {
	inv, err := s.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := fn(inv, b); err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: inv, Type: AggregateType})
	return inv, nil
}

func (s *Service) AddStock(ctx context.Context, productID string, qty int) (*Inventory, error) {
	return s.apply(ctx, productID, func(inv *Inventory, b *store.Batch) error {
		return inv.Add(b, qty, time.Now().UTC())
	})
}

func (s *Service) RemoveStock(ctx context.Context, productID string, qty int, reason string) (*Inventory, error) {
	return s.apply(ctx, productID, func(inv *Inventory, b *store.Batch) error {
		return inv.Remove(b, qty, reason, time.Now().UTC())
	})
}

// Reserve is the standalone check-then-decrement: it either commits the
// decrement against the exact version it checked or fails.
func (s *Service) Reserve(ctx context.Context, productID, orderID string, qty int) error {
	_, err := s.apply(ctx, productID, func(inv *Inventory, b *store.Batch) error {
		return inv.Reserve(b, orderID, qty, time.Now().UTC())
	})
	return err
}

func (s *Service) Release(ctx context.Context, productID, orderID string, qty int) error {
	_, err := s.apply(ctx, productID, func(inv *Inventory, b *store.Batch) error {
		return inv.Release(b, orderID, qty, time.Now().UTC())
	})
	return err
}
