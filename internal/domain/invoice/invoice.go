package invoice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const (
	AggregateType       = "Invoice"
	EventInvoiceCreated = "InvoiceCreated"
)

var ErrInvoiceNotFound = errors.Wrap(domainerr.ErrNotFound, "invoice")

// InvoiceCreated freezes the order lines and totals at completion.
type InvoiceCreated struct {
	InvoiceID      string       `json:"invoice_id"`
	Reference      string       `json:"reference"`
	OrderID        string       `json:"order_id"`
	OrderReference string       `json:"order_reference"`
	CustomerID     string       `json:"customer_id"`
	VendorID       string       `json:"vendor_id"`
	Lines          []order.Line `json:"lines"`
	Totals         order.Totals `json:"totals"`
	CreatedAt      time.Time    `json:"created_at"`
}

type Invoice struct {
	ID             string       `json:"id"`
	Reference      string       `json:"reference"`
	OrderID        string       `json:"order_id"`
	OrderReference string       `json:"order_reference"`
	CustomerID     string       `json:"customer_id"`
	VendorID       string       `json:"vendor_id"`
	Lines          []order.Line `json:"lines"`
	Totals         order.Totals `json:"totals"`
	CreatedAt      time.Time    `json:"created_at"`
	Version        int          `json:"version"`
}

// Aggregate interface implementation
func (i *Invoice) GetID() string    { return i.ID }
func (i *Invoice) GetVersion() int  { return i.Version }
func (i *Invoice) SetVersion(v int) { i.Version = v }

// Create records an invoice for o in the batch. The caller completes the
// order with the returned invoice id in the same batch.
func Create(b *store.Batch, reference string, o *order.Order, at time.Time) (*Invoice, error) {
	inv := &Invoice{ID: uuid.New().String()}
	err := aggregate.Record(b, inv, AggregateType, EventInvoiceCreated, InvoiceCreated{
		InvoiceID:      inv.ID,
		Reference:      reference,
		OrderID:        o.ID,
		OrderReference: o.Reference,
		CustomerID:     o.CustomerID,
		VendorID:       o.VendorID,
		Lines:          append([]order.Line(nil), o.Lines...),
		Totals:         o.Totals(),
		CreatedAt:      at,
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (i *Invoice) ApplyEvent(event store.Event) error {
	if event.EventType != EventInvoiceCreated {
		return nil
	}
	var data InvoiceCreated
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return err
	}
	i.ID = data.InvoiceID
	i.Reference = data.Reference
	i.OrderID = data.OrderID
	i.OrderReference = data.OrderReference
	i.CustomerID = data.CustomerID
	i.VendorID = data.VendorID
	i.Lines = data.Lines
	i.Totals = data.Totals
	i.CreatedAt = data.CreatedAt
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, id string) (*Invoice, error) {
	inv, found, err := aggregate.LoadAggregate(ctx, s.eventStore, id, func() *Invoice { return &Invoice{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrInvoiceNotFound, "id %s", id)
	}
	return inv, nil
}
