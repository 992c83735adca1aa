package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Order"

var (
	ErrOrderNotFound    = errors.Wrap(domainerr.ErrNotFound, "order")
	ErrLineNotFound     = errors.Wrap(domainerr.ErrNotFound, "order line")
	ErrEmptyOrder       = errors.Wrap(domainerr.ErrValidation, "order must have at least one line")
	ErrMissingCustomer  = errors.Wrap(domainerr.ErrValidation, "order must have a customer")
	ErrMissingVendor    = errors.Wrap(domainerr.ErrValidation, "order must have a vendor")
	ErrInvalidShipping  = errors.Wrap(domainerr.ErrValidation, "shipping cost must not be negative")
	ErrOrderNotEditable = errors.Wrap(domainerr.ErrInvalidTransition, "order lines can only change while draft")
)

type Order struct {
	ID             string          `json:"id"`
	Reference      string          `json:"reference"`
	CustomerID     string          `json:"customer_id"`
	VendorID       string          `json:"vendor_id"`
	Lines          []Line          `json:"lines"`
	Status         Status          `json:"status"`
	AmountUntaxed  decimal.Decimal `json:"amount_untaxed"`
	AmountTax      decimal.Decimal `json:"amount_tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	AmountTotal    decimal.Decimal `json:"amount_total"`
	CustomerNote   string          `json:"customer_note,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	CommissionID   string          `json:"commission_id,omitempty"`
	InvoiceID      string          `json:"invoice_id,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	ProcessingAt   *time.Time      `json:"processing_at,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	DoneAt         *time.Time      `json:"done_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// Totals returns the current derived amounts.
func (o *Order) Totals() Totals {
	return Totals{
		AmountUntaxed: o.AmountUntaxed,
		AmountTax:     o.AmountTax,
		ShippingCost:  o.ShippingCost,
		AmountTotal:   o.AmountTotal,
	}
}

// recompute refreshes every derived amount from the lines and shipping cost.
func (o *Order) recompute() {
	o.AmountUntaxed = decimal.Zero
	o.AmountTax = decimal.Zero
	for i := range o.Lines {
		o.Lines[i].Recompute()
		o.AmountUntaxed = o.AmountUntaxed.Add(o.Lines[i].Subtotal)
		o.AmountTax = o.AmountTax.Add(o.Lines[i].TaxAmount)
	}
	o.AmountTotal = o.AmountUntaxed.Add(o.AmountTax).Add(o.ShippingCost)
}

// preview returns the totals the order would have with the given lines and shipping.
func preview(lines []Line, shipping decimal.Decimal) Totals {
	o := Order{Lines: append([]Line(nil), lines...), ShippingCost: shipping}
	o.recompute()
	return o.Totals()
}

func (o *Order) lineIndex(lineID string) int {
	for i, l := range o.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func (o *Order) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, o, AggregateType, eventType, data)
}

// CreateParams describes a new draft order.
type CreateParams struct {
	Reference    string
	CustomerID   string
	VendorID     string
	Lines        []Line
	ShippingCost decimal.Decimal
	CustomerNote string
}

// Create records a new draft order in the batch.
func Create(b *store.Batch, p CreateParams, at time.Time) (*Order, error) {
	switch {
	case p.CustomerID == "":
		return nil, ErrMissingCustomer
	case p.VendorID == "":
		return nil, ErrMissingVendor
	case len(p.Lines) == 0:
		return nil, ErrEmptyOrder
	case p.ShippingCost.IsNegative():
		return nil, ErrInvalidShipping
	}

	lines := make([]Line, len(p.Lines))
	for i, l := range p.Lines {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.Recompute()
		lines[i] = l
	}

	o := &Order{ID: uuid.New().String()}
	err := o.record(b, EventOrderCreated, OrderCreated{
		OrderID:      o.ID,
		Reference:    p.Reference,
		CustomerID:   p.CustomerID,
		VendorID:     p.VendorID,
		Lines:        lines,
		ShippingCost: p.ShippingCost,
		CustomerNote: p.CustomerNote,
		Totals:       preview(lines, p.ShippingCost),
		CreatedAt:    at,
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Order) ensureDraft() error {
	if o.Status != StatusDraft {
		return errors.Wrapf(ErrOrderNotEditable, "order %s is %s", o.Reference, o.Status)
	}
	return nil
}

func (o *Order) AddLine(b *store.Batch, l Line, at time.Time) error {
	if err := o.ensureDraft(); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.Recompute()

	return o.record(b, EventOrderLineAdded, OrderLineAdded{
		OrderID: o.ID,
		Line:    l,
		Totals:  preview(append(append([]Line(nil), o.Lines...), l), o.ShippingCost),
		At:      at,
	})
}

// LineChange carries the editable inputs of a line; nil fields stay unchanged.
type LineChange struct {
	Quantity  *int
	PriceUnit *decimal.Decimal
	Discount  *decimal.Decimal
	TaxRate   *decimal.Decimal
}

func (o *Order) UpdateLine(b *store.Batch, lineID string, c LineChange, at time.Time) error {
	if err := o.ensureDraft(); err != nil {
		return err
	}
	i := o.lineIndex(lineID)
	if i < 0 {
		return errors.Wrapf(ErrLineNotFound, "line %s", lineID)
	}

	l := o.Lines[i]
	if c.Quantity != nil {
		l.Quantity = *c.Quantity
	}
	if c.PriceUnit != nil {
		l.PriceUnit = *c.PriceUnit
	}
	if c.Discount != nil {
		l.Discount = *c.Discount
	}
	if c.TaxRate != nil {
		l.TaxRate = *c.TaxRate
	}
	if err := l.Validate(); err != nil {
		return err
	}
	l.Recompute()

	lines := append([]Line(nil), o.Lines...)
	lines[i] = l
	return o.record(b, EventOrderLineUpdated, OrderLineUpdated{
		OrderID: o.ID,
		Line:    l,
		Totals:  preview(lines, o.ShippingCost),
		At:      at,
	})
}

func (o *Order) RemoveLine(b *store.Batch, lineID string, at time.Time) error {
	if err := o.ensureDraft(); err != nil {
		return err
	}
	i := o.lineIndex(lineID)
	if i < 0 {
		return errors.Wrapf(ErrLineNotFound, "line %s", lineID)
	}

	lines := append(append([]Line(nil), o.Lines[:i]...), o.Lines[i+1:]...)
	return o.record(b, EventOrderLineRemoved, OrderLineRemoved{
		OrderID: o.ID,
		LineID:  lineID,
		Totals:  preview(lines, o.ShippingCost),
		At:      at,
	})
}

func (o *Order) SetShipping(b *store.Batch, cost decimal.Decimal, at time.Time) error {
	if err := o.ensureDraft(); err != nil {
		return err
	}
	if cost.IsNegative() {
		return ErrInvalidShipping
	}
	return o.record(b, EventOrderShippingSet, OrderShippingSet{
		OrderID:      o.ID,
		ShippingCost: cost,
		Totals:       preview(o.Lines, cost),
		At:           at,
	})
}

// Plan returns the transition an action would take from the current state.
func (o *Order) Plan(action Action) (Transition, error) {
	t, err := Next(o.Status, action)
	if err != nil {
		return t, errors.WithMessagef(err, "order %s", o.Reference)
	}
	return t, nil
}

// Confirm moves a draft order to confirmed and links its commission.
func (o *Order) Confirm(b *store.Batch, commissionID string, at time.Time) error {
	if _, err := o.Plan(ActionConfirm); err != nil {
		return err
	}
	if len(o.Lines) == 0 {
		return ErrEmptyOrder
	}
	return o.record(b, EventOrderConfirmed, OrderConfirmed{
		OrderID:      o.ID,
		CommissionID: commissionID,
		AmountTotal:  o.AmountTotal,
		ConfirmedAt:  at,
	})
}

func (o *Order) Process(b *store.Batch, at time.Time) error {
	if _, err := o.Plan(ActionProcess); err != nil {
		return err
	}
	return o.record(b, EventOrderProcessing, OrderProcessing{OrderID: o.ID, ProcessingAt: at})
}

func (o *Order) Ship(b *store.Batch, trackingNumber string, at time.Time) error {
	if _, err := o.Plan(ActionShip); err != nil {
		return err
	}
	return o.record(b, EventOrderShipped, OrderShipped{OrderID: o.ID, TrackingNumber: trackingNumber, ShippedAt: at})
}

func (o *Order) Deliver(b *store.Batch, at time.Time) error {
	if _, err := o.Plan(ActionDeliver); err != nil {
		return err
	}
	return o.record(b, EventOrderDelivered, OrderDelivered{OrderID: o.ID, DeliveredAt: at})
}

func (o *Order) Complete(b *store.Batch, invoiceID string, at time.Time) error {
	if _, err := o.Plan(ActionComplete); err != nil {
		return err
	}
	return o.record(b, EventOrderCompleted, OrderCompleted{OrderID: o.ID, InvoiceID: invoiceID, DoneAt: at})
}

// Cancel moves the order to cancelled. The restocked flag records whether the
// caller released the reserved stock in the same batch.
func (o *Order) Cancel(b *store.Batch, reason string, at time.Time) error {
	t, err := o.Plan(ActionCancel)
	if err != nil {
		return err
	}
	return o.record(b, EventOrderCancelled, OrderCancelled{
		OrderID:     o.ID,
		Reason:      reason,
		Restocked:   t.Effects.Has(EffectReleaseStock),
		CancelledAt: at,
	})
}

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderCreated:
		var data OrderCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.Reference = data.Reference
		o.CustomerID = data.CustomerID
		o.VendorID = data.VendorID
		o.Lines = data.Lines
		o.ShippingCost = data.ShippingCost
		o.CustomerNote = data.CustomerNote
		o.Status = StatusDraft
		o.CreatedAt = data.CreatedAt
		o.UpdatedAt = data.CreatedAt
		o.recompute()

	case EventOrderLineAdded:
		var data OrderLineAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Lines = append(o.Lines, data.Line)
		o.UpdatedAt = data.At
		o.recompute()

	case EventOrderLineUpdated:
		var data OrderLineUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if i := o.lineIndex(data.Line.ID); i >= 0 {
			o.Lines[i] = data.Line
		}
		o.UpdatedAt = data.At
		o.recompute()

	case EventOrderLineRemoved:
		var data OrderLineRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if i := o.lineIndex(data.LineID); i >= 0 {
			o.Lines = append(o.Lines[:i], o.Lines[i+1:]...)
		}
		o.UpdatedAt = data.At
		o.recompute()

	case EventOrderShippingSet:
		var data OrderShippingSet
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ShippingCost = data.ShippingCost
		o.UpdatedAt = data.At
		o.recompute()

	case EventOrderConfirmed:
		var data OrderConfirmed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusConfirmed
		o.CommissionID = data.CommissionID
		o.ConfirmedAt = &data.ConfirmedAt
		o.UpdatedAt = data.ConfirmedAt

	case EventOrderProcessing:
		var data OrderProcessing
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusProcessing
		o.ProcessingAt = &data.ProcessingAt
		o.UpdatedAt = data.ProcessingAt

	case EventOrderShipped:
		var data OrderShipped
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusShipped
		o.TrackingNumber = data.TrackingNumber
		o.ShippedAt = &data.ShippedAt
		o.UpdatedAt = data.ShippedAt

	case EventOrderDelivered:
		var data OrderDelivered
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusDelivered
		o.DeliveredAt = &data.DeliveredAt
		o.UpdatedAt = data.DeliveredAt

	case EventOrderCompleted:
		var data OrderCompleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusDone
		o.InvoiceID = data.InvoiceID
		o.DoneAt = &data.DoneAt
		o.UpdatedAt = data.DoneAt

	case EventOrderCancelled:
		var data OrderCancelled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.CancelReason = data.Reason
		o.CancelledAt = &data.CancelledAt
		o.UpdatedAt = data.CancelledAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Load rebuilds an order, returning ErrOrderNotFound when it has no events.
func (s *Service) Load(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order { return &Order{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrOrderNotFound, "id %s", orderID)
	}
	return o, nil
}

// Edit loads an order, applies fn and commits the resulting events.
func (s *Service) Edit(ctx context.Context, orderID string, fn func(o *Order, b *store.Batch) error) (*Order, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := fn(o, b); err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: o, Type: AggregateType})
	return o, nil
}
