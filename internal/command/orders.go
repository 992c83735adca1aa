package command

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/inventory"
	"github.com/example/marketplace/internal/domain/invoice"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/infrastructure/sequence"
	"github.com/example/marketplace/internal/infrastructure/store"
)

var (
	ErrProductNotSellable = errors.Wrap(domainerr.ErrValidation, "product is not available for sale")
	ErrNoOrdersSelected   = errors.Wrap(domainerr.ErrValidation, "select at least one order")
)

// PlaceOrders creates one draft order per vendor of the checkout lines. All
// orders are committed together.
func (h *Handler) PlaceOrders(ctx context.Context, cmd PlaceOrders) ([]*order.Order, error) {
	if cmd.CustomerID == "" {
		return nil, order.ErrMissingCustomer
	}
	if len(cmd.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	var vendorIDs []string
	byVendor := make(map[string][]order.Line)
	for _, cl := range cmd.Lines {
		l, vendorID, err := h.catalogLine(ctx, cl)
		if err != nil {
			return nil, err
		}
		if _, ok := byVendor[vendorID]; !ok {
			vendorIDs = append(vendorIDs, vendorID)
		}
		byVendor[vendorID] = append(byVendor[vendorID], l)
	}

	at := h.now()
	b := store.NewBatch()
	orders := make([]*order.Order, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		if _, err := h.vendorSvc.LoadSelling(ctx, vendorID); err != nil {
			return nil, err
		}
		ref, err := h.sequence.Next(ctx, sequence.Order)
		if err != nil {
			return nil, errors.Wrap(err, "order reference")
		}
		o, err := order.Create(b, order.CreateParams{
			Reference:    ref,
			CustomerID:   cmd.CustomerID,
			VendorID:     vendorID,
			Lines:        byVendor[vendorID],
			ShippingCost: cmd.ShippingCost,
			CustomerNote: cmd.CustomerNote,
		}, at)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := h.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	for _, o := range orders {
		logger.WithContext(ctx).WithFields(log.Fields{
			"order":    o.Reference,
			"vendor":   o.VendorID,
			"customer": o.CustomerID,
			"total":    o.AmountTotal.String(),
		}).Info("order placed")
	}
	return orders, nil
}

// catalogLine builds an order line from a published product, defaulting the
// unit price to the effective catalog price.
func (h *Handler) catalogLine(ctx context.Context, cl CheckoutLine) (order.Line, string, error) {
	p, err := h.productSvc.Load(ctx, cl.ProductID)
	if err != nil {
		return order.Line{}, "", err
	}
	if !p.Sellable() {
		return order.Line{}, "", errors.Wrapf(ErrProductNotSellable, "product %s is %s", p.Code, p.State)
	}
	price := cl.PriceUnit
	if price.IsZero() {
		price = p.EffectivePrice()
	}
	return order.Line{
		ProductID:   p.ID,
		ProductName: p.Details.Name,
		Quantity:    cl.Quantity,
		PriceUnit:   price,
		Discount:    cl.Discount,
		TaxRate:     cl.TaxRate,
	}, p.VendorID, nil
}

func (h *Handler) AddOrderLine(ctx context.Context, cmd AddOrderLine) (*order.Order, error) {
	l, vendorID, err := h.catalogLine(ctx, cmd.Line)
	if err != nil {
		return nil, err
	}
	return h.orderSvc.Edit(ctx, cmd.OrderID, func(o *order.Order, b *store.Batch) error {
		if vendorID != o.VendorID {
			return errors.Wrapf(ErrProductNotSellable, "product %s belongs to another vendor", l.ProductID)
		}
		return o.AddLine(b, l, h.now())
	})
}

func (h *Handler) UpdateOrderLine(ctx context.Context, cmd UpdateOrderLine) (*order.Order, error) {
	return h.orderSvc.Edit(ctx, cmd.OrderID, func(o *order.Order, b *store.Batch) error {
		return o.UpdateLine(b, cmd.LineID, order.LineChange{
			Quantity:  cmd.Quantity,
			PriceUnit: cmd.PriceUnit,
			Discount:  cmd.Discount,
			TaxRate:   cmd.TaxRate,
		}, h.now())
	})
}

func (h *Handler) RemoveOrderLine(ctx context.Context, cmd RemoveOrderLine) (*order.Order, error) {
	return h.orderSvc.Edit(ctx, cmd.OrderID, func(o *order.Order, b *store.Batch) error {
		return o.RemoveLine(b, cmd.LineID, h.now())
	})
}

func (h *Handler) SetShipping(ctx context.Context, cmd SetShipping) (*order.Order, error) {
	return h.orderSvc.Edit(ctx, cmd.OrderID, func(o *order.Order, b *store.Batch) error {
		return o.SetShipping(b, cmd.ShippingCost, h.now())
	})
}

func (h *Handler) ConfirmOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transitionOrder(ctx, orderID, order.ActionConfirm, transitionInput{})
}

func (h *Handler) ProcessOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transitionOrder(ctx, orderID, order.ActionProcess, transitionInput{})
}

func (h *Handler) ShipOrder(ctx context.Context, cmd ShipOrder) (*order.Order, error) {
	return h.transitionOrder(ctx, cmd.OrderID, order.ActionShip, transitionInput{trackingNumber: cmd.TrackingNumber})
}

func (h *Handler) DeliverOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transitionOrder(ctx, orderID, order.ActionDeliver, transitionInput{})
}

func (h *Handler) CompleteOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transitionOrder(ctx, orderID, order.ActionComplete, transitionInput{})
}

func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	return h.transitionOrder(ctx, cmd.OrderID, order.ActionCancel, transitionInput{reason: cmd.Reason})
}

type transitionInput struct {
	trackingNumber string
	reason         string
}

// transitionOrder runs one lifecycle action. The side effects come from the
// transition table; every event they produce lands in a single batch.
func (h *Handler) transitionOrder(ctx context.Context, orderID string, action order.Action, in transitionInput) (o *order.Order, err error) {
	ctx, finish := h.startSpan(ctx, "order."+string(action), attribute.String("order.id", orderID))
	defer func() { finish(err) }()

	o, err = h.orderSvc.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	t, err := o.Plan(action)
	if err != nil {
		return nil, err
	}

	at := h.now()
	b := store.NewBatch()
	snaps, err := h.applyEffects(ctx, b, o, t, at)
	if err != nil {
		return nil, err
	}

	switch action {
	case order.ActionConfirm:
		err = o.Confirm(b, o.CommissionID, at)
	case order.ActionProcess:
		err = o.Process(b, at)
	case order.ActionShip:
		err = o.Ship(b, in.trackingNumber, at)
	case order.ActionDeliver:
		err = o.Deliver(b, at)
	case order.ActionComplete:
		err = o.Complete(b, o.InvoiceID, at)
	case order.ActionCancel:
		err = o.Cancel(b, in.reason, at)
	}
	if err != nil {
		return nil, err
	}

	snaps = append(snaps, aggregate.Snapshotter{Aggregate: o, Type: order.AggregateType})
	if err := h.commit(ctx, b, order.AggregateType, string(action), snaps...); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).WithFields(log.Fields{
		"order": o.Reference,
		"from":  t.From,
		"to":    t.To,
	}).Info("order transition")

	h.notify(ctx, t, o)
	return o, nil
}

// applyEffects records the stock, commission and invoice events of a
// transition. It sets o.CommissionID and o.InvoiceID for the order event that
// follows; ApplyEvent overwrites them with the same values.
func (h *Handler) applyEffects(ctx context.Context, b *store.Batch, o *order.Order, t order.Transition, at time.Time) ([]aggregate.Snapshotter, error) {
	var snaps []aggregate.Snapshotter

	if t.Effects.Has(order.EffectReserveStock) {
		s, err := h.reserveStock(ctx, b, o, at)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s...)
	}
	if t.Effects.Has(order.EffectReleaseStock) {
		s, err := h.releaseStock(ctx, b, o, at)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s...)
	}
	if t.Effects.Has(order.EffectCancelCommission) && o.CommissionID != "" {
		s, err := h.cancelCommission(ctx, b, o, at)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s...)
	}
	if t.Effects.Has(order.EffectCreateCommission) {
		c, err := h.createCommission(ctx, b, o, at)
		if err != nil {
			return nil, err
		}
		o.CommissionID = c.ID
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: c, Type: commission.AggregateType})
	}
	if t.Effects.Has(order.EffectCreateInvoice) {
		ref, err := h.sequence.Next(ctx, sequence.Invoice)
		if err != nil {
			return nil, errors.Wrap(err, "invoice reference")
		}
		inv, err := invoice.Create(b, ref, o, at)
		if err != nil {
			return nil, err
		}
		o.InvoiceID = inv.ID
	}
	return snaps, nil
}

// cancelCommission voids the order's commission, taking it out of an unpaid
// payout first. A paid commission makes the cancellation fail.
func (h *Handler) cancelCommission(ctx context.Context, b *store.Batch, o *order.Order, at time.Time) ([]aggregate.Snapshotter, error) {
	c, err := h.commissionSvc.Load(ctx, o.CommissionID)
	if err != nil {
		return nil, err
	}
	if c.State == commission.StateCancelled {
		return nil, nil
	}
	snaps := []aggregate.Snapshotter{{Aggregate: c, Type: commission.AggregateType}}

	if c.PayoutID != "" && c.State != commission.StatePaid {
		p, err := h.payoutSvc.Load(ctx, c.PayoutID)
		if err != nil {
			return nil, err
		}
		if err := p.RemoveCommission(b, c, at); err != nil {
			return nil, errors.WithMessagef(err, "cancel order %s", o.Reference)
		}
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: p, Type: payout.AggregateType})
	}
	if err := c.Cancel(b, at); err != nil {
		return nil, errors.WithMessagef(err, "cancel order %s", o.Reference)
	}
	return snaps, nil
}

// loadStocks loads the inventory of every product on the order once, in line order.
func (h *Handler) loadStocks(ctx context.Context, o *order.Order) ([]string, map[string]*inventory.Inventory, error) {
	var ids []string
	stocks := make(map[string]*inventory.Inventory)
	for _, l := range o.Lines {
		if _, ok := stocks[l.ProductID]; ok {
			continue
		}
		inv, err := h.inventorySvc.Load(ctx, l.ProductID)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, l.ProductID)
		stocks[l.ProductID] = inv
	}
	return ids, stocks, nil
}

// reserveStock checks every product against the order's total demand before
// reserving anything, then reserves line by line.
func (h *Handler) reserveStock(ctx context.Context, b *store.Batch, o *order.Order, at time.Time) ([]aggregate.Snapshotter, error) {
	ids, stocks, err := h.loadStocks(ctx, o)
	if err != nil {
		return nil, err
	}

	demand := make(map[string]int)
	for _, l := range o.Lines {
		demand[l.ProductID] += l.Quantity
	}
	for _, id := range ids {
		if inv := stocks[id]; !inv.CanReserve(demand[id]) {
			return nil, errors.Wrapf(inventory.ErrInsufficientStock,
				"order %s needs %d of product %s, %d on hand", o.Reference, demand[id], id, inv.OnHand)
		}
	}

	for _, l := range o.Lines {
		if l.Quantity == 0 {
			continue
		}
		if err := stocks[l.ProductID].Reserve(b, o.ID, l.Quantity, at); err != nil {
			return nil, errors.WithMessagef(err, "reserve for order %s", o.Reference)
		}
	}
	return stockSnapshots(ids, stocks), nil
}

// releaseStock adds back exactly the quantities reserved at confirmation.
func (h *Handler) releaseStock(ctx context.Context, b *store.Batch, o *order.Order, at time.Time) ([]aggregate.Snapshotter, error) {
	ids, stocks, err := h.loadStocks(ctx, o)
	if err != nil {
		return nil, err
	}
	for _, l := range o.Lines {
		if l.Quantity == 0 {
			continue
		}
		if err := stocks[l.ProductID].Release(b, o.ID, l.Quantity, at); err != nil {
			return nil, errors.WithMessagef(err, "release for order %s", o.Reference)
		}
	}
	return stockSnapshots(ids, stocks), nil
}

func stockSnapshots(ids []string, stocks map[string]*inventory.Inventory) []aggregate.Snapshotter {
	snaps := make([]aggregate.Snapshotter, 0, len(ids))
	for _, id := range ids {
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: stocks[id], Type: inventory.AggregateType})
	}
	return snaps
}

func (h *Handler) createCommission(ctx context.Context, b *store.Batch, o *order.Order, at time.Time) (*commission.Commission, error) {
	v, err := h.vendorSvc.Load(ctx, o.VendorID)
	if err != nil {
		return nil, err
	}
	ref, err := h.sequence.Next(ctx, sequence.Commission)
	if err != nil {
		return nil, errors.Wrap(err, "commission reference")
	}
	return commission.Create(b, commission.CreateParams{
		Reference:      ref,
		OrderID:        o.ID,
		OrderReference: o.Reference,
		VendorID:       o.VendorID,
		OrderAmount:    o.AmountTotal,
		Policy:         v.Policy,
	}, at)
}

// MassConfirmResult reports each order of a mass confirmation.
type MassConfirmResult struct {
	Confirmed []string          `json:"confirmed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// MassConfirm confirms each order on its own; one failure does not stop the rest.
func (h *Handler) MassConfirm(ctx context.Context, orderIDs []string) (MassConfirmResult, error) {
	if len(orderIDs) == 0 {
		return MassConfirmResult{}, ErrNoOrdersSelected
	}

	res := MassConfirmResult{Confirmed: []string{}, Failed: make(map[string]string)}
	for _, id := range orderIDs {
		if _, err := h.ConfirmOrder(ctx, id); err != nil {
			res.Failed[id] = err.Error()
			continue
		}
		res.Confirmed = append(res.Confirmed, id)
	}
	logger.WithContext(ctx).WithFields(log.Fields{
		"confirmed": len(res.Confirmed),
		"failed":    len(res.Failed),
	}).Info("mass confirmation complete")
	return res, nil
}
