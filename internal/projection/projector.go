// Package projection keeps the read models in step with committed events.
package projection

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/inventory"
	"github.com/example/marketplace/internal/domain/invoice"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/review"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/domain/user"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/metrics"
	"github.com/example/marketplace/internal/readmodel"
)

var logger = log.WithField("component", "projector")

// Outcomes recorded on the projected events counter.
const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
	outcomeFailed  = "failed"
)

// errIgnored marks events the projector has no read model for.
var errIgnored = errors.New("event ignored")

type Projector struct {
	readStore store.ReadStoreInterface
	metrics   *metrics.Workflow
}

func NewProjector(readStore store.ReadStoreInterface, workflowMetrics *metrics.Workflow) *Projector {
	if workflowMetrics == nil {
		workflowMetrics = metrics.NewNopWorkflow()
	}
	return &Projector{readStore: readStore, metrics: workflowMetrics}
}

// HandleEvent decodes a message produced by the event publisher and applies it.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return errors.Wrap(err, "decode event")
	}
	return p.Apply(ctx, event)
}

// Publish lets the projector stand in for Kafka when projecting inline.
func (p *Projector) Publish(ctx context.Context, _ string, event any) error {
	e, ok := event.(store.Event)
	if !ok {
		return errors.Errorf("projector cannot publish %T", event)
	}
	return p.Apply(ctx, e)
}

// Apply updates the read models affected by one event.
func (p *Projector) Apply(ctx context.Context, event store.Event) error {
	var err error
	switch event.AggregateType {
	case product.AggregateType:
		err = p.handleProductEvent(event)
	case inventory.AggregateType:
		err = p.handleInventoryEvent(event)
	case seller.AggregateType:
		err = p.handleVendorEvent(event)
	case category.AggregateType:
		err = p.handleCategoryEvent(event)
	case order.AggregateType:
		err = p.handleOrderEvent(event)
	case commission.AggregateType:
		err = p.handleCommissionEvent(event)
	case payout.AggregateType:
		err = p.handlePayoutEvent(event)
	case review.AggregateType:
		err = p.handleReviewEvent(event)
	case invoice.AggregateType:
		err = p.handleInvoiceEvent(event)
	case user.AggregateType:
		err = p.handleUserEvent(event)
	default:
		err = errIgnored
	}

	entry := logger.WithContext(ctx).WithFields(log.Fields{
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})
	switch {
	case errors.Is(err, errIgnored):
		p.metrics.ProjectedEvents.WithLabelValues(event.EventType, outcomeIgnored).Inc()
		entry.Debug("event ignored")
		return nil
	case err != nil:
		p.metrics.ProjectedEvents.WithLabelValues(event.EventType, outcomeFailed).Inc()
		entry.WithError(err).Error("projection failed")
		return errors.Wrapf(err, "project %s", event.EventType)
	}
	p.metrics.ProjectedEvents.WithLabelValues(event.EventType, outcomeApplied).Inc()
	entry.Debug("event projected")
	return nil
}

func decode[T any](event store.Event) (T, error) {
	var data T
	err := json.Unmarshal(event.Data, &data)
	return data, errors.Wrapf(err, "decode %s", event.EventType)
}

// update applies fn to the stored model of type *T. Missing models are left
// alone: an update can only arrive after the create that precedes it.
func update[T any](rs store.ReadStoreInterface, collection, id string, fn func(m *T)) error {
	_, err := rs.Update(collection, id, func(current any) any {
		if m, ok := current.(*T); ok {
			fn(m)
		}
		return current
	})
	return err
}

func get[T any](rs store.ReadStoreInterface, collection, id string) (*T, bool, error) {
	data, ok, err := rs.Get(collection, id)
	if err != nil || !ok {
		return nil, false, err
	}
	m, ok := data.(*T)
	return m, ok, nil
}

// Products

func (p *Projector) handleProductEvent(event store.Event) error {
	switch event.EventType {
	case product.EventProductCreated:
		e, err := decode[product.ProductCreated](event)
		if err != nil {
			return err
		}
		rm := &readmodel.ProductReadModel{
			ID:         e.ProductID,
			Code:       e.Code,
			VendorID:   e.VendorID,
			CategoryID: e.CategoryID,
			State:      string(product.StateDraft),
			CreatedAt:  e.CreatedAt,
		}
		setDetails(rm, e.Details)
		rm.UpdatedAt = e.CreatedAt
		if inv, ok, err := get[readmodel.InventoryReadModel](p.readStore, readmodel.Inventory, e.ProductID); err == nil && ok {
			rm.QtyAvailable = inv.OnHand
		}
		rm.StockStatus = readmodel.StockStatusFor(rm.QtyAvailable, rm.LowStockThreshold)
		return p.readStore.Set(readmodel.Products, e.ProductID, rm)

	case product.EventProductUpdated:
		e, err := decode[product.ProductUpdated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Products, e.ProductID, func(rm *readmodel.ProductReadModel) {
			setDetails(rm, e.Details)
			rm.StockStatus = readmodel.StockStatusFor(rm.QtyAvailable, rm.LowStockThreshold)
			rm.UpdatedAt = e.UpdatedAt
		})

	case product.EventProductCategoryAssigned:
		e, err := decode[product.ProductCategoryAssigned](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Products, e.ProductID, func(rm *readmodel.ProductReadModel) {
			rm.CategoryID = e.CategoryID
			rm.UpdatedAt = e.AssignedAt
		})

	case product.EventProductCategoryRemoved:
		e, err := decode[product.ProductCategoryRemoved](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Products, e.ProductID, func(rm *readmodel.ProductReadModel) {
			rm.CategoryID = ""
			rm.UpdatedAt = e.RemovedAt
		})

	case product.EventProductSubmitted, product.EventProductPublished,
		product.EventProductRejected, product.EventProductUnpublished:
		e, err := decode[product.ProductStateChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Products, e.ProductID, func(rm *readmodel.ProductReadModel) {
			rm.State = string(e.State)
			rm.UpdatedAt = e.ChangedAt
		})

	case product.EventProductDeleted:
		e, err := decode[product.ProductDeleted](event)
		if err != nil {
			return err
		}
		return p.readStore.Delete(readmodel.Products, e.ProductID)
	}
	return errIgnored
}

func setDetails(rm *readmodel.ProductReadModel, d product.Details) {
	rm.Name = d.Name
	rm.Description = d.Description
	rm.ListPrice = d.ListPrice
	rm.DiscountPercentage = d.DiscountPercentage
	rm.LowStockThreshold = d.LowStockThreshold
	rm.EffectivePrice = product.EffectivePrice(d.ListPrice, d.DiscountPercentage)
}

// Inventory

func (p *Projector) handleInventoryEvent(event store.Event) error {
	// Every stock event carries product_id and the resulting on_hand.
	switch event.EventType {
	case inventory.EventStockAdded, inventory.EventStockRemoved,
		inventory.EventStockReserved, inventory.EventStockReleased:
	default:
		return errIgnored
	}
	e, err := decode[inventory.StockAdded](event)
	if err != nil {
		return err
	}
	productID, onHand := e.ProductID, e.OnHand

	// Events carry the resulting on-hand quantity, so replays converge.
	err = p.readStore.Set(readmodel.Inventory, productID, &readmodel.InventoryReadModel{
		ProductID: productID,
		OnHand:    onHand,
		UpdatedAt: event.Timestamp,
	})
	if err != nil {
		return err
	}
	return update(p.readStore, readmodel.Products, productID, func(rm *readmodel.ProductReadModel) {
		rm.QtyAvailable = onHand
		rm.StockStatus = readmodel.StockStatusFor(onHand, rm.LowStockThreshold)
	})
}

// Vendors

func (p *Projector) handleVendorEvent(event store.Event) error {
	switch event.EventType {
	case seller.EventVendorRegistered:
		e, err := decode[seller.VendorRegistered](event)
		if err != nil {
			return err
		}
		rm := &readmodel.VendorReadModel{
			ID:        e.VendorID,
			Code:      e.Code,
			UserID:    e.UserID,
			State:     string(seller.StateDraft),
			CreatedAt: e.RegisteredAt,
			UpdatedAt: e.RegisteredAt,
		}
		setProfile(rm, e.Profile)
		setPolicy(rm, e.Policy)
		return p.readStore.Set(readmodel.Vendors, e.VendorID, rm)

	case seller.EventVendorProfileUpdated:
		e, err := decode[seller.VendorProfileUpdated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Vendors, e.VendorID, func(rm *readmodel.VendorReadModel) {
			setProfile(rm, e.Profile)
			rm.UpdatedAt = e.UpdatedAt
		})

	case seller.EventVendorSubmitted, seller.EventVendorApproved, seller.EventVendorRejected,
		seller.EventVendorSuspended, seller.EventVendorReactivated:
		e, err := decode[seller.VendorStateChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Vendors, e.VendorID, func(rm *readmodel.VendorReadModel) {
			rm.State = string(e.State)
			rm.UpdatedAt = e.ChangedAt
		})

	case seller.EventVendorCommissionPolicySet:
		e, err := decode[seller.VendorCommissionPolicySet](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Vendors, e.VendorID, func(rm *readmodel.VendorReadModel) {
			setPolicy(rm, e.Policy)
			rm.UpdatedAt = e.SetAt
		})

	case seller.EventVendorDeleted:
		e, err := decode[seller.VendorDeleted](event)
		if err != nil {
			return err
		}
		return p.readStore.Delete(readmodel.Vendors, e.VendorID)
	}
	return errIgnored
}

func setProfile(rm *readmodel.VendorReadModel, pr seller.Profile) {
	rm.Name = pr.Name
	rm.Email = pr.Email
	rm.Phone = pr.Phone
	rm.Description = pr.Description
}

func setPolicy(rm *readmodel.VendorReadModel, pol commission.Policy) {
	rm.CommissionType = string(pol.Type)
	rm.CommissionRate = pol.Rate
	rm.FixedCommission = pol.Fixed
}

// Categories

func (p *Projector) handleCategoryEvent(event store.Event) error {
	switch event.EventType {
	case category.EventCategoryCreated:
		e, err := decode[category.CategoryCreated](event)
		if err != nil {
			return err
		}
		rm := &readmodel.CategoryReadModel{ID: e.CategoryID, CreatedAt: e.CreatedAt}
		setFields(rm, e.Fields)
		rm.UpdatedAt = e.CreatedAt
		rm.CompleteName = p.completeName(rm)
		return p.readStore.Set(readmodel.Categories, e.CategoryID, rm)

	case category.EventCategoryUpdated:
		e, err := decode[category.CategoryUpdated](event)
		if err != nil {
			return err
		}
		rm, ok, err := get[readmodel.CategoryReadModel](p.readStore, readmodel.Categories, e.CategoryID)
		if err != nil || !ok {
			return err
		}
		updated := *rm
		setFields(&updated, e.Fields)
		updated.UpdatedAt = e.UpdatedAt
		updated.CompleteName = p.completeName(&updated)
		if err := p.readStore.Set(readmodel.Categories, e.CategoryID, &updated); err != nil {
			return err
		}
		return p.renameChildren(e.CategoryID, make(map[string]bool))

	case category.EventCategoryDeleted:
		e, err := decode[category.CategoryDeleted](event)
		if err != nil {
			return err
		}
		return p.readStore.Delete(readmodel.Categories, e.CategoryID)
	}
	return errIgnored
}

func setFields(rm *readmodel.CategoryReadModel, f category.Fields) {
	rm.Name = f.Name
	rm.Slug = f.Slug
	rm.Description = f.Description
	rm.ParentID = f.ParentID
	rm.Sequence = f.Sequence
	rm.Active = f.Active
}

// completeName joins the names from the root down, e.g. "Home / Kitchen".
func (p *Projector) completeName(rm *readmodel.CategoryReadModel) string {
	names := []string{rm.Name}
	seen := map[string]bool{rm.ID: true}
	for parentID := rm.ParentID; parentID != "" && !seen[parentID]; {
		seen[parentID] = true
		parent, ok, err := get[readmodel.CategoryReadModel](p.readStore, readmodel.Categories, parentID)
		if err != nil || !ok {
			break
		}
		names = append(names, parent.Name)
		parentID = parent.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / ")
}

func (p *Projector) renameChildren(parentID string, seen map[string]bool) error {
	if seen[parentID] {
		return nil
	}
	seen[parentID] = true
	items, err := p.readStore.GetAll(readmodel.Categories)
	if err != nil {
		return err
	}
	for _, item := range items {
		child, ok := item.(*readmodel.CategoryReadModel)
		if !ok || child.ParentID != parentID {
			continue
		}
		name := p.completeName(child)
		err := update(p.readStore, readmodel.Categories, child.ID, func(rm *readmodel.CategoryReadModel) {
			rm.CompleteName = name
		})
		if err != nil {
			return err
		}
		if err := p.renameChildren(child.ID, seen); err != nil {
			return err
		}
	}
	return nil
}

// Orders

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderCreated:
		e, err := decode[order.OrderCreated](event)
		if err != nil {
			return err
		}
		rm := &readmodel.OrderReadModel{
			ID:           e.OrderID,
			Reference:    e.Reference,
			CustomerID:   e.CustomerID,
			VendorID:     e.VendorID,
			Lines:        orderLines(e.Lines),
			Status:       string(order.StatusDraft),
			CustomerNote: e.CustomerNote,
			CreatedAt:    e.CreatedAt,
			UpdatedAt:    e.CreatedAt,
		}
		setTotals(rm, e.Totals)
		return p.readStore.Set(readmodel.Orders, e.OrderID, rm)

	case order.EventOrderLineAdded:
		e, err := decode[order.OrderLineAdded](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Orders, e.OrderID, func(rm *readmodel.OrderReadModel) {
			rm.Lines = append(rm.Lines, orderLine(e.Line))
			setTotals(rm, e.Totals)
			rm.UpdatedAt = e.At
		})

	case order.EventOrderLineUpdated:
		e, err := decode[order.OrderLineUpdated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Orders, e.OrderID, func(rm *readmodel.OrderReadModel) {
			for i := range rm.Lines {
				if rm.Lines[i].ID == e.Line.ID {
					rm.Lines[i] = orderLine(e.Line)
				}
			}
			setTotals(rm, e.Totals)
			rm.UpdatedAt = e.At
		})

	case order.EventOrderLineRemoved:
		e, err := decode[order.OrderLineRemoved](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Orders, e.OrderID, func(rm *readmodel.OrderReadModel) {
			lines := rm.Lines[:0]
			for _, l := range rm.Lines {
				if l.ID != e.LineID {
					lines = append(lines, l)
				}
			}
			rm.Lines = lines
			setTotals(rm, e.Totals)
			rm.UpdatedAt = e.At
		})

	case order.EventOrderShippingSet:
		e, err := decode[order.OrderShippingSet](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Orders, e.OrderID, func(rm *readmodel.OrderReadModel) {
			setTotals(rm, e.Totals)
			rm.UpdatedAt = e.At
		})

	case order.EventOrderConfirmed:
		e, err := decode[order.OrderConfirmed](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusConfirmed, func(rm *readmodel.OrderReadModel) {
			rm.CommissionID = e.CommissionID
			rm.ConfirmedAt = &e.ConfirmedAt
			rm.UpdatedAt = e.ConfirmedAt
		})

	case order.EventOrderProcessing:
		e, err := decode[order.OrderProcessing](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusProcessing, func(rm *readmodel.OrderReadModel) {
			rm.ProcessingAt = &e.ProcessingAt
			rm.UpdatedAt = e.ProcessingAt
		})

	case order.EventOrderShipped:
		e, err := decode[order.OrderShipped](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusShipped, func(rm *readmodel.OrderReadModel) {
			rm.TrackingNumber = e.TrackingNumber
			rm.ShippedAt = &e.ShippedAt
			rm.UpdatedAt = e.ShippedAt
		})

	case order.EventOrderDelivered:
		e, err := decode[order.OrderDelivered](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusDelivered, func(rm *readmodel.OrderReadModel) {
			rm.DeliveredAt = &e.DeliveredAt
			rm.UpdatedAt = e.DeliveredAt
		})

	case order.EventOrderCompleted:
		e, err := decode[order.OrderCompleted](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusDone, func(rm *readmodel.OrderReadModel) {
			rm.InvoiceID = e.InvoiceID
			rm.DoneAt = &e.DoneAt
			rm.UpdatedAt = e.DoneAt
		})

	case order.EventOrderCancelled:
		e, err := decode[order.OrderCancelled](event)
		if err != nil {
			return err
		}
		return p.orderStatus(e.OrderID, order.StatusCancelled, func(rm *readmodel.OrderReadModel) {
			rm.CancelReason = e.Reason
			rm.CancelledAt = &e.CancelledAt
			rm.UpdatedAt = e.CancelledAt
		})
	}
	return errIgnored
}

func (p *Projector) orderStatus(orderID string, status order.Status, fn func(rm *readmodel.OrderReadModel)) error {
	return update(p.readStore, readmodel.Orders, orderID, func(rm *readmodel.OrderReadModel) {
		rm.Status = string(status)
		fn(rm)
	})
}

func setTotals(rm *readmodel.OrderReadModel, t order.Totals) {
	rm.AmountUntaxed = t.AmountUntaxed
	rm.AmountTax = t.AmountTax
	rm.ShippingCost = t.ShippingCost
	rm.AmountTotal = t.AmountTotal
}

func orderLine(l order.Line) readmodel.OrderLineReadModel {
	return readmodel.OrderLineReadModel{
		ID:          l.ID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		PriceUnit:   l.PriceUnit,
		Discount:    l.Discount,
		TaxRate:     l.TaxRate,
		Subtotal:    l.Subtotal,
		TaxAmount:   l.TaxAmount,
	}
}

func orderLines(lines []order.Line) []readmodel.OrderLineReadModel {
	out := make([]readmodel.OrderLineReadModel, len(lines))
	for i, l := range lines {
		out[i] = orderLine(l)
	}
	return out
}

// Commissions

func (p *Projector) handleCommissionEvent(event store.Event) error {
	switch event.EventType {
	case commission.EventCommissionCreated:
		e, err := decode[commission.CommissionCreated](event)
		if err != nil {
			return err
		}
		rm := &readmodel.CommissionReadModel{
			ID:             e.CommissionID,
			Reference:      e.Reference,
			OrderID:        e.OrderID,
			OrderReference: e.OrderReference,
			VendorID:       e.VendorID,
			State:          string(commission.StateDraft),
			CreatedAt:      e.CreatedAt,
			UpdatedAt:      e.CreatedAt,
		}
		setSplit(rm, e.Policy, e.Split)
		return p.readStore.Set(readmodel.Commissions, e.CommissionID, rm)

	case commission.EventCommissionRecomputed:
		e, err := decode[commission.CommissionRecomputed](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			setSplit(rm, e.Policy, e.Split)
			rm.UpdatedAt = e.RecomputedAt
		})

	case commission.EventCommissionConfirmed:
		e, err := decode[commission.CommissionConfirmed](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			rm.State = string(commission.StateConfirmed)
			rm.UpdatedAt = e.ConfirmedAt
		})

	case commission.EventCommissionAttached:
		e, err := decode[commission.CommissionAttached](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			rm.PayoutID = e.PayoutID
			rm.UpdatedAt = e.AttachedAt
		})

	case commission.EventCommissionDetached:
		e, err := decode[commission.CommissionDetached](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			rm.PayoutID = ""
			rm.UpdatedAt = e.DetachedAt
		})

	case commission.EventCommissionPaid:
		e, err := decode[commission.CommissionPaid](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			rm.State = string(commission.StatePaid)
			rm.PayoutID = e.PayoutID
			rm.PaymentDate = &e.PaymentDate
			rm.UpdatedAt = e.PaymentDate
		})

	case commission.EventCommissionCancelled:
		e, err := decode[commission.CommissionCancelled](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Commissions, e.CommissionID, func(rm *readmodel.CommissionReadModel) {
			rm.State = string(commission.StateCancelled)
			rm.PayoutID = ""
			rm.UpdatedAt = e.CancelledAt
		})
	}
	return errIgnored
}

func setSplit(rm *readmodel.CommissionReadModel, pol commission.Policy, s commission.Split) {
	rm.CommissionType = string(pol.Type)
	rm.CommissionRate = pol.Rate
	rm.FixedCommission = pol.Fixed
	rm.OrderAmount = s.OrderAmount
	rm.CommissionAmount = s.Commission
	rm.VendorAmount = s.VendorAmount
}

// Payouts

func (p *Projector) handlePayoutEvent(event store.Event) error {
	switch event.EventType {
	case payout.EventPayoutCreated:
		e, err := decode[payout.PayoutCreated](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Payouts, e.PayoutID, &readmodel.PayoutReadModel{
			ID:            e.PayoutID,
			Reference:     e.Reference,
			VendorID:      e.VendorID,
			CommissionIDs: []string{},
			PaymentMethod: string(e.PaymentMethod),
			PayoutDate:    e.PayoutDate,
			Notes:         e.Notes,
			State:         string(payout.StateDraft),
			CreatedAt:     e.CreatedAt,
			UpdatedAt:     e.CreatedAt,
		})

	case payout.EventCommissionAdded:
		e, err := decode[payout.PayoutCommissionAdded](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Payouts, e.PayoutID, func(rm *readmodel.PayoutReadModel) {
			rm.CommissionIDs = append(rm.CommissionIDs, e.CommissionID)
			sort.Strings(rm.CommissionIDs)
			rm.Amount = e.Amount
			rm.UpdatedAt = e.AddedAt
		})

	case payout.EventCommissionRemoved:
		e, err := decode[payout.PayoutCommissionRemoved](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Payouts, e.PayoutID, func(rm *readmodel.PayoutReadModel) {
			ids := rm.CommissionIDs[:0]
			for _, id := range rm.CommissionIDs {
				if id != e.CommissionID {
					ids = append(ids, id)
				}
			}
			rm.CommissionIDs = ids
			rm.Amount = e.Amount
			rm.UpdatedAt = e.RemovedAt
		})

	case payout.EventMemberAmountChanged:
		e, err := decode[payout.PayoutMemberAmountChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Payouts, e.PayoutID, func(rm *readmodel.PayoutReadModel) {
			rm.Amount = e.Amount
			rm.UpdatedAt = e.ChangedAt
		})

	case payout.EventPayoutConfirmed:
		e, err := decode[payout.PayoutConfirmed](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Payouts, e.PayoutID, func(rm *readmodel.PayoutReadModel) {
			rm.State = string(payout.StateConfirmed)
			rm.UpdatedAt = e.ConfirmedAt
		})

	case payout.EventPayoutPaid:
		e, err := decode[payout.PayoutPaid](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Payouts, e.PayoutID, func(rm *readmodel.PayoutReadModel) {
			rm.State = string(payout.StatePaid)
			rm.Amount = e.Amount
			rm.PaidAt = &e.PaidAt
			rm.UpdatedAt = e.PaidAt
		})
	}
	return errIgnored
}

// Reviews

func (p *Projector) handleReviewEvent(event store.Event) error {
	switch event.EventType {
	case review.EventReviewSubmitted:
		e, err := decode[review.ReviewSubmitted](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Reviews, e.ReviewID, &readmodel.ReviewReadModel{
			ID:               e.ReviewID,
			ProductID:        e.ProductID,
			VendorID:         e.VendorID,
			CustomerID:       e.CustomerID,
			OrderID:          e.OrderID,
			Rating:           e.Rating,
			Title:            e.Title,
			Comment:          e.Comment,
			VerifiedPurchase: e.VerifiedPurchase,
			State:            string(review.StateDraft),
			CreatedAt:        e.SubmittedAt,
			UpdatedAt:        e.SubmittedAt,
		})

	case review.EventReviewPublished, review.EventReviewRejected:
		e, err := decode[review.ReviewModerated](event)
		if err != nil {
			return err
		}
		state := review.StatePublished
		if event.EventType == review.EventReviewRejected {
			state = review.StateRejected
		}
		err = update(p.readStore, readmodel.Reviews, e.ReviewID, func(rm *readmodel.ReviewReadModel) {
			rm.State = string(state)
			rm.UpdatedAt = e.ModeratedAt
		})
		if err != nil {
			return err
		}
		return p.refreshRatings(e.ProductID, e.VendorID)
	}
	return errIgnored
}

// refreshRatings recomputes the rating averages from all published reviews so
// that replaying moderation events is idempotent.
func (p *Projector) refreshRatings(productID, vendorID string) error {
	items, err := p.readStore.GetAll(readmodel.Reviews)
	if err != nil {
		return err
	}
	var productSum, productN, vendorSum, vendorN int
	for _, item := range items {
		r, ok := item.(*readmodel.ReviewReadModel)
		if !ok || r.State != string(review.StatePublished) {
			continue
		}
		if productID != "" && r.ProductID == productID {
			productSum += r.Rating
			productN++
		}
		if vendorID != "" && r.VendorID == vendorID {
			vendorSum += r.Rating
			vendorN++
		}
	}
	if productID != "" {
		err := update(p.readStore, readmodel.Products, productID, func(rm *readmodel.ProductReadModel) {
			rm.RatingAvg, rm.ReviewCount = average(productSum, productN), productN
		})
		if err != nil {
			return err
		}
	}
	if vendorID != "" {
		return update(p.readStore, readmodel.Vendors, vendorID, func(rm *readmodel.VendorReadModel) {
			rm.RatingAvg, rm.ReviewCount = average(vendorSum, vendorN), vendorN
		})
	}
	return nil
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// Invoices

func (p *Projector) handleInvoiceEvent(event store.Event) error {
	if event.EventType != invoice.EventInvoiceCreated {
		return errIgnored
	}
	e, err := decode[invoice.InvoiceCreated](event)
	if err != nil {
		return err
	}
	return p.readStore.Set(readmodel.Invoices, e.InvoiceID, &readmodel.InvoiceReadModel{
		ID:            e.InvoiceID,
		Reference:     e.Reference,
		OrderID:       e.OrderID,
		CustomerID:    e.CustomerID,
		VendorID:      e.VendorID,
		AmountUntaxed: e.Totals.AmountUntaxed,
		AmountTax:     e.Totals.AmountTax,
		ShippingCost:  e.Totals.ShippingCost,
		AmountTotal:   e.Totals.AmountTotal,
		CreatedAt:     e.CreatedAt,
	})
}

// Users

func (p *Projector) handleUserEvent(event store.Event) error {
	switch event.EventType {
	case user.EventUserRegistered:
		e, err := decode[user.UserRegistered](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Users, e.UserID, &readmodel.UserReadModel{
			ID:           e.UserID,
			Email:        e.Email,
			PasswordHash: e.PasswordHash,
			Name:         e.Name,
			Role:         e.Role,
			IsActive:     true,
			CreatedAt:    e.RegisteredAt,
			UpdatedAt:    e.RegisteredAt,
		})

	case user.EventUserProfileUpdated:
		e, err := decode[user.UserProfileUpdated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Users, e.UserID, func(u *readmodel.UserReadModel) {
			u.Name = e.Name
			u.UpdatedAt = e.UpdatedAt
		})

	case user.EventUserPasswordChanged:
		e, err := decode[user.UserPasswordChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Users, e.UserID, func(u *readmodel.UserReadModel) {
			u.PasswordHash = e.PasswordHash
			u.UpdatedAt = e.ChangedAt
		})

	case user.EventUserRoleChanged:
		e, err := decode[user.UserRoleChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Users, e.UserID, func(u *readmodel.UserReadModel) {
			u.Role = e.NewRole
			u.UpdatedAt = e.ChangedAt
		})

	case user.EventUserStatusChanged:
		e, err := decode[user.UserStatusChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Users, e.UserID, func(u *readmodel.UserReadModel) {
			u.IsActive = e.Active
			u.UpdatedAt = e.ChangedAt
		})

	case user.EventUserLoggedIn:
		e, err := decode[user.UserLoggedIn](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Users, e.UserID, func(u *readmodel.UserReadModel) {
			u.LastLoginAt = &e.LoggedAt
		})
	}
	return errIgnored
}
