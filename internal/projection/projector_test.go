package projection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/inventory"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/review"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/domain/user"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
	"github.com/example/marketplace/internal/metrics"
	"github.com/example/marketplace/internal/readmodel"
)

var at = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestProjector() (*Projector, *mocks.MockReadStore, *metrics.Workflow) {
	readStore := mocks.NewMockReadStore()
	wf := metrics.NewNopWorkflow()
	return NewProjector(readStore, wf), readStore, wf
}

func makeEvent(aggregateType, eventType string, data any) []byte {
	jsonData, _ := json.Marshal(data)
	event := store.Event{
		ID:            "event-123",
		AggregateID:   "agg-123",
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     at,
	}
	result, _ := json.Marshal(event)
	return result
}

func apply(t *testing.T, p *Projector, aggregateType, eventType string, data any) {
	t.Helper()
	require.NoError(t, p.HandleEvent(context.Background(), nil, makeEvent(aggregateType, eventType, data)))
}

func getModel[T any](t *testing.T, rs *mocks.MockReadStore, collection, id string) *T {
	t.Helper()
	data, ok, err := rs.Get(collection, id)
	require.NoError(t, err)
	require.True(t, ok, "%s/%s not projected", collection, id)
	m, ok := data.(*T)
	require.True(t, ok)
	return m
}

// ============================================
// Product and Inventory Tests
// ============================================

func TestProjector_ProductCreatedAndStock(t *testing.T) {
	p, rs, _ := newTestProjector()

	apply(t, p, product.AggregateType, product.EventProductCreated, product.ProductCreated{
		ProductID: "prod-1",
		Code:      "PRD/00001",
		VendorID:  "ven-1",
		Details: product.Details{
			Name:               "Mug",
			ListPrice:          dec("20"),
			DiscountPercentage: dec("25"),
			LowStockThreshold:  5,
		},
		CreatedAt: at,
	})

	prod := getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1")
	assert.Equal(t, "Mug", prod.Name)
	assert.Equal(t, string(product.StateDraft), prod.State)
	assert.True(t, dec("15").Equal(prod.EffectivePrice))
	assert.Equal(t, readmodel.StockOut, prod.StockStatus)

	apply(t, p, inventory.AggregateType, inventory.EventStockAdded, inventory.StockAdded{ProductID: "prod-1", Quantity: 8, OnHand: 8})
	prod = getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1")
	assert.Equal(t, 8, prod.QtyAvailable)
	assert.Equal(t, readmodel.StockIn, prod.StockStatus)

	apply(t, p, inventory.AggregateType, inventory.EventStockReserved, inventory.StockReserved{ProductID: "prod-1", OrderID: "o1", Quantity: 4, OnHand: 4})
	prod = getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1")
	assert.Equal(t, readmodel.StockLow, prod.StockStatus)

	inv := getModel[readmodel.InventoryReadModel](t, rs, readmodel.Inventory, "prod-1")
	assert.Equal(t, 4, inv.OnHand)
}

func TestProjector_StockBeforeProduct(t *testing.T) {
	p, rs, _ := newTestProjector()

	apply(t, p, inventory.AggregateType, inventory.EventStockAdded, inventory.StockAdded{ProductID: "prod-1", Quantity: 3, OnHand: 3})
	apply(t, p, product.AggregateType, product.EventProductCreated, product.ProductCreated{
		ProductID: "prod-1",
		Details:   product.Details{Name: "Mug", ListPrice: dec("20")},
	})

	prod := getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1")
	assert.Equal(t, 3, prod.QtyAvailable)
	assert.Equal(t, readmodel.StockIn, prod.StockStatus)
}

func TestProjector_ProductStateAndDelete(t *testing.T) {
	p, rs, _ := newTestProjector()
	apply(t, p, product.AggregateType, product.EventProductCreated, product.ProductCreated{ProductID: "prod-1"})

	apply(t, p, product.AggregateType, product.EventProductPublished, product.ProductStateChanged{ProductID: "prod-1", State: product.StatePublished, ChangedAt: at})
	assert.Equal(t, "published", getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1").State)

	apply(t, p, product.AggregateType, product.EventProductCategoryAssigned, product.ProductCategoryAssigned{ProductID: "prod-1", CategoryID: "cat-1"})
	assert.Equal(t, "cat-1", getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1").CategoryID)

	apply(t, p, product.AggregateType, product.EventProductDeleted, product.ProductDeleted{ProductID: "prod-1"})
	assert.Equal(t, 0, rs.Count(readmodel.Products))
}

// ============================================
// Vendor and Category Tests
// ============================================

func TestProjector_VendorLifecycle(t *testing.T) {
	p, rs, _ := newTestProjector()

	apply(t, p, seller.AggregateType, seller.EventVendorRegistered, seller.VendorRegistered{
		VendorID: "ven-1",
		Code:     "VEN/00001",
		UserID:   "user-1",
		Profile:  seller.Profile{Name: "Acme", Email: "acme@example.com"},
		Policy:   commission.DefaultPolicy(),
	})
	apply(t, p, seller.AggregateType, seller.EventVendorApproved, seller.VendorStateChanged{VendorID: "ven-1", State: seller.StateApproved})
	apply(t, p, seller.AggregateType, seller.EventVendorCommissionPolicySet, seller.VendorCommissionPolicySet{
		VendorID: "ven-1",
		Policy:   commission.Policy{Type: commission.TypeFixed, Fixed: dec("5")},
	})

	v := getModel[readmodel.VendorReadModel](t, rs, readmodel.Vendors, "ven-1")
	assert.Equal(t, "Acme", v.Name)
	assert.Equal(t, "approved", v.State)
	assert.Equal(t, "fixed", v.CommissionType)
	assert.True(t, dec("5").Equal(v.FixedCommission))
}

func TestProjector_CategoryCompleteName(t *testing.T) {
	p, rs, _ := newTestProjector()

	apply(t, p, category.AggregateType, category.EventCategoryCreated, category.CategoryCreated{CategoryID: "home", Fields: category.Fields{Name: "Home"}})
	apply(t, p, category.AggregateType, category.EventCategoryCreated, category.CategoryCreated{CategoryID: "kitchen", Fields: category.Fields{Name: "Kitchen", ParentID: "home"}})
	apply(t, p, category.AggregateType, category.EventCategoryCreated, category.CategoryCreated{CategoryID: "mugs", Fields: category.Fields{Name: "Mugs", ParentID: "kitchen"}})

	assert.Equal(t, "Home / Kitchen / Mugs", getModel[readmodel.CategoryReadModel](t, rs, readmodel.Categories, "mugs").CompleteName)

	apply(t, p, category.AggregateType, category.EventCategoryUpdated, category.CategoryUpdated{CategoryID: "home", Fields: category.Fields{Name: "House"}})

	assert.Equal(t, "House / Kitchen", getModel[readmodel.CategoryReadModel](t, rs, readmodel.Categories, "kitchen").CompleteName)
	assert.Equal(t, "House / Kitchen / Mugs", getModel[readmodel.CategoryReadModel](t, rs, readmodel.Categories, "mugs").CompleteName)
}

// ============================================
// Order and Settlement Tests
// ============================================

func TestProjector_OrderLifecycle(t *testing.T) {
	p, rs, _ := newTestProjector()
	line := order.Line{ID: "l1", ProductID: "prod-1", ProductName: "Mug", Quantity: 2, PriceUnit: dec("10"), Subtotal: dec("20")}

	apply(t, p, order.AggregateType, order.EventOrderCreated, order.OrderCreated{
		OrderID:    "o1",
		Reference:  "ORD/00001",
		CustomerID: "cust-1",
		VendorID:   "ven-1",
		Lines:      []order.Line{line},
		Totals:     order.Totals{AmountUntaxed: dec("20"), AmountTotal: dec("20")},
		CreatedAt:  at,
	})
	added := order.Line{ID: "l2", ProductID: "prod-2", Quantity: 1, PriceUnit: dec("5"), Subtotal: dec("5")}
	apply(t, p, order.AggregateType, order.EventOrderLineAdded, order.OrderLineAdded{OrderID: "o1", Line: added, Totals: order.Totals{AmountTotal: dec("25")}})
	apply(t, p, order.AggregateType, order.EventOrderLineRemoved, order.OrderLineRemoved{OrderID: "o1", LineID: "l1", Totals: order.Totals{AmountTotal: dec("5")}})
	apply(t, p, order.AggregateType, order.EventOrderConfirmed, order.OrderConfirmed{OrderID: "o1", CommissionID: "c1", ConfirmedAt: at})
	apply(t, p, order.AggregateType, order.EventOrderShipped, order.OrderShipped{OrderID: "o1", TrackingNumber: "TRK", ShippedAt: at})

	o := getModel[readmodel.OrderReadModel](t, rs, readmodel.Orders, "o1")
	assert.Equal(t, "shipped", o.Status)
	assert.Equal(t, "c1", o.CommissionID)
	assert.Equal(t, "TRK", o.TrackingNumber)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "l2", o.Lines[0].ID)
	assert.True(t, dec("5").Equal(o.AmountTotal))
	assert.NotNil(t, o.ConfirmedAt)

	apply(t, p, order.AggregateType, order.EventOrderCancelled, order.OrderCancelled{OrderID: "o1", Reason: "lost", CancelledAt: at})
	o = getModel[readmodel.OrderReadModel](t, rs, readmodel.Orders, "o1")
	assert.Equal(t, "cancelled", o.Status)
	assert.Equal(t, "lost", o.CancelReason)
}

func TestProjector_CommissionAndPayout(t *testing.T) {
	p, rs, _ := newTestProjector()
	policy := commission.DefaultPolicy()

	apply(t, p, commission.AggregateType, commission.EventCommissionCreated, commission.CommissionCreated{
		CommissionID: "c1",
		Reference:    "COM/00001",
		OrderID:      "o1",
		VendorID:     "ven-1",
		Policy:       policy,
		Split:        commission.Compute(dec("200"), policy),
		CreatedAt:    at,
	})
	apply(t, p, commission.AggregateType, commission.EventCommissionConfirmed, commission.CommissionConfirmed{CommissionID: "c1"})
	apply(t, p, payout.AggregateType, payout.EventPayoutCreated, payout.PayoutCreated{PayoutID: "p1", Reference: "PAY/00001", VendorID: "ven-1", PaymentMethod: payout.PaymentBank})
	apply(t, p, commission.AggregateType, commission.EventCommissionAttached, commission.CommissionAttached{CommissionID: "c1", PayoutID: "p1"})
	apply(t, p, payout.AggregateType, payout.EventCommissionAdded, payout.PayoutCommissionAdded{PayoutID: "p1", CommissionID: "c1", VendorAmount: dec("180"), Amount: dec("180")})

	c := getModel[readmodel.CommissionReadModel](t, rs, readmodel.Commissions, "c1")
	assert.Equal(t, "confirmed", c.State)
	assert.Equal(t, "p1", c.PayoutID)
	assert.True(t, dec("20").Equal(c.CommissionAmount))
	assert.True(t, dec("180").Equal(c.VendorAmount))

	apply(t, p, payout.AggregateType, payout.EventPayoutConfirmed, payout.PayoutConfirmed{PayoutID: "p1"})
	apply(t, p, payout.AggregateType, payout.EventPayoutPaid, payout.PayoutPaid{PayoutID: "p1", Amount: dec("180"), CommissionIDs: []string{"c1"}, PaidAt: at})
	apply(t, p, commission.AggregateType, commission.EventCommissionPaid, commission.CommissionPaid{CommissionID: "c1", PayoutID: "p1", PaymentDate: at})

	po := getModel[readmodel.PayoutReadModel](t, rs, readmodel.Payouts, "p1")
	assert.Equal(t, "paid", po.State)
	assert.Equal(t, []string{"c1"}, po.CommissionIDs)
	require.NotNil(t, po.PaidAt)

	c = getModel[readmodel.CommissionReadModel](t, rs, readmodel.Commissions, "c1")
	assert.Equal(t, "paid", c.State)
	require.NotNil(t, c.PaymentDate)
	assert.Equal(t, at, *c.PaymentDate)
}

func TestProjector_CommissionCancelled(t *testing.T) {
	p, rs, _ := newTestProjector()
	policy := commission.DefaultPolicy()
	apply(t, p, commission.AggregateType, commission.EventCommissionCreated, commission.CommissionCreated{
		CommissionID: "c1",
		OrderID:      "o1",
		VendorID:     "ven-1",
		Policy:       policy,
		Split:        commission.Compute(dec("200"), policy),
		CreatedAt:    at,
	})
	apply(t, p, commission.AggregateType, commission.EventCommissionAttached, commission.CommissionAttached{CommissionID: "c1", PayoutID: "p1"})

	apply(t, p, commission.AggregateType, commission.EventCommissionCancelled, commission.CommissionCancelled{CommissionID: "c1", OrderID: "o1", CancelledAt: at})

	c := getModel[readmodel.CommissionReadModel](t, rs, readmodel.Commissions, "c1")
	assert.Equal(t, "cancelled", c.State)
	assert.Empty(t, c.PayoutID)
	assert.Equal(t, at, c.UpdatedAt)
}

// ============================================
// Review Tests
// ============================================

func TestProjector_ReviewRatings(t *testing.T) {
	p, rs, _ := newTestProjector()
	apply(t, p, product.AggregateType, product.EventProductCreated, product.ProductCreated{ProductID: "prod-1"})
	apply(t, p, seller.AggregateType, seller.EventVendorRegistered, seller.VendorRegistered{VendorID: "ven-1"})

	for i, rating := range []int{5, 2, 4} {
		id := []string{"r1", "r2", "r3"}[i]
		apply(t, p, review.AggregateType, review.EventReviewSubmitted, review.ReviewSubmitted{ReviewID: id, ProductID: "prod-1", VendorID: "ven-1", Rating: rating, Title: "t"})
	}
	apply(t, p, review.AggregateType, review.EventReviewPublished, review.ReviewModerated{ReviewID: "r1", ProductID: "prod-1", VendorID: "ven-1", Rating: 5})
	apply(t, p, review.AggregateType, review.EventReviewRejected, review.ReviewModerated{ReviewID: "r2", ProductID: "prod-1", VendorID: "ven-1", Rating: 2})
	apply(t, p, review.AggregateType, review.EventReviewPublished, review.ReviewModerated{ReviewID: "r3", ProductID: "prod-1", VendorID: "ven-1", Rating: 4})

	prod := getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1")
	assert.Equal(t, 2, prod.ReviewCount)
	assert.InDelta(t, 4.5, prod.RatingAvg, 0.0001)

	v := getModel[readmodel.VendorReadModel](t, rs, readmodel.Vendors, "ven-1")
	assert.Equal(t, 2, v.ReviewCount)
	assert.Equal(t, "rejected", getModel[readmodel.ReviewReadModel](t, rs, readmodel.Reviews, "r2").State)

	// Replaying a moderation event does not double count.
	apply(t, p, review.AggregateType, review.EventReviewPublished, review.ReviewModerated{ReviewID: "r3", ProductID: "prod-1", VendorID: "ven-1", Rating: 4})
	assert.Equal(t, 2, getModel[readmodel.ProductReadModel](t, rs, readmodel.Products, "prod-1").ReviewCount)
}

// ============================================
// User Tests
// ============================================

func TestProjector_UserEvents(t *testing.T) {
	p, rs, _ := newTestProjector()

	apply(t, p, user.AggregateType, user.EventUserRegistered, user.UserRegistered{UserID: "u1", Email: "jane@example.com", Name: "Jane", Role: "customer", RegisteredAt: at})
	apply(t, p, user.AggregateType, user.EventUserLoggedIn, user.UserLoggedIn{UserID: "u1", SessionID: "s1", LoggedAt: at})
	apply(t, p, user.AggregateType, user.EventUserRoleChanged, user.UserRoleChanged{UserID: "u1", OldRole: "customer", NewRole: "vendor", ChangedAt: at})
	apply(t, p, user.AggregateType, user.EventUserStatusChanged, user.UserStatusChanged{UserID: "u1", Active: false, Reason: "fraud", ChangedAt: at})

	u := getModel[readmodel.UserReadModel](t, rs, readmodel.Users, "u1")
	assert.Equal(t, "Jane", u.Name)
	assert.Equal(t, "vendor", u.Role)
	assert.False(t, u.IsActive)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, at, *u.LastLoginAt)
}

// ============================================
// Dispatch Tests
// ============================================

func TestProjector_UnknownEventsAreIgnored(t *testing.T) {
	p, rs, wf := newTestProjector()

	apply(t, p, "Cart", "ItemAddedToCart", map[string]string{"cart_id": "c1"})
	apply(t, p, order.AggregateType, "OrderArchived", map[string]string{"order_id": "o1"})

	assert.Empty(t, rs.SetCalls)
	assert.Equal(t, 1.0, testutil.ToFloat64(wf.ProjectedEvents.WithLabelValues("OrderArchived", outcomeIgnored)))
}

func TestProjector_InvalidPayload(t *testing.T) {
	p, _, wf := newTestProjector()

	err := p.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)

	event := store.Event{AggregateType: order.AggregateType, EventType: order.EventOrderCreated, Data: json.RawMessage(`{"lines": "oops"}`)}
	err = p.Apply(context.Background(), event)
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(wf.ProjectedEvents.WithLabelValues(order.EventOrderCreated, outcomeFailed)))
}

func TestProjector_ReadStoreErrorPropagates(t *testing.T) {
	p, rs, _ := newTestProjector()
	rs.Err = assert.AnError

	err := p.HandleEvent(context.Background(), nil, makeEvent(user.AggregateType, user.EventUserRegistered, user.UserRegistered{UserID: "u1"}))

	assert.ErrorIs(t, err, assert.AnError)
}

func TestProjector_InlinePublisher(t *testing.T) {
	p, rs, _ := newTestProjector()
	es := store.NewEventStore(p)

	b := store.NewBatch()
	_, err := b.Record("cat-1", category.AggregateType, 0, category.EventCategoryCreated, category.CategoryCreated{
		CategoryID: "cat-1",
		Fields:     category.Fields{Name: "Garden"},
	})
	require.NoError(t, err)
	require.NoError(t, es.Commit(context.Background(), b))

	assert.Equal(t, "Garden", getModel[readmodel.CategoryReadModel](t, rs, readmodel.Categories, "cat-1").CompleteName)
	assert.Error(t, p.Publish(context.Background(), "k", "not an event"))
}
