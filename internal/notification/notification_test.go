package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
	"github.com/example/marketplace/internal/readmodel"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func seededReadStore(t *testing.T) *mocks.MockReadStore {
	t.Helper()
	rs := mocks.NewMockReadStore()
	require.NoError(t, rs.Set(readmodel.Users, "cust-1", &readmodel.UserReadModel{ID: "cust-1", Name: "Jane", Email: "jane@example.com"}))
	require.NoError(t, rs.Set(readmodel.Products, "prod-1", &readmodel.ProductReadModel{ID: "prod-1", Name: "Blue Mug"}))
	require.NoError(t, rs.Set(readmodel.Vendors, "ven-1", &readmodel.VendorReadModel{ID: "ven-1", Code: "VEN/00001", Name: "Acme", Email: "acme@example.com"}))
	return rs
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:          "order-1",
		Reference:   "ORD/00001",
		CustomerID:  "cust-1",
		VendorID:    "ven-1",
		Lines:       []order.Line{{ID: "l1", ProductID: "prod-1", Quantity: 2, PriceUnit: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)}},
		AmountTotal: decimal.NewFromInt(200),
	}
}

func event(t *testing.T, eventType string, data any) store.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return store.Event{ID: "evt-1", EventType: eventType, Data: raw, Timestamp: now}
}

// ============================================
// EmailNotifier
// ============================================

func TestEmailNotifier_SendsToCustomer(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailNotifier(sender, seededReadStore(t))

	require.NoError(t, n.Send(context.Background(), order.TemplateConfirmation, sampleOrder()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", sender.sent[0].to)
	assert.Equal(t, "Order ORD/00001 confirmed", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].body, "Blue Mug", "product name falls back to the catalog")
}

func TestEmailNotifier_AllOrderTemplatesRender(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailNotifier(sender, seededReadStore(t))

	for _, key := range []string{order.TemplateConfirmation, order.TemplateProcessing, order.TemplateShipped} {
		require.NoError(t, n.Send(context.Background(), key, sampleOrder()), key)
	}
	assert.Len(t, sender.sent, 3)
}

func TestEmailNotifier_UnknownCustomer(t *testing.T) {
	n := NewEmailNotifier(&fakeSender{}, mocks.NewMockReadStore())

	err := n.Send(context.Background(), order.TemplateConfirmation, sampleOrder())
	assert.ErrorIs(t, err, ErrRecipientNotFound)
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestEmailNotifier_SenderFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	n := NewEmailNotifier(sender, seededReadStore(t))

	err := n.Send(context.Background(), order.TemplateShipped, sampleOrder())
	assert.ErrorContains(t, err, "smtp down")
}

// ============================================
// Handler
// ============================================

func TestHandler_VendorApproved(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, seededReadStore(t))

	err := h.Handle(context.Background(), event(t, seller.EventVendorApproved, seller.VendorStateChanged{
		VendorID: "ven-1", Name: "Acme", Email: "acme@example.com", State: seller.StateApproved, ChangedAt: now,
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "acme@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].subject, "VEN/00001")
}

func TestHandler_PayoutPaid(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, seededReadStore(t))

	raw, err := json.Marshal(event(t, payout.EventPayoutPaid, payout.PayoutPaid{
		PayoutID: "p1", VendorID: "ven-1", Reference: "PAY/00001",
		CommissionIDs: []string{"c1", "c2"}, Amount: decimal.NewFromInt(360), PaidAt: now,
	}))
	require.NoError(t, err)

	require.NoError(t, h.HandleEvent(context.Background(), []byte("p1"), raw))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "acme@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "360.00")
}

func TestHandler_PayoutPaid_UnknownVendorIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, mocks.NewMockReadStore())

	err := h.Handle(context.Background(), event(t, payout.EventPayoutPaid, payout.PayoutPaid{VendorID: "ghost", Reference: "PAY/00009"}))

	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, seededReadStore(t))

	assert.NoError(t, h.Handle(context.Background(), event(t, order.EventOrderConfirmed, order.OrderConfirmed{OrderID: "o1"})))
	assert.Empty(t, sender.sent)
}

func TestHandler_InvalidJSON(t *testing.T) {
	h := NewHandler(&fakeSender{}, mocks.NewMockReadStore())
	assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("{")))
}
