package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
)

func TestCreate_FreezesOrderTotals(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b := store.NewBatch()
	o, err := order.Create(b, order.CreateParams{
		Reference:    "ORD/00001",
		CustomerID:   "cust-1",
		VendorID:     "vendor-1",
		Lines:        []order.Line{{ProductID: "prod-1", Quantity: 2, PriceUnit: decimal.NewFromInt(50)}},
		ShippingCost: decimal.NewFromInt(5),
	}, at)
	require.NoError(t, err)

	inv, err := Create(b, "INV/00001", o, at)
	require.NoError(t, err)
	require.NoError(t, eventStore.Commit(ctx, b))

	loaded, err := NewService(eventStore).Load(ctx, inv.ID)

	require.NoError(t, err)
	assert.Equal(t, "INV/00001", loaded.Reference)
	assert.Equal(t, o.ID, loaded.OrderID)
	assert.Equal(t, "ORD/00001", loaded.OrderReference)
	assert.True(t, decimal.NewFromInt(105).Equal(loaded.Totals.AmountTotal))
	require.Len(t, loaded.Lines, 1)
	assert.Equal(t, "prod-1", loaded.Lines[0].ProductID)

	_, err = NewService(eventStore).Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}
