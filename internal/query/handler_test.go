package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
	"github.com/example/marketplace/internal/readmodel"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestQueryHandler() (*Handler, *mocks.MockReadStore) {
	readStore := mocks.NewMockReadStore()
	handler := NewHandler(readStore)
	return handler, readStore
}

func seed(t *testing.T, rs *mocks.MockReadStore, collection, id string, data any) {
	t.Helper()
	require.NoError(t, rs.Set(collection, id, data))
}

// ============================================
// Product Query Tests
// ============================================

func TestHandler_GetProduct_Found(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Products, "prod-123", &ProductReadModel{ID: "prod-123", Name: "Test Product", StockStatus: readmodel.StockLow})

	product, err := handler.GetProduct("prod-123")

	require.NoError(t, err)
	assert.Equal(t, "Test Product", product.Name)
	assert.Equal(t, readmodel.StockLow, product.StockStatus)
}

func TestHandler_GetProduct_NotFound(t *testing.T) {
	handler, _ := newTestQueryHandler()

	product, err := handler.GetProduct("non-existent")

	assert.ErrorIs(t, err, domainerr.ErrNotFound)
	assert.Nil(t, product)
}

func TestHandler_ListProducts_Filters(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Products, "p1", &ProductReadModel{ID: "p1", Code: "PRD/00002", VendorID: "v1", CategoryID: "c1", State: "published"})
	seed(t, readStore, readmodel.Products, "p2", &ProductReadModel{ID: "p2", Code: "PRD/00001", VendorID: "v1", State: "draft"})
	seed(t, readStore, readmodel.Products, "p3", &ProductReadModel{ID: "p3", Code: "PRD/00003", VendorID: "v2", CategoryID: "c1", State: "published"})

	all, err := handler.ListProducts(ProductFilter{VendorID: "v1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p2", all[0].ID, "ordered by code")

	published, err := handler.ListPublishedProducts("c1")
	require.NoError(t, err)
	assert.Len(t, published, 2)
}

func TestHandler_ListProducts_StoreError(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	readStore.Err = assert.AnError

	_, err := handler.ListProducts(ProductFilter{})

	assert.ErrorIs(t, err, assert.AnError)
}

// ============================================
// Catalog Query Tests
// ============================================

func TestHandler_ListCategories_Ordering(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Categories, "c1", &CategoryReadModel{ID: "c1", CompleteName: "Home / Kitchen", Sequence: 10, Active: true})
	seed(t, readStore, readmodel.Categories, "c2", &CategoryReadModel{ID: "c2", CompleteName: "Home", Sequence: 10, Active: true})
	seed(t, readStore, readmodel.Categories, "c3", &CategoryReadModel{ID: "c3", CompleteName: "Archive", Sequence: 1})

	categories, err := handler.ListCategories(true)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "c2", categories[0].ID)

	categories, err = handler.ListCategories(false)
	require.NoError(t, err)
	assert.Equal(t, "c3", categories[0].ID)
}

func TestHandler_GetVendorByUser(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Vendors, "v1", &VendorReadModel{ID: "v1", UserID: "u1"})

	v, err := handler.GetVendorByUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)

	_, err = handler.GetVendorByUser("u2")
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_ListOrders_NewestFirst(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, readStore, readmodel.Orders, "o1", &OrderReadModel{ID: "o1", CustomerID: "cust-1", CreatedAt: base})
	seed(t, readStore, readmodel.Orders, "o2", &OrderReadModel{ID: "o2", CustomerID: "cust-1", CreatedAt: base.Add(time.Hour)})
	seed(t, readStore, readmodel.Orders, "o3", &OrderReadModel{ID: "o3", CustomerID: "cust-2", CreatedAt: base})

	orders, err := handler.ListOrders(OrderFilter{CustomerID: "cust-1"})

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
}

// ============================================
// Settlement Query Tests
// ============================================

func TestHandler_EligibleCommissions(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Commissions, "c1", &CommissionReadModel{ID: "c1", Reference: "COM/00001", VendorID: "v1", State: "confirmed"})
	seed(t, readStore, readmodel.Commissions, "c2", &CommissionReadModel{ID: "c2", Reference: "COM/00002", VendorID: "v1", State: "confirmed", PayoutID: "p1"})
	seed(t, readStore, readmodel.Commissions, "c3", &CommissionReadModel{ID: "c3", Reference: "COM/00003", VendorID: "v1", State: "draft"})
	seed(t, readStore, readmodel.Commissions, "c4", &CommissionReadModel{ID: "c4", Reference: "COM/00004", VendorID: "v2", State: "confirmed"})

	eligible, err := handler.EligibleCommissions("v1")

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "c1", eligible[0].ID)
}

func TestHandler_VendorDashboard(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Vendors, "v1", &VendorReadModel{ID: "v1", RatingAvg: 4.5, ReviewCount: 2})
	seed(t, readStore, readmodel.Products, "p1", &ProductReadModel{ID: "p1", VendorID: "v1"})
	seed(t, readStore, readmodel.Orders, "o1", &OrderReadModel{ID: "o1", VendorID: "v1", Status: "done", AmountTotal: dec("100")})
	seed(t, readStore, readmodel.Orders, "o2", &OrderReadModel{ID: "o2", VendorID: "v1", Status: "shipped", AmountTotal: dec("50")})
	seed(t, readStore, readmodel.Orders, "o3", &OrderReadModel{ID: "o3", VendorID: "v1", Status: "cancelled", AmountTotal: dec("70")})
	seed(t, readStore, readmodel.Orders, "o4", &OrderReadModel{ID: "o4", VendorID: "v1", Status: "draft", AmountTotal: dec("10")})
	seed(t, readStore, readmodel.Commissions, "c1", &CommissionReadModel{ID: "c1", VendorID: "v1", State: "paid", CommissionAmount: dec("10"), VendorAmount: dec("90")})
	seed(t, readStore, readmodel.Commissions, "c2", &CommissionReadModel{ID: "c2", VendorID: "v1", State: "confirmed", CommissionAmount: dec("5"), VendorAmount: dec("45")})
	seed(t, readStore, readmodel.Commissions, "c3", &CommissionReadModel{ID: "c3", VendorID: "v1", State: "draft", CommissionAmount: dec("1"), VendorAmount: dec("9")})
	seed(t, readStore, readmodel.Commissions, "c4", &CommissionReadModel{ID: "c4", VendorID: "v1", State: "cancelled", CommissionAmount: dec("7"), VendorAmount: dec("63")})

	d, err := handler.VendorDashboard("v1")

	require.NoError(t, err)
	assert.Equal(t, 1, d.ProductCount)
	assert.Equal(t, 2, d.OrderCount)
	assert.True(t, dec("100").Equal(d.TotalSales))
	assert.True(t, dec("10").Equal(d.TotalCommission))
	assert.True(t, dec("54").Equal(d.PendingPayout), "cancelled commissions are not pending")
	assert.True(t, dec("90").Equal(d.PaidAmount))
	assert.Equal(t, 4.5, d.RatingAvg)
}

func TestHandler_VendorDashboard_UnknownVendor(t *testing.T) {
	handler, _ := newTestQueryHandler()
	_, err := handler.VendorDashboard("ghost")
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestHandler_MarketplaceStats(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Vendors, "v1", &VendorReadModel{ID: "v1", State: "approved"})
	seed(t, readStore, readmodel.Vendors, "v2", &VendorReadModel{ID: "v2", State: "pending"})
	seed(t, readStore, readmodel.Products, "p1", &ProductReadModel{ID: "p1", State: "published"})
	seed(t, readStore, readmodel.Orders, "o1", &OrderReadModel{ID: "o1", Status: "confirmed", AmountTotal: dec("30")})
	seed(t, readStore, readmodel.Orders, "o2", &OrderReadModel{ID: "o2", Status: "cancelled", AmountTotal: dec("99")})
	seed(t, readStore, readmodel.Orders, "o3", &OrderReadModel{ID: "o3", Status: "done", AmountTotal: dec("20")})

	s, err := handler.MarketplaceStats()

	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveVendors)
	assert.Equal(t, 1, s.PublishedProducts)
	assert.Equal(t, 1, s.PendingOrders)
	assert.True(t, dec("50").Equal(s.TotalRevenue))
}

// ============================================
// Review Query Tests
// ============================================

func TestHandler_ListProductReviews_PublishedOnly(t *testing.T) {
	handler, readStore := newTestQueryHandler()
	seed(t, readStore, readmodel.Reviews, "r1", &ReviewReadModel{ID: "r1", ProductID: "p1", State: "published"})
	seed(t, readStore, readmodel.Reviews, "r2", &ReviewReadModel{ID: "r2", ProductID: "p1", State: "draft"})

	reviews, err := handler.ListProductReviews("p1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "r1", reviews[0].ID)

	pending, err := handler.ListPendingReviews()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
