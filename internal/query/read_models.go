package query

import (
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/readmodel"
)

// Re-export read models so API handlers only import query.
type (
	ProductReadModel    = readmodel.ProductReadModel
	VendorReadModel     = readmodel.VendorReadModel
	CategoryReadModel   = readmodel.CategoryReadModel
	OrderReadModel      = readmodel.OrderReadModel
	CommissionReadModel = readmodel.CommissionReadModel
	PayoutReadModel     = readmodel.PayoutReadModel
	ReviewReadModel     = readmodel.ReviewReadModel
	InventoryReadModel  = readmodel.InventoryReadModel
	InvoiceReadModel    = readmodel.InvoiceReadModel
)

// ProductFilter narrows ListProducts. Zero fields match everything.
type ProductFilter struct {
	VendorID   string
	CategoryID string
	State      string
}

type OrderFilter struct {
	CustomerID string
	VendorID   string
	Status     string
}

type CommissionFilter struct {
	VendorID string
	State    string
}

// VendorDashboard summarises a vendor's sales and settlement position.
type VendorDashboard struct {
	VendorID        string          `json:"vendor_id"`
	ProductCount    int             `json:"product_count"`
	OrderCount      int             `json:"order_count"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	PendingPayout   decimal.Decimal `json:"pending_payout"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RatingAvg       float64         `json:"rating_avg"`
	ReviewCount     int             `json:"review_count"`
}

// MarketplaceStats is the back-office overview.
type MarketplaceStats struct {
	ActiveVendors     int             `json:"active_vendors"`
	PublishedProducts int             `json:"published_products"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingOrders     int             `json:"pending_orders"`
}
