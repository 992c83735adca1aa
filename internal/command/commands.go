package command

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/seller"
)

// Order Commands

// CheckoutLine is one requested product. A zero PriceUnit takes the catalog
// effective price.
type CheckoutLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	PriceUnit decimal.Decimal `json:"price_unit"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// PlaceOrders splits a checkout into one draft order per vendor.
type PlaceOrders struct {
	CustomerID   string          `json:"customer_id"`
	Lines        []CheckoutLine  `json:"lines"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	CustomerNote string          `json:"customer_note"`
}

type AddOrderLine struct {
	OrderID string       `json:"order_id"`
	Line    CheckoutLine `json:"line"`
}

type UpdateOrderLine struct {
	OrderID   string           `json:"order_id"`
	LineID    string           `json:"line_id"`
	Quantity  *int             `json:"quantity,omitempty"`
	PriceUnit *decimal.Decimal `json:"price_unit,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
	TaxRate   *decimal.Decimal `json:"tax_rate,omitempty"`
}

type RemoveOrderLine struct {
	OrderID string `json:"order_id"`
	LineID  string `json:"line_id"`
}

type SetShipping struct {
	OrderID      string          `json:"order_id"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

type ShipOrder struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
}

type CancelOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// Settlement Commands

type CreatePayout struct {
	VendorID      string               `json:"vendor_id"`
	CommissionIDs []string             `json:"commission_ids,omitempty"`
	PaymentMethod payout.PaymentMethod `json:"payment_method"`
	PayoutDate    time.Time            `json:"payout_date"`
	Notes         string               `json:"notes"`
}

type PayoutMembership struct {
	PayoutID     string `json:"payout_id"`
	CommissionID string `json:"commission_id"`
}

// Vendor Commands

type RegisterVendor struct {
	UserID  string         `json:"user_id"`
	Profile seller.Profile `json:"profile"`
}

type UpdateVendorProfile struct {
	VendorID string         `json:"vendor_id"`
	Profile  seller.Profile `json:"profile"`
}

type ChangeVendorState struct {
	VendorID string `json:"vendor_id"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

// Vendor workflow actions accepted by ChangeVendorState.
const (
	VendorSubmit     = "submit"
	VendorApprove    = "approve"
	VendorReject     = "reject"
	VendorSuspend    = "suspend"
	VendorReactivate = "reactivate"
)

type SetVendorCommissionPolicy struct {
	VendorID string            `json:"vendor_id"`
	Policy   commission.Policy `json:"policy"`
}

// Product Commands

type CreateProduct struct {
	VendorID     string          `json:"vendor_id"`
	CategoryID   string          `json:"category_id"`
	Details      product.Details `json:"details"`
	InitialStock int             `json:"initial_stock"`
}

type UpdateProduct struct {
	ProductID string          `json:"product_id"`
	Details   product.Details `json:"details"`
}

type ChangeProductState struct {
	ProductID string `json:"product_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
}

// Product workflow actions accepted by ChangeProductState.
const (
	ProductSubmit    = "submit"
	ProductPublish   = "publish"
	ProductReject    = "reject"
	ProductUnpublish = "unpublish"
)

type AdjustStock struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

// Category Commands

type SaveCategory struct {
	CategoryID string          `json:"category_id,omitempty"`
	Fields     category.Fields `json:"fields"`
}

// Review Commands

type SubmitReview struct {
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	VendorID   string `json:"vendor_id"`
	OrderID    string `json:"order_id"`
	Rating     int    `json:"rating"`
	Title      string `json:"title"`
	Comment    string `json:"comment"`
}

type ModerateReview struct {
	ReviewID string `json:"review_id"`
	Publish  bool   `json:"publish"`
	Reason   string `json:"reason,omitempty"`
}
