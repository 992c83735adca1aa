package product

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProductCreated          = "ProductCreated"
	EventProductUpdated          = "ProductUpdated"
	EventProductDeleted          = "ProductDeleted"
	EventProductCategoryAssigned = "ProductCategoryAssigned"
	EventProductCategoryRemoved  = "ProductCategoryRemoved"
	EventProductSubmitted        = "ProductSubmitted"
	EventProductPublished        = "ProductPublished"
	EventProductRejected         = "ProductRejected"
	EventProductUnpublished      = "ProductUnpublished"
)

// Details are the catalog fields a vendor edits.
type Details struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	ListPrice          decimal.Decimal `json:"list_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	LowStockThreshold  int             `json:"low_stock_threshold"`
}

type ProductCreated struct {
	ProductID  string    `json:"product_id"`
	Code       string    `json:"code"`
	VendorID   string    `json:"vendor_id"`
	CategoryID string    `json:"category_id,omitempty"`
	Details    Details   `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductUpdated struct {
	ProductID string    `json:"product_id"`
	Details   Details   `json:"details"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductDeleted struct {
	ProductID string    `json:"product_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ProductCategoryAssigned is emitted when a category is assigned to a product
type ProductCategoryAssigned struct {
	ProductID  string    `json:"product_id"`
	CategoryID string    `json:"category_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ProductCategoryRemoved is emitted when a category is removed from a product
type ProductCategoryRemoved struct {
	ProductID  string    `json:"product_id"`
	CategoryID string    `json:"category_id"`
	RemovedAt  time.Time `json:"removed_at"`
}

// ProductStateChanged is the payload of every review workflow event.
type ProductStateChanged struct {
	ProductID string    `json:"product_id"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
