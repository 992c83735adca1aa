package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection names used by the projector and the query handler.
const (
	Products    = "products"
	Inventory   = "inventory"
	Vendors     = "vendors"
	Categories  = "categories"
	Orders      = "orders"
	Commissions = "commissions"
	Payouts     = "payouts"
	Reviews     = "reviews"
	Users       = "users"
	Invoices    = "invoices"
	Sessions    = "sessions"
)

// Stock status values derived from on-hand quantity and the low-stock threshold.
const (
	StockIn  = "in_stock"
	StockLow = "low_stock"
	StockOut = "out_of_stock"
)

// ProductReadModel is the read model for products
type ProductReadModel struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	VendorID           string          `json:"vendor_id"`
	CategoryID         string          `json:"category_id,omitempty"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	ListPrice          decimal.Decimal `json:"list_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	EffectivePrice     decimal.Decimal `json:"effective_price"`
	LowStockThreshold  int             `json:"low_stock_threshold"`
	QtyAvailable       int             `json:"qty_available"`
	StockStatus        string          `json:"stock_status"`
	State              string          `json:"state"`
	RatingAvg          float64         `json:"rating_avg"`
	ReviewCount        int             `json:"review_count"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// StockStatusFor classifies an on-hand quantity.
func StockStatusFor(qty, lowThreshold int) string {
	switch {
	case qty <= 0:
		return StockOut
	case qty <= lowThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// InventoryReadModel is the read model for inventory
type InventoryReadModel struct {
	ProductID string    `json:"product_id"`
	OnHand    int       `json:"on_hand"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VendorReadModel struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Description     string          `json:"description,omitempty"`
	UserID          string          `json:"user_id"`
	State           string          `json:"state"`
	CommissionType  string          `json:"commission_type"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
	FixedCommission decimal.Decimal `json:"fixed_commission"`
	RatingAvg       float64         `json:"rating_avg"`
	ReviewCount     int             `json:"review_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CategoryReadModel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ParentID     string    `json:"parent_id,omitempty"`
	CompleteName string    `json:"complete_name"`
	Description  string    `json:"description,omitempty"`
	Sequence     int       `json:"sequence"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderLineReadModel represents a line in an order
type OrderLineReadModel struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceUnit   decimal.Decimal `json:"price_unit"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// OrderReadModel is the read model for orders
type OrderReadModel struct {
	ID             string               `json:"id"`
	Reference      string               `json:"reference"`
	CustomerID     string               `json:"customer_id"`
	VendorID       string               `json:"vendor_id"`
	Lines          []OrderLineReadModel `json:"lines"`
	Status         string               `json:"status"`
	AmountUntaxed  decimal.Decimal      `json:"amount_untaxed"`
	AmountTax      decimal.Decimal      `json:"amount_tax"`
	ShippingCost   decimal.Decimal      `json:"shipping_cost"`
	AmountTotal    decimal.Decimal      `json:"amount_total"`
	CustomerNote   string               `json:"customer_note,omitempty"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	CommissionID   string               `json:"commission_id,omitempty"`
	InvoiceID      string               `json:"invoice_id,omitempty"`
	CancelReason   string               `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ConfirmedAt    *time.Time           `json:"confirmed_at,omitempty"`
	ProcessingAt   *time.Time           `json:"processing_at,omitempty"`
	ShippedAt      *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	DoneAt         *time.Time           `json:"done_at,omitempty"`
	CancelledAt    *time.Time           `json:"cancelled_at,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// HasProduct reports whether any line references productID.
func (o *OrderReadModel) HasProduct(productID string) bool {
	for _, l := range o.Lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}

type CommissionReadModel struct {
	ID               string          `json:"id"`
	Reference        string          `json:"reference"`
	OrderID          string          `json:"order_id"`
	OrderReference   string          `json:"order_reference"`
	VendorID         string          `json:"vendor_id"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	CommissionType   string          `json:"commission_type"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	FixedCommission  decimal.Decimal `json:"fixed_commission"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	VendorAmount     decimal.Decimal `json:"vendor_amount"`
	State            string          `json:"state"`
	PayoutID         string          `json:"payout_id,omitempty"`
	PaymentDate      *time.Time      `json:"payment_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type PayoutReadModel struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	VendorID      string          `json:"vendor_id"`
	CommissionIDs []string        `json:"commission_ids"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PayoutDate    time.Time       `json:"payout_date"`
	Notes         string          `json:"notes,omitempty"`
	State         string          `json:"state"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ReviewReadModel struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id,omitempty"`
	VendorID         string    `json:"vendor_id,omitempty"`
	CustomerID       string    `json:"customer_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title"`
	Comment          string    `json:"comment,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UserReadModel is the read model for users
type UserReadModel struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SessionReadModel stores a refresh token hash per login session.
type SessionReadModel struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"user_agent"`
}

type InvoiceReadModel struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	VendorID      string          `json:"vendor_id"`
	AmountUntaxed decimal.Decimal `json:"amount_untaxed"`
	AmountTax     decimal.Decimal `json:"amount_tax"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	AmountTotal   decimal.Decimal `json:"amount_total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// New returns an empty model for collection, used to decode stored documents.
func New(collection string) (any, bool) {
	switch collection {
	case Products:
		return &ProductReadModel{}, true
	case Inventory:
		return &InventoryReadModel{}, true
	case Vendors:
		return &VendorReadModel{}, true
	case Categories:
		return &CategoryReadModel{}, true
	case Orders:
		return &OrderReadModel{}, true
	case Commissions:
		return &CommissionReadModel{}, true
	case Payouts:
		return &PayoutReadModel{}, true
	case Reviews:
		return &ReviewReadModel{}, true
	case Users:
		return &UserReadModel{}, true
	case Invoices:
		return &InvoiceReadModel{}, true
	case Sessions:
		return &SessionReadModel{}, true
	}
	return nil, false
}
