package commission

import "time"

const (
	EventCommissionCreated    = "CommissionCreated"
	EventCommissionRecomputed = "CommissionRecomputed"
	EventCommissionConfirmed  = "CommissionConfirmed"
	EventCommissionAttached   = "CommissionAttached"
	EventCommissionDetached   = "CommissionDetached"
	EventCommissionPaid       = "CommissionPaid"
	EventCommissionCancelled  = "CommissionCancelled"
)

type CommissionCreated struct {
	CommissionID   string    `json:"commission_id"`
	Reference      string    `json:"reference"`
	OrderID        string    `json:"order_id"`
	OrderReference string    `json:"order_reference"`
	VendorID       string    `json:"vendor_id"`
	Policy         Policy    `json:"policy"`
	Split          Split     `json:"split"`
	CreatedAt      time.Time `json:"created_at"`
}

type CommissionRecomputed struct {
	CommissionID string    `json:"commission_id"`
	Policy       Policy    `json:"policy"`
	Split        Split     `json:"split"`
	RecomputedAt time.Time `json:"recomputed_at"`
}

type CommissionConfirmed struct {
	CommissionID string    `json:"commission_id"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

type CommissionAttached struct {
	CommissionID string    `json:"commission_id"`
	PayoutID     string    `json:"payout_id"`
	AttachedAt   time.Time `json:"attached_at"`
}

type CommissionDetached struct {
	CommissionID string    `json:"commission_id"`
	PayoutID     string    `json:"payout_id"`
	DetachedAt   time.Time `json:"detached_at"`
}

type CommissionPaid struct {
	CommissionID string    `json:"commission_id"`
	PayoutID     string    `json:"payout_id"`
	PaymentDate  time.Time `json:"payment_date"`
}

// CommissionCancelled follows the cancellation of the commission's order.
type CommissionCancelled struct {
	CommissionID string    `json:"commission_id"`
	OrderID      string    `json:"order_id"`
	CancelledAt  time.Time `json:"cancelled_at"`
}
