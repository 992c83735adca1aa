package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventPayoutCreated       = "PayoutCreated"
	EventCommissionAdded     = "PayoutCommissionAdded"
	EventCommissionRemoved   = "PayoutCommissionRemoved"
	EventMemberAmountChanged = "PayoutMemberAmountChanged"
	EventPayoutConfirmed     = "PayoutConfirmed"
	EventPayoutPaid          = "PayoutPaid"
)

type PayoutCreated struct {
	PayoutID      string        `json:"payout_id"`
	Reference     string        `json:"reference"`
	VendorID      string        `json:"vendor_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PayoutDate    time.Time     `json:"payout_date"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Membership events carry the resulting payout amount so consumers never
// have to re-add member amounts.
type PayoutCommissionAdded struct {
	PayoutID     string          `json:"payout_id"`
	CommissionID string          `json:"commission_id"`
	VendorAmount decimal.Decimal `json:"vendor_amount"`
	Amount       decimal.Decimal `json:"amount"`
	AddedAt      time.Time       `json:"added_at"`
}

type PayoutCommissionRemoved struct {
	PayoutID     string          `json:"payout_id"`
	CommissionID string          `json:"commission_id"`
	Amount       decimal.Decimal `json:"amount"`
	RemovedAt    time.Time       `json:"removed_at"`
}

type PayoutMemberAmountChanged struct {
	PayoutID     string          `json:"payout_id"`
	CommissionID string          `json:"commission_id"`
	VendorAmount decimal.Decimal `json:"vendor_amount"`
	Amount       decimal.Decimal `json:"amount"`
	ChangedAt    time.Time       `json:"changed_at"`
}

type PayoutConfirmed struct {
	PayoutID    string    `json:"payout_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type PayoutPaid struct {
	PayoutID      string          `json:"payout_id"`
	VendorID      string          `json:"vendor_id"`
	Reference     string          `json:"reference"`
	CommissionIDs []string        `json:"commission_ids"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}
