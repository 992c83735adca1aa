package seller

import (
	"time"

	"github.com/example/marketplace/internal/domain/commission"
)

const (
	EventVendorRegistered          = "VendorRegistered"
	EventVendorProfileUpdated      = "VendorProfileUpdated"
	EventVendorSubmitted           = "VendorSubmitted"
	EventVendorApproved            = "VendorApproved"
	EventVendorRejected            = "VendorRejected"
	EventVendorSuspended           = "VendorSuspended"
	EventVendorReactivated         = "VendorReactivated"
	EventVendorCommissionPolicySet = "VendorCommissionPolicySet"
	EventVendorDeleted             = "VendorDeleted"
)

type VendorRegistered struct {
	VendorID     string            `json:"vendor_id"`
	Code         string            `json:"code"`
	UserID       string            `json:"user_id"`
	Profile      Profile           `json:"profile"`
	Policy       commission.Policy `json:"policy"`
	RegisteredAt time.Time         `json:"registered_at"`
}

type VendorProfileUpdated struct {
	VendorID  string    `json:"vendor_id"`
	Profile   Profile   `json:"profile"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VendorStateChanged is the payload of every workflow event.
type VendorStateChanged struct {
	VendorID  string    `json:"vendor_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type VendorCommissionPolicySet struct {
	VendorID string            `json:"vendor_id"`
	Policy   commission.Policy `json:"policy"`
	SetAt    time.Time         `json:"set_at"`
}

type VendorDeleted struct {
	VendorID  string    `json:"vendor_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
