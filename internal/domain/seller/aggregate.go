// Package seller holds the vendor aggregate. The directory is not named
// vendor because the go tool reserves that name.
package seller

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Vendor"

type State string

const (
	StateDraft     State = "draft"
	StatePending   State = "pending"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateSuspended State = "suspended"
)

var (
	ErrVendorNotFound = errors.Wrap(domainerr.ErrNotFound, "vendor")
	ErrInvalidName    = errors.Wrap(domainerr.ErrValidation, "vendor name is required")
	ErrInvalidEmail   = errors.Wrap(domainerr.ErrValidation, "vendor email is invalid")
	ErrHasOrders      = errors.Wrap(domainerr.ErrValidation, "vendor has orders and cannot be deleted")
	ErrNotApproved    = errors.Wrap(domainerr.ErrValidation, "vendor is not approved")
	ErrInvalidState   = errors.Wrap(domainerr.ErrInvalidTransition, "vendor state does not allow this operation")
	ErrVendorDeleted  = errors.Wrap(domainerr.ErrInvalidTransition, "vendor is deleted")
)

// workflow lists the states each workflow event may start from.
var workflow = map[string]struct {
	from []State
	to   State
}{
	EventVendorSubmitted:   {from: []State{StateDraft, StateRejected}, to: StatePending},
	EventVendorApproved:    {from: []State{StatePending}, to: StateApproved},
	EventVendorRejected:    {from: []State{StatePending}, to: StateRejected},
	EventVendorSuspended:   {from: []State{StateApproved}, to: StateSuspended},
	EventVendorReactivated: {from: []State{StateSuspended}, to: StateApproved},
}

// Profile is the contact information a vendor maintains.
type Profile struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Description string `json:"description,omitempty"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidName
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.Wrapf(ErrInvalidEmail, "%q", p.Email)
	}
	return nil
}

type Vendor struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	UserID    string            `json:"user_id"`
	Profile   Profile           `json:"profile"`
	Policy    commission.Policy `json:"policy"`
	State     State             `json:"state"`
	IsDeleted bool              `json:"is_deleted,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int               `json:"version"`
}

// Aggregate interface implementation
func (v *Vendor) GetID() string      { return v.ID }
func (v *Vendor) GetVersion() int    { return v.Version }
func (v *Vendor) SetVersion(val int) { v.Version = val }

// CanSell reports whether orders may be placed with the vendor.
func (v *Vendor) CanSell() bool {
	return v.State == StateApproved && !v.IsDeleted
}

func (v *Vendor) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, v, AggregateType, eventType, data)
}

// Register creates a draft vendor with the default 10% commission.
func Register(b *store.Batch, code, userID string, profile Profile, at time.Time) (*Vendor, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	v := &Vendor{ID: uuid.New().String()}
	err := v.record(b, EventVendorRegistered, VendorRegistered{
		VendorID:     v.ID,
		Code:         code,
		UserID:       userID,
		Profile:      profile,
		Policy:       commission.DefaultPolicy(),
		RegisteredAt: at,
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vendor) ensureActive() error {
	if v.IsDeleted {
		return errors.Wrapf(ErrVendorDeleted, "vendor %s", v.Code)
	}
	return nil
}

func (v *Vendor) UpdateProfile(b *store.Batch, profile Profile, at time.Time) error {
	if err := v.ensureActive(); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	return v.record(b, EventVendorProfileUpdated, VendorProfileUpdated{VendorID: v.ID, Profile: profile, UpdatedAt: at})
}

func (v *Vendor) transition(b *store.Batch, eventType, reason string, at time.Time) error {
	if err := v.ensureActive(); err != nil {
		return err
	}
	step := workflow[eventType]
	allowed := false
	for _, s := range step.from {
		if s == v.State {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Wrapf(ErrInvalidState, "vendor %s is %s, cannot become %s", v.Code, v.State, step.to)
	}
	return v.record(b, eventType, VendorStateChanged{
		VendorID:  v.ID,
		Name:      v.Profile.Name,
		Email:     v.Profile.Email,
		State:     step.to,
		Reason:    reason,
		ChangedAt: at,
	})
}

func (v *Vendor) Submit(b *store.Batch, at time.Time) error {
	return v.transition(b, EventVendorSubmitted, "", at)
}

func (v *Vendor) Approve(b *store.Batch, at time.Time) error {
	return v.transition(b, EventVendorApproved, "", at)
}

func (v *Vendor) Reject(b *store.Batch, reason string, at time.Time) error {
	return v.transition(b, EventVendorRejected, reason, at)
}

func (v *Vendor) Suspend(b *store.Batch, reason string, at time.Time) error {
	return v.transition(b, EventVendorSuspended, reason, at)
}

func (v *Vendor) Reactivate(b *store.Batch, at time.Time) error {
	return v.transition(b, EventVendorReactivated, "", at)
}

// SetCommissionPolicy changes the terms for future and unpaid commissions.
// Recomputing existing commissions is the caller's job, in the same batch.
func (v *Vendor) SetCommissionPolicy(b *store.Batch, p commission.Policy, at time.Time) error {
	if err := v.ensureActive(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return v.record(b, EventVendorCommissionPolicySet, VendorCommissionPolicySet{VendorID: v.ID, Policy: p, SetAt: at})
}

// Delete soft-deletes the vendor. orderCount is the number of orders placed
// with it.
func (v *Vendor) Delete(b *store.Batch, orderCount int, at time.Time) error {
	if err := v.ensureActive(); err != nil {
		return err
	}
	if orderCount > 0 {
		return errors.Wrapf(ErrHasOrders, "vendor %s has %d orders", v.Code, orderCount)
	}
	return v.record(b, EventVendorDeleted, VendorDeleted{VendorID: v.ID, DeletedAt: at})
}

// ApplyEvent applies a single event to the vendor state
func (v *Vendor) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventVendorRegistered:
		var data VendorRegistered
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		v.ID = data.VendorID
		v.Code = data.Code
		v.UserID = data.UserID
		v.Profile = data.Profile
		v.Policy = data.Policy
		v.State = StateDraft
		v.CreatedAt = data.RegisteredAt
		v.UpdatedAt = data.RegisteredAt

	case EventVendorProfileUpdated:
		var data VendorProfileUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		v.Profile = data.Profile
		v.UpdatedAt = data.UpdatedAt

	case EventVendorSubmitted, EventVendorApproved, EventVendorRejected, EventVendorSuspended, EventVendorReactivated:
		var data VendorStateChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		v.State = data.State
		v.UpdatedAt = data.ChangedAt

	case EventVendorCommissionPolicySet:
		var data VendorCommissionPolicySet
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		v.Policy = data.Policy
		v.UpdatedAt = data.SetAt

	case EventVendorDeleted:
		var data VendorDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		v.IsDeleted = true
		v.UpdatedAt = data.DeletedAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, id string) (*Vendor, error) {
	v, found, err := aggregate.LoadAggregate(ctx, s.eventStore, id, func() *Vendor { return &Vendor{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrVendorNotFound, "id %s", id)
	}
	return v, nil
}

// LoadSelling loads a vendor that may currently take orders.
func (s *Service) LoadSelling(ctx context.Context, id string) (*Vendor, error) {
	v, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.CanSell() {
		return nil, errors.Wrapf(ErrNotApproved, "vendor %s is %s", v.Code, v.State)
	}
	return v, nil
}

func (s *Service) Register(ctx context.Context, code, userID string, profile Profile) (*Vendor, error) {
	b := store.NewBatch()
	v, err := Register(b, code, userID, profile, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return v, nil
}

// Edit loads a vendor, applies fn and commits the resulting events.
func (s *Service) Edit(ctx context.Context, id string, fn func(v *Vendor, b *store.Batch) error) (*Vendor, error) {
	v, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := fn(v, b); err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: v, Type: AggregateType})
	return v, nil
}
