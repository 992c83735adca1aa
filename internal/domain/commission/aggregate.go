package commission

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Commission"

type State string

const (
	StateDraft     State = "draft"
	StateConfirmed State = "confirmed"
	StatePaid      State = "paid"
	StateCancelled State = "cancelled"
)

var (
	ErrCommissionNotFound = errors.Wrap(domainerr.ErrNotFound, "commission")
	ErrCommissionFrozen   = errors.Wrap(domainerr.ErrInvalidTransition, "commission is paid and can no longer change")
	ErrNotDraft           = errors.Wrap(domainerr.ErrInvalidTransition, "commission must be draft")
	ErrNotEligible        = errors.Wrap(domainerr.ErrValidation, "commission must be confirmed and not attached to a payout")
	ErrNotInPayout        = errors.Wrap(domainerr.ErrValidation, "commission does not belong to the payout")
	ErrInvalidOrderAmount = errors.Wrap(domainerr.ErrValidation, "order amount must not be negative")
	ErrCancelled          = errors.Wrap(domainerr.ErrInvalidTransition, "commission is cancelled")
	ErrStillInPayout      = errors.Wrap(domainerr.ErrInvalidTransition, "commission must leave its payout first")
)

type Commission struct {
	ID             string          `json:"id"`
	Reference      string          `json:"reference"`
	OrderID        string          `json:"order_id"`
	OrderReference string          `json:"order_reference"`
	VendorID       string          `json:"vendor_id"`
	Policy         Policy          `json:"policy"`
	OrderAmount    decimal.Decimal `json:"order_amount"`
	Amount         decimal.Decimal `json:"commission_amount"`
	VendorAmount   decimal.Decimal `json:"vendor_amount"`
	State          State           `json:"state"`
	PayoutID       string          `json:"payout_id,omitempty"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// Aggregate interface implementation
func (c *Commission) GetID() string    { return c.ID }
func (c *Commission) GetVersion() int  { return c.Version }
func (c *Commission) SetVersion(v int) { c.Version = v }

// Eligible reports whether the commission can join a payout.
func (c *Commission) Eligible() bool {
	return c.State == StateConfirmed && c.PayoutID == ""
}

func (c *Commission) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, c, AggregateType, eventType, data)
}

// ensureNotPaid guards every mutation: paid and cancelled commissions are final.
func (c *Commission) ensureNotPaid() error {
	switch c.State {
	case StatePaid:
		return errors.Wrapf(ErrCommissionFrozen, "commission %s", c.Reference)
	case StateCancelled:
		return errors.Wrapf(ErrCancelled, "commission %s", c.Reference)
	}
	return nil
}

// CreateParams captures the order at confirmation time.
type CreateParams struct {
	Reference      string
	OrderID        string
	OrderReference string
	VendorID       string
	OrderAmount    decimal.Decimal
	Policy         Policy
}

// Create records a draft commission. The order amount is a snapshot.
func Create(b *store.Batch, p CreateParams, at time.Time) (*Commission, error) {
	if err := p.Policy.Validate(); err != nil {
		return nil, err
	}
	if p.OrderAmount.IsNegative() {
		return nil, ErrInvalidOrderAmount
	}

	c := &Commission{ID: uuid.New().String()}
	err := c.record(b, EventCommissionCreated, CommissionCreated{
		CommissionID:   c.ID,
		Reference:      p.Reference,
		OrderID:        p.OrderID,
		OrderReference: p.OrderReference,
		VendorID:       p.VendorID,
		Policy:         p.Policy,
		Split:          Compute(p.OrderAmount, p.Policy),
		CreatedAt:      at,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Recompute applies a new policy to the order amount snapshot.
func (c *Commission) Recompute(b *store.Batch, p Policy, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return c.record(b, EventCommissionRecomputed, CommissionRecomputed{
		CommissionID: c.ID,
		Policy:       p,
		Split:        Compute(c.OrderAmount, p),
		RecomputedAt: at,
	})
}

func (c *Commission) Confirm(b *store.Batch, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if c.State != StateDraft {
		return errors.Wrapf(ErrNotDraft, "commission %s is %s", c.Reference, c.State)
	}
	return c.record(b, EventCommissionConfirmed, CommissionConfirmed{CommissionID: c.ID, ConfirmedAt: at})
}

// AttachToPayout enforces payout eligibility on the commission itself.
func (c *Commission) AttachToPayout(b *store.Batch, payoutID string, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if !c.Eligible() {
		return errors.Wrapf(ErrNotEligible, "commission %s is %s in payout %q", c.Reference, c.State, c.PayoutID)
	}
	return c.record(b, EventCommissionAttached, CommissionAttached{CommissionID: c.ID, PayoutID: payoutID, AttachedAt: at})
}

func (c *Commission) DetachFromPayout(b *store.Batch, payoutID string, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if c.PayoutID != payoutID {
		return errors.Wrapf(ErrNotInPayout, "commission %s", c.Reference)
	}
	return c.record(b, EventCommissionDetached, CommissionDetached{CommissionID: c.ID, PayoutID: payoutID, DetachedAt: at})
}

// MarkPaid settles the commission as part of its payout.
func (c *Commission) MarkPaid(b *store.Batch, payoutID string, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if c.PayoutID != payoutID {
		return errors.Wrapf(ErrNotInPayout, "commission %s", c.Reference)
	}
	return c.record(b, EventCommissionPaid, CommissionPaid{CommissionID: c.ID, PayoutID: payoutID, PaymentDate: at})
}

// Cancel voids the commission of a cancelled order. A commission still in a
// payout must be removed from it first, in the same batch.
func (c *Commission) Cancel(b *store.Batch, at time.Time) error {
	if err := c.ensureNotPaid(); err != nil {
		return err
	}
	if c.PayoutID != "" {
		return errors.Wrapf(ErrStillInPayout, "commission %s is in payout %s", c.Reference, c.PayoutID)
	}
	return c.record(b, EventCommissionCancelled, CommissionCancelled{CommissionID: c.ID, OrderID: c.OrderID, CancelledAt: at})
}

func (c *Commission) applySplit(s Split) {
	c.OrderAmount = s.OrderAmount
	c.Amount = s.Commission
	c.VendorAmount = s.VendorAmount
}

// ApplyEvent applies a single event to the commission state
func (c *Commission) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventCommissionCreated:
		var data CommissionCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CommissionID
		c.Reference = data.Reference
		c.OrderID = data.OrderID
		c.OrderReference = data.OrderReference
		c.VendorID = data.VendorID
		c.Policy = data.Policy
		c.applySplit(data.Split)
		c.State = StateDraft
		c.CreatedAt = data.CreatedAt
		c.UpdatedAt = data.CreatedAt

	case EventCommissionRecomputed:
		var data CommissionRecomputed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.Policy = data.Policy
		c.applySplit(data.Split)
		c.UpdatedAt = data.RecomputedAt

	case EventCommissionConfirmed:
		var data CommissionConfirmed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.State = StateConfirmed
		c.UpdatedAt = data.ConfirmedAt

	case EventCommissionAttached:
		var data CommissionAttached
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.PayoutID = data.PayoutID
		c.UpdatedAt = data.AttachedAt

	case EventCommissionDetached:
		var data CommissionDetached
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.PayoutID = ""
		c.UpdatedAt = data.DetachedAt

	case EventCommissionPaid:
		var data CommissionPaid
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.State = StatePaid
		c.PaymentDate = &data.PaymentDate
		c.UpdatedAt = data.PaymentDate

	case EventCommissionCancelled:
		var data CommissionCancelled
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.State = StateCancelled
		c.UpdatedAt = data.CancelledAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, id string) (*Commission, error) {
	c, found, err := aggregate.LoadAggregate(ctx, s.eventStore, id, func() *Commission { return &Commission{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrCommissionNotFound, "id %s", id)
	}
	return c, nil
}

// Confirm moves a draft commission to confirmed, making it payable.
func (s *Service) Confirm(ctx context.Context, id string) (*Commission, error) {
	c, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := c.Confirm(b, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: c, Type: AggregateType})
	return c, nil
}
