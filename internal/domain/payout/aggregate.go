package payout

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Payout"

type State string

const (
	StateDraft     State = "draft"
	StateConfirmed State = "confirmed"
	StatePaid      State = "paid"
)

type PaymentMethod string

const (
	PaymentBank  PaymentMethod = "bank"
	PaymentCheck PaymentMethod = "check"
	PaymentCash  PaymentMethod = "cash"
)

var (
	ErrPayoutNotFound       = errors.Wrap(domainerr.ErrNotFound, "payout")
	ErrInvalidState         = errors.Wrap(domainerr.ErrInvalidTransition, "payout state does not allow this operation")
	ErrEmptyPayout          = errors.Wrap(domainerr.ErrValidation, "payout has no commissions")
	ErrVendorMismatch       = errors.Wrap(domainerr.ErrValidation, "commission belongs to another vendor")
	ErrDuplicateMember      = errors.Wrap(domainerr.ErrValidation, "commission is already in the payout")
	ErrUnknownMember        = errors.Wrap(domainerr.ErrValidation, "commission is not in the payout")
	ErrMembersMismatch      = errors.Wrap(domainerr.ErrValidation, "commissions do not match payout members")
	ErrInvalidPaymentMethod = errors.Wrap(domainerr.ErrValidation, "payment method must be bank, check or cash")
	ErrMissingVendor        = errors.Wrap(domainerr.ErrValidation, "vendor is required")
)

type Payout struct {
	ID            string                     `json:"id"`
	Reference     string                     `json:"reference"`
	VendorID      string                     `json:"vendor_id"`
	Members       map[string]decimal.Decimal `json:"members"`
	Amount        decimal.Decimal            `json:"amount"`
	PaymentMethod PaymentMethod              `json:"payment_method"`
	PayoutDate    time.Time                  `json:"payout_date"`
	Notes         string                     `json:"notes,omitempty"`
	State         State                      `json:"state"`
	PaidAt        *time.Time                 `json:"paid_at,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	Version       int                        `json:"version"`
}

// Aggregate interface implementation
func (p *Payout) GetID() string    { return p.ID }
func (p *Payout) GetVersion() int  { return p.Version }
func (p *Payout) SetVersion(v int) { p.Version = v }

// CommissionIDs returns the member commission ids in a stable order.
func (p *Payout) CommissionIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for id := range p.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sum is the payout amount for a membership.
func sum(members map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range members {
		total = total.Add(amount)
	}
	return total
}

// amountWith previews the payout amount after setting or removing one member.
func (p *Payout) amountWith(commissionID string, amount *decimal.Decimal) decimal.Decimal {
	next := make(map[string]decimal.Decimal, len(p.Members)+1)
	for id, a := range p.Members {
		next[id] = a
	}
	if amount == nil {
		delete(next, commissionID)
	} else {
		next[commissionID] = *amount
	}
	return sum(next)
}

func (p *Payout) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, p, AggregateType, eventType, data)
}

func (p *Payout) ensureOpen() error {
	if p.State == StatePaid {
		return errors.Wrapf(ErrInvalidState, "payout %s is paid", p.Reference)
	}
	return nil
}

type CreateParams struct {
	Reference     string
	VendorID      string
	PaymentMethod PaymentMethod
	PayoutDate    time.Time
	Notes         string
}

func Create(b *store.Batch, params CreateParams, at time.Time) (*Payout, error) {
	if params.VendorID == "" {
		return nil, ErrMissingVendor
	}
	if params.PaymentMethod == "" {
		params.PaymentMethod = PaymentBank
	}
	switch params.PaymentMethod {
	case PaymentBank, PaymentCheck, PaymentCash:
	default:
		return nil, errors.Wrapf(ErrInvalidPaymentMethod, "got %q", params.PaymentMethod)
	}
	if params.PayoutDate.IsZero() {
		params.PayoutDate = at
	}

	p := &Payout{ID: uuid.New().String()}
	err := p.record(b, EventPayoutCreated, PayoutCreated{
		PayoutID:      p.ID,
		Reference:     params.Reference,
		VendorID:      params.VendorID,
		PaymentMethod: params.PaymentMethod,
		PayoutDate:    params.PayoutDate,
		Notes:         params.Notes,
		CreatedAt:     at,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AddCommission attaches c to the payout and adds its vendor amount. Both
// aggregates change in the same batch.
func (p *Payout) AddCommission(b *store.Batch, c *commission.Commission, at time.Time) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if c.VendorID != p.VendorID {
		return errors.Wrapf(ErrVendorMismatch, "commission %s", c.Reference)
	}
	if _, ok := p.Members[c.ID]; ok {
		return errors.Wrapf(ErrDuplicateMember, "commission %s", c.Reference)
	}
	if err := c.AttachToPayout(b, p.ID, at); err != nil {
		return err
	}
	amount := c.VendorAmount
	return p.record(b, EventCommissionAdded, PayoutCommissionAdded{
		PayoutID:     p.ID,
		CommissionID: c.ID,
		VendorAmount: amount,
		Amount:       p.amountWith(c.ID, &amount),
		AddedAt:      at,
	})
}

func (p *Payout) RemoveCommission(b *store.Batch, c *commission.Commission, at time.Time) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if _, ok := p.Members[c.ID]; !ok {
		return errors.Wrapf(ErrUnknownMember, "commission %s", c.Reference)
	}
	if err := c.DetachFromPayout(b, p.ID, at); err != nil {
		return err
	}
	return p.record(b, EventCommissionRemoved, PayoutCommissionRemoved{
		PayoutID:     p.ID,
		CommissionID: c.ID,
		Amount:       p.amountWith(c.ID, nil),
		RemovedAt:    at,
	})
}

// UpdateMemberAmount follows a recomputed commission.
func (p *Payout) UpdateMemberAmount(b *store.Batch, commissionID string, vendorAmount decimal.Decimal, at time.Time) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	current, ok := p.Members[commissionID]
	if !ok {
		return errors.Wrapf(ErrUnknownMember, "commission %s", commissionID)
	}
	if current.Equal(vendorAmount) {
		return nil
	}
	return p.record(b, EventMemberAmountChanged, PayoutMemberAmountChanged{
		PayoutID:     p.ID,
		CommissionID: commissionID,
		VendorAmount: vendorAmount,
		Amount:       p.amountWith(commissionID, &vendorAmount),
		ChangedAt:    at,
	})
}

// Confirm has no effect on member commissions.
func (p *Payout) Confirm(b *store.Batch, at time.Time) error {
	if p.State != StateDraft {
		return errors.Wrapf(ErrInvalidState, "payout %s is %s", p.Reference, p.State)
	}
	if len(p.Members) == 0 {
		return errors.Wrapf(ErrEmptyPayout, "payout %s", p.Reference)
	}
	return p.record(b, EventPayoutConfirmed, PayoutConfirmed{PayoutID: p.ID, ConfirmedAt: at})
}

// MarkPaid settles the payout and marks every member commission paid with
// the same payment date. members must be exactly the payout's commissions.
func (p *Payout) MarkPaid(b *store.Batch, members []*commission.Commission, at time.Time) error {
	if p.State != StateConfirmed {
		return errors.Wrapf(ErrInvalidState, "payout %s is %s", p.Reference, p.State)
	}
	if len(p.Members) == 0 {
		return errors.Wrapf(ErrEmptyPayout, "payout %s", p.Reference)
	}
	if len(members) != len(p.Members) {
		return errors.Wrapf(ErrMembersMismatch, "payout %s has %d commissions, got %d", p.Reference, len(p.Members), len(members))
	}
	for _, c := range members {
		if _, ok := p.Members[c.ID]; !ok {
			return errors.Wrapf(ErrMembersMismatch, "commission %s", c.Reference)
		}
	}

	for _, c := range members {
		if err := c.MarkPaid(b, p.ID, at); err != nil {
			return errors.Wrapf(err, "payout %s", p.Reference)
		}
	}
	return p.record(b, EventPayoutPaid, PayoutPaid{
		PayoutID:      p.ID,
		VendorID:      p.VendorID,
		Reference:     p.Reference,
		CommissionIDs: p.CommissionIDs(),
		Amount:        p.Amount,
		PaidAt:        at,
	})
}

// ApplyEvent applies a single event to the payout state
func (p *Payout) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventPayoutCreated:
		var data PayoutCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.PayoutID
		p.Reference = data.Reference
		p.VendorID = data.VendorID
		p.PaymentMethod = data.PaymentMethod
		p.PayoutDate = data.PayoutDate
		p.Notes = data.Notes
		p.Members = make(map[string]decimal.Decimal)
		p.Amount = decimal.Zero
		p.State = StateDraft
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt

	case EventCommissionAdded:
		var data PayoutCommissionAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Members[data.CommissionID] = data.VendorAmount
		p.Amount = sum(p.Members)
		p.UpdatedAt = data.AddedAt

	case EventCommissionRemoved:
		var data PayoutCommissionRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(p.Members, data.CommissionID)
		p.Amount = sum(p.Members)
		p.UpdatedAt = data.RemovedAt

	case EventMemberAmountChanged:
		var data PayoutMemberAmountChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Members[data.CommissionID] = data.VendorAmount
		p.Amount = sum(p.Members)
		p.UpdatedAt = data.ChangedAt

	case EventPayoutConfirmed:
		var data PayoutConfirmed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.State = StateConfirmed
		p.UpdatedAt = data.ConfirmedAt

	case EventPayoutPaid:
		var data PayoutPaid
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.State = StatePaid
		p.PaidAt = &data.PaidAt
		p.UpdatedAt = data.PaidAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, id string) (*Payout, error) {
	p, found, err := aggregate.LoadAggregate(ctx, s.eventStore, id, func() *Payout { return &Payout{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrPayoutNotFound, "id %s", id)
	}
	return p, nil
}
