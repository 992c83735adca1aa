package product

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Product"

type State string

const (
	StateDraft       State = "draft"
	StatePending     State = "pending"
	StatePublished   State = "published"
	StateRejected    State = "rejected"
	StateUnpublished State = "unpublished"
)

var (
	ErrProductNotFound = errors.Wrap(domainerr.ErrNotFound, "product")
	ErrInvalidPrice    = errors.Wrap(domainerr.ErrValidation, "price must be positive")
	ErrInvalidName     = errors.Wrap(domainerr.ErrValidation, "name is required")
	ErrInvalidDiscount = errors.Wrap(domainerr.ErrValidation, "discount must be between 0 and 100")
	ErrInvalidLowStock = errors.Wrap(domainerr.ErrValidation, "low stock threshold must not be negative")
	ErrMissingVendor   = errors.Wrap(domainerr.ErrValidation, "vendor is required")
	ErrHasOrders       = errors.Wrap(domainerr.ErrValidation, "product is referenced by orders and cannot be deleted")
	ErrInvalidState    = errors.Wrap(domainerr.ErrInvalidTransition, "product state does not allow this operation")
	ErrProductDeleted  = errors.Wrap(domainerr.ErrInvalidTransition, "product is deleted")
)

var hundred = decimal.NewFromInt(100)

var workflow = map[string]struct {
	from []State
	to   State
}{
	EventProductSubmitted:   {from: []State{StateDraft, StateRejected}, to: StatePending},
	EventProductPublished:   {from: []State{StatePending, StateUnpublished}, to: StatePublished},
	EventProductRejected:    {from: []State{StatePending}, to: StateRejected},
	EventProductUnpublished: {from: []State{StatePublished}, to: StateUnpublished},
}

func (d Details) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidName
	}
	if !d.ListPrice.IsPositive() {
		return errors.Wrapf(ErrInvalidPrice, "got %s", d.ListPrice)
	}
	if d.DiscountPercentage.IsNegative() || d.DiscountPercentage.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidDiscount, "got %s", d.DiscountPercentage)
	}
	if d.LowStockThreshold < 0 {
		return ErrInvalidLowStock
	}
	return nil
}

// EffectivePrice is the discounted price when a discount is set, else the
// list price.
func EffectivePrice(listPrice, discount decimal.Decimal) decimal.Decimal {
	if !discount.IsPositive() {
		return listPrice
	}
	return listPrice.Mul(hundred.Sub(discount)).Shift(-2)
}

type Product struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	VendorID   string    `json:"vendor_id"`
	CategoryID string    `json:"category_id,omitempty"`
	Details    Details   `json:"details"`
	State      State     `json:"state"`
	IsDeleted  bool      `json:"is_deleted,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Aggregate interface implementation
func (p *Product) GetID() string    { return p.ID }
func (p *Product) GetVersion() int  { return p.Version }
func (p *Product) SetVersion(v int) { p.Version = v }

func (p *Product) EffectivePrice() decimal.Decimal {
	return EffectivePrice(p.Details.ListPrice, p.Details.DiscountPercentage)
}

// Sellable reports whether the product can be put on an order.
func (p *Product) Sellable() bool {
	return p.State == StatePublished && !p.IsDeleted
}

func (p *Product) record(b *store.Batch, eventType string, data any) error {
	return aggregate.Record(b, p, AggregateType, eventType, data)
}

func (p *Product) ensureActive() error {
	if p.IsDeleted {
		return errors.Wrapf(ErrProductDeleted, "product %s", p.Code)
	}
	return nil
}

type CreateParams struct {
	Code       string
	VendorID   string
	CategoryID string
	Details    Details
}

func Create(b *store.Batch, params CreateParams, at time.Time) (*Product, error) {
	if params.VendorID == "" {
		return nil, ErrMissingVendor
	}
	if err := params.Details.Validate(); err != nil {
		return nil, err
	}

	p := &Product{ID: uuid.New().String()}
	err := p.record(b, EventProductCreated, ProductCreated{
		ProductID:  p.ID,
		Code:       params.Code,
		VendorID:   params.VendorID,
		CategoryID: params.CategoryID,
		Details:    params.Details,
		CreatedAt:  at,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Update(b *store.Batch, d Details, at time.Time) error {
	if err := p.ensureActive(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	return p.record(b, EventProductUpdated, ProductUpdated{ProductID: p.ID, Details: d, UpdatedAt: at})
}

func (p *Product) AssignCategory(b *store.Batch, categoryID string, at time.Time) error {
	if err := p.ensureActive(); err != nil {
		return err
	}
	if categoryID == "" {
		if p.CategoryID == "" {
			return nil
		}
		return p.record(b, EventProductCategoryRemoved, ProductCategoryRemoved{ProductID: p.ID, CategoryID: p.CategoryID, RemovedAt: at})
	}
	return p.record(b, EventProductCategoryAssigned, ProductCategoryAssigned{ProductID: p.ID, CategoryID: categoryID, AssignedAt: at})
}

func (p *Product) transition(b *store.Batch, eventType, reason string, at time.Time) error {
	if err := p.ensureActive(); err != nil {
		return err
	}
	step := workflow[eventType]
	for _, s := range step.from {
		if s == p.State {
			return p.record(b, eventType, ProductStateChanged{ProductID: p.ID, State: step.to, Reason: reason, ChangedAt: at})
		}
	}
	return errors.Wrapf(ErrInvalidState, "product %s is %s, cannot become %s", p.Code, p.State, step.to)
}

func (p *Product) Submit(b *store.Batch, at time.Time) error {
	return p.transition(b, EventProductSubmitted, "", at)
}

func (p *Product) Publish(b *store.Batch, at time.Time) error {
	return p.transition(b, EventProductPublished, "", at)
}

func (p *Product) Reject(b *store.Batch, reason string, at time.Time) error {
	return p.transition(b, EventProductRejected, reason, at)
}

func (p *Product) Unpublish(b *store.Batch, at time.Time) error {
	return p.transition(b, EventProductUnpublished, "", at)
}

// Delete soft-deletes the product. orderCount is the number of orders with a
// line for it.
func (p *Product) Delete(b *store.Batch, orderCount int, at time.Time) error {
	if err := p.ensureActive(); err != nil {
		return err
	}
	if orderCount > 0 {
		return errors.Wrapf(ErrHasOrders, "product %s is on %d orders", p.Code, orderCount)
	}
	return p.record(b, EventProductDeleted, ProductDeleted{ProductID: p.ID, DeletedAt: at})
}

// ApplyEvent applies a single event to the product state
func (p *Product) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var data ProductCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.ProductID
		p.Code = data.Code
		p.VendorID = data.VendorID
		p.CategoryID = data.CategoryID
		p.Details = data.Details
		p.State = StateDraft
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt

	case EventProductUpdated:
		var data ProductUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Details = data.Details
		p.UpdatedAt = data.UpdatedAt

	case EventProductCategoryAssigned:
		var data ProductCategoryAssigned
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.CategoryID = data.CategoryID
		p.UpdatedAt = data.AssignedAt

	case EventProductCategoryRemoved:
		var data ProductCategoryRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.CategoryID = ""
		p.UpdatedAt = data.RemovedAt

	case EventProductSubmitted, EventProductPublished, EventProductRejected, EventProductUnpublished:
		var data ProductStateChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.State = data.State
		p.UpdatedAt = data.ChangedAt

	case EventProductDeleted:
		var data ProductDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.IsDeleted = true
		p.UpdatedAt = data.DeletedAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, productID string) (*Product, error) {
	p, found, err := aggregate.LoadAggregate(ctx, s.eventStore, productID, func() *Product { return &Product{} })
	if err != nil {
		return nil, err
	}
	if !found || p.IsDeleted {
		return nil, errors.Wrapf(ErrProductNotFound, "id %s", productID)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Product, error) {
	b := store.NewBatch()
	p, err := Create(b, params, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return p, nil
}

// Edit loads a product, applies fn and commits the resulting events.
func (s *Service) Edit(ctx context.Context, productID string, fn func(p *Product, b *store.Batch) error) (*Product, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := fn(p, b); err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: p, Type: AggregateType})
	return p, nil
}
