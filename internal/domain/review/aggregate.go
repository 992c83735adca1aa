package review

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Review"

const (
	MinRating = 1
	MaxRating = 5
)

type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateRejected  State = "rejected"
)

var (
	ErrReviewNotFound = errors.Wrap(domainerr.ErrNotFound, "review")
	ErrInvalidRating  = errors.Wrap(domainerr.ErrValidation, "rating must be between 1 and 5")
	ErrMissingTarget  = errors.Wrap(domainerr.ErrValidation, "review needs a product or a vendor")
	ErrMissingTitle   = errors.Wrap(domainerr.ErrValidation, "review title is required")
	ErrNotDraft       = errors.Wrap(domainerr.ErrInvalidTransition, "review has already been moderated")
)

type Review struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id,omitempty"`
	VendorID         string    `json:"vendor_id,omitempty"`
	CustomerID       string    `json:"customer_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title"`
	Comment          string    `json:"comment,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	State            State     `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int       `json:"version"`
}

// Aggregate interface implementation
func (r *Review) GetID() string    { return r.ID }
func (r *Review) GetVersion() int  { return r.Version }
func (r *Review) SetVersion(v int) { r.Version = v }

type SubmitParams struct {
	ProductID  string
	VendorID   string
	CustomerID string
	OrderID    string
	Rating     int
	Title      string
	Comment    string
	// VerifiedPurchase is decided by the caller from the order.
	VerifiedPurchase bool
}

func Submit(b *store.Batch, p SubmitParams, at time.Time) (*Review, error) {
	if p.ProductID == "" && p.VendorID == "" {
		return nil, ErrMissingTarget
	}
	if p.Rating < MinRating || p.Rating > MaxRating {
		return nil, errors.Wrapf(ErrInvalidRating, "got %d", p.Rating)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrMissingTitle
	}

	r := &Review{ID: uuid.New().String()}
	err := aggregate.Record(b, r, AggregateType, EventReviewSubmitted, ReviewSubmitted{
		ReviewID:         r.ID,
		ProductID:        p.ProductID,
		VendorID:         p.VendorID,
		CustomerID:       p.CustomerID,
		OrderID:          p.OrderID,
		Rating:           p.Rating,
		Title:            p.Title,
		Comment:          p.Comment,
		VerifiedPurchase: p.VerifiedPurchase,
		SubmittedAt:      at,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Review) moderate(b *store.Batch, eventType, reason string, at time.Time) error {
	if r.State != StateDraft {
		return errors.Wrapf(ErrNotDraft, "review %s is %s", r.ID, r.State)
	}
	return aggregate.Record(b, r, AggregateType, eventType, ReviewModerated{
		ReviewID:    r.ID,
		ProductID:   r.ProductID,
		VendorID:    r.VendorID,
		Rating:      r.Rating,
		Reason:      reason,
		ModeratedAt: at,
	})
}

func (r *Review) Publish(b *store.Batch, at time.Time) error {
	return r.moderate(b, EventReviewPublished, "", at)
}

func (r *Review) Reject(b *store.Batch, reason string, at time.Time) error {
	return r.moderate(b, EventReviewRejected, reason, at)
}

// ApplyEvent applies a single event to the review state
func (r *Review) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventReviewSubmitted:
		var data ReviewSubmitted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.ID = data.ReviewID
		r.ProductID = data.ProductID
		r.VendorID = data.VendorID
		r.CustomerID = data.CustomerID
		r.OrderID = data.OrderID
		r.Rating = data.Rating
		r.Title = data.Title
		r.Comment = data.Comment
		r.VerifiedPurchase = data.VerifiedPurchase
		r.State = StateDraft
		r.CreatedAt = data.SubmittedAt
		r.UpdatedAt = data.SubmittedAt
	case EventReviewPublished, EventReviewRejected:
		var data ReviewModerated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.State = StatePublished
		if event.EventType == EventReviewRejected {
			r.State = StateRejected
		}
		r.UpdatedAt = data.ModeratedAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, id string) (*Review, error) {
	r, found, err := aggregate.LoadAggregate(ctx, s.eventStore, id, func() *Review { return &Review{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrReviewNotFound, "id %s", id)
	}
	return r, nil
}

func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Review, error) {
	b := store.NewBatch()
	r, err := Submit(b, p, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return r, nil
}

// Moderate publishes the review, or rejects it when publish is false.
func (s *Service) Moderate(ctx context.Context, id string, publish bool, reason string) (*Review, error) {
	r, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if publish {
		err = r.Publish(b, time.Now().UTC())
	} else {
		err = r.Reject(b, reason, time.Now().UTC())
	}
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return r, nil
}
