package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
)

func validParams() SubmitParams {
	return SubmitParams{
		ProductID:        "prod-1",
		CustomerID:       "cust-1",
		OrderID:          "order-1",
		Rating:           4,
		Title:            "Solid mug",
		VerifiedPurchase: true,
	}
}

func TestService_Submit(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	r, err := service.Submit(context.Background(), validParams())

	require.NoError(t, err)
	assert.Equal(t, StateDraft, r.State)
	assert.Equal(t, 4, r.Rating)
	assert.True(t, r.VerifiedPurchase)
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *SubmitParams)
		wantErr error
	}{
		{"rating zero", func(p *SubmitParams) { p.Rating = 0 }, ErrInvalidRating},
		{"rating six", func(p *SubmitParams) { p.Rating = 6 }, ErrInvalidRating},
		{"no target", func(p *SubmitParams) { p.ProductID = "" }, ErrMissingTarget},
		{"no title", func(p *SubmitParams) { p.Title = "  " }, ErrMissingTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventStore := mocks.NewMockEventStore()
			params := validParams()
			tt.mutate(&params)

			_, err := NewService(eventStore).Submit(context.Background(), params)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domainerr.ErrValidation)
			assert.Empty(t, eventStore.CommitCalls)
		})
	}
}

func TestService_Moderate(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	ctx := context.Background()
	r, err := service.Submit(ctx, validParams())
	require.NoError(t, err)

	published, err := service.Moderate(ctx, r.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, StatePublished, published.State)

	_, err = service.Moderate(ctx, r.ID, false, "spam")
	assert.ErrorIs(t, err, ErrNotDraft)
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	_, err = service.Moderate(ctx, "missing", true, "")
	assert.ErrorIs(t, err, ErrReviewNotFound)

	assert.Equal(t, []string{EventReviewSubmitted, EventReviewPublished}, eventStore.CommittedTypes())
}

func TestService_Reject(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	ctx := context.Background()
	r, err := service.Submit(ctx, validParams())
	require.NoError(t, err)

	rejected, err := service.Moderate(ctx, r.ID, false, "off-topic")

	require.NoError(t, err)
	assert.Equal(t, StateRejected, rejected.State)
}
