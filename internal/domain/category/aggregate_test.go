package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store/mocks"
)

func newTestCategoryService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	return service, eventStore
}

// ============================================
// Slug Generation Tests
// ============================================

func TestGenerateSlug_Various(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectedSlug string
	}{
		{"simple name", "Electronics", "electronics"},
		{"with spaces", "Home & Garden", "home-garden"},
		{"with underscores", "Sports_Equipment", "sports-equipment"},
		{"multiple spaces", "Men's   Clothing", "mens-clothing"},
		{"with numbers", "Category 123", "category-123"},
		{"special characters", "Books & Movies!", "books-movies"},
		{"leading/trailing spaces", "  Toys  ", "toys"},
		{"unicode characters", "日本語", ""},
		{"mixed unicode and ascii", "カテゴリー Category", "category"},
		{"multiple hyphens", "Multi---Hyphen", "multi-hyphen"},
		{"uppercase", "UPPERCASE", "uppercase"},
		{"already lowercase", "lowercase", "lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := generateSlug(tt.input)
			assert.Equal(t, tt.expectedSlug, result)
		})
	}
}

// ============================================
// Create Category Tests
// ============================================

func TestService_Create_ValidCategory(t *testing.T) {
	service, eventStore := newTestCategoryService()
	ctx := context.Background()

	category, err := service.Create(ctx, Fields{Name: "Electronics", Slug: "electronics", Description: "Electronic devices", Sequence: 1, Active: true})

	require.NoError(t, err)
	assert.NotEmpty(t, category.ID)
	assert.Equal(t, "Electronics", category.Fields.Name)
	assert.Equal(t, "electronics", category.Fields.Slug)
	assert.Empty(t, category.Fields.ParentID)
	assert.Equal(t, 1, category.Version)

	// Verify event was stored
	require.Len(t, eventStore.CommitCalls, 1)
	assert.Equal(t, EventCategoryCreated, eventStore.CommitCalls[0][0].EventType)
	assert.Equal(t, AggregateType, eventStore.CommitCalls[0][0].AggregateType)
}

func TestService_Create_WithParent(t *testing.T) {
	service, _ := newTestCategoryService()
	ctx := context.Background()
	parent, err := service.Create(ctx, Fields{Name: "Electronics"})
	require.NoError(t, err)

	category, err := service.Create(ctx, Fields{Name: "Smartphones", ParentID: parent.ID})

	require.NoError(t, err)
	assert.Equal(t, parent.ID, category.Fields.ParentID)
}

func TestService_Create_UnknownParent(t *testing.T) {
	service, eventStore := newTestCategoryService()

	_, err := service.Create(context.Background(), Fields{Name: "Smartphones", ParentID: "parent-123"})

	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.Empty(t, eventStore.CommitCalls)
}

func TestService_Create_AutoGenerateSlug(t *testing.T) {
	service, _ := newTestCategoryService()

	// Empty slug should be auto-generated
	category, err := service.Create(context.Background(), Fields{Name: "Home & Garden"})

	require.NoError(t, err)
	assert.Equal(t, "home-garden", category.Fields.Slug)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		fields  Fields
		wantErr error
	}{
		{"empty name", Fields{Slug: "slug"}, ErrInvalidName},
		{"blank name", Fields{Name: "   "}, ErrInvalidName},
		{"invalid slug", Fields{Name: "Name", Slug: "Invalid Slug!"}, ErrInvalidSlug},
		{"unicode only name", Fields{Name: "日本語"}, ErrInvalidSlug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore := newTestCategoryService()

			category, err := service.Create(context.Background(), tt.fields)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domainerr.ErrValidation)
			assert.Nil(t, category)
			assert.Empty(t, eventStore.CommitCalls)
		})
	}
}

// ============================================
// Update Category Tests
// ============================================

func TestService_Update_Success(t *testing.T) {
	service, _ := newTestCategoryService()
	ctx := context.Background()
	category, err := service.Create(ctx, Fields{Name: "Books"})
	require.NoError(t, err)

	updated, err := service.Update(ctx, category.ID, Fields{Name: "Books & Movies", Sequence: 3})

	require.NoError(t, err)
	assert.Equal(t, "books-movies", updated.Fields.Slug)
	assert.Equal(t, 3, updated.Fields.Sequence)
	assert.Equal(t, 2, updated.Version)
}

func TestService_Update_RejectsCycle(t *testing.T) {
	service, eventStore := newTestCategoryService()
	ctx := context.Background()
	root, err := service.Create(ctx, Fields{Name: "Root"})
	require.NoError(t, err)
	child, err := service.Create(ctx, Fields{Name: "Child", ParentID: root.ID})
	require.NoError(t, err)
	grandchild, err := service.Create(ctx, Fields{Name: "Grandchild", ParentID: child.ID})
	require.NoError(t, err)
	eventStore.Reset()

	_, err = service.Update(ctx, root.ID, Fields{Name: "Root", ParentID: grandchild.ID})
	assert.ErrorIs(t, err, ErrRecursive)

	_, err = service.Update(ctx, root.ID, Fields{Name: "Root", ParentID: root.ID})
	assert.ErrorIs(t, err, ErrRecursive)
	assert.Empty(t, eventStore.CommitCalls)
}

func TestService_Update_NotFound(t *testing.T) {
	service, _ := newTestCategoryService()

	_, err := service.Update(context.Background(), "non-existent", Fields{Name: "Name"})

	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

// ============================================
// Delete Category Tests
// ============================================

func TestService_Delete(t *testing.T) {
	service, _ := newTestCategoryService()
	ctx := context.Background()
	category, err := service.Create(ctx, Fields{Name: "Toys"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, category.ID))

	_, err = service.Load(ctx, category.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.ErrorIs(t, service.Delete(ctx, category.ID), ErrCategoryNotFound)
}
