package category

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/infrastructure/store"
)

const AggregateType = "Category"

var (
	ErrCategoryNotFound = errors.Wrap(domainerr.ErrNotFound, "category")
	ErrInvalidName      = errors.Wrap(domainerr.ErrValidation, "name is required")
	ErrInvalidSlug      = errors.Wrap(domainerr.ErrValidation, "invalid slug format")
	ErrRecursive        = errors.Wrap(domainerr.ErrValidation, "category cannot be its own ancestor")
)

// slugRegex validates slug format (lowercase letters, numbers, hyphens)
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes       = regexp.MustCompile(`-+`)
)

// Category represents a product category
type Category struct {
	ID        string    `json:"id"`
	Fields    Fields    `json:"fields"`
	IsDeleted bool      `json:"is_deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Aggregate interface implementation
func (c *Category) GetID() string    { return c.ID }
func (c *Category) GetVersion() int  { return c.Version }
func (c *Category) SetVersion(v int) { c.Version = v }

// normalize fills the slug from the name and validates the result.
func (f Fields) normalize() (Fields, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return f, ErrInvalidName
	}
	// Generate slug from name if not provided
	if f.Slug == "" {
		f.Slug = generateSlug(f.Name)
	}
	if !slugRegex.MatchString(f.Slug) {
		return f, errors.Wrapf(ErrInvalidSlug, "%q", f.Slug)
	}
	return f, nil
}

// ApplyEvent applies a single event to the category state
func (c *Category) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventCategoryCreated:
		var data CategoryCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CategoryID
		c.Fields = data.Fields
		c.CreatedAt = data.CreatedAt
		c.UpdatedAt = data.CreatedAt
	case EventCategoryUpdated:
		var data CategoryUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.Fields = data.Fields
		c.UpdatedAt = data.UpdatedAt
	case EventCategoryDeleted:
		var data CategoryDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.IsDeleted = true
		c.UpdatedAt = data.DeletedAt
	}
	return nil
}

// Service handles category domain operations
type Service struct {
	eventStore store.EventStoreInterface
}

// NewService creates a new category service
func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Load(ctx context.Context, categoryID string) (*Category, error) {
	c, found, err := aggregate.LoadAggregate(ctx, s.eventStore, categoryID, func() *Category { return &Category{} })
	if err != nil {
		return nil, err
	}
	if !found || c.IsDeleted {
		return nil, errors.Wrapf(ErrCategoryNotFound, "id %s", categoryID)
	}
	return c, nil
}

// checkParent walks up from parentID and fails if categoryID is reached.
func (s *Service) checkParent(ctx context.Context, categoryID, parentID string) error {
	seen := make(map[string]bool)
	for id := parentID; id != ""; {
		if id == categoryID || seen[id] {
			return errors.Wrapf(ErrRecursive, "category %s", categoryID)
		}
		seen[id] = true
		parent, err := s.Load(ctx, id)
		if err != nil {
			return errors.Wrap(err, "parent")
		}
		id = parent.Fields.ParentID
	}
	return nil
}

// Create creates a new category
func (s *Service) Create(ctx context.Context, f Fields) (*Category, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, "", f.ParentID); err != nil {
		return nil, err
	}

	c := &Category{ID: uuid.New().String()}
	b := store.NewBatch()
	err = aggregate.Record(b, c, AggregateType, EventCategoryCreated, CategoryCreated{
		CategoryID: c.ID,
		Fields:     f,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the category fields; re-parenting under a descendant is rejected.
func (s *Service) Update(ctx context.Context, categoryID string, f Fields) (*Category, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	c, err := s.Load(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, categoryID, f.ParentID); err != nil {
		return nil, err
	}

	b := store.NewBatch()
	err = aggregate.Record(b, c, AggregateType, EventCategoryUpdated, CategoryUpdated{
		CategoryID: categoryID,
		Fields:     f,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.Commit(ctx, b); err != nil {
		return nil, err
	}
	aggregate.SnapshotAll(ctx, s.eventStore, aggregate.Snapshotter{Aggregate: c, Type: AggregateType})
	return c, nil
}

// Delete deletes a category
func (s *Service) Delete(ctx context.Context, categoryID string) error {
	c, err := s.Load(ctx, categoryID)
	if err != nil {
		return err
	}
	b := store.NewBatch()
	err = aggregate.Record(b, c, AggregateType, EventCategoryDeleted, CategoryDeleted{
		CategoryID: categoryID,
		DeletedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.eventStore.Commit(ctx, b)
}

// generateSlug creates a URL-friendly slug from a name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
