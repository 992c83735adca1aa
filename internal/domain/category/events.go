package category

import "time"

const (
	EventCategoryCreated = "CategoryCreated"
	EventCategoryUpdated = "CategoryUpdated"
	EventCategoryDeleted = "CategoryDeleted"
)

// Fields are the editable attributes of a category.
type Fields struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id,omitempty"`
	Sequence    int    `json:"sequence"`
	Active      bool   `json:"active"`
}

type CategoryCreated struct {
	CategoryID string    `json:"category_id"`
	Fields     Fields    `json:"fields"`
	CreatedAt  time.Time `json:"created_at"`
}

// CategoryUpdated carries the full field set, not a diff.
type CategoryUpdated struct {
	CategoryID string    `json:"category_id"`
	Fields     Fields    `json:"fields"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CategoryDeleted struct {
	CategoryID string    `json:"category_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}
