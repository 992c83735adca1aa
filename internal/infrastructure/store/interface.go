package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/domainerr"
)

// ErrVersionConflict is returned by Commit when an aggregate in the batch was
// modified after it was loaded.
var ErrVersionConflict = errors.Wrap(domainerr.ErrConflict, "aggregate version conflict")

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	// Commit appends every event of the batch atomically. Each event must land on
	// exactly the version recorded in the batch, otherwise nothing is written and
	// ErrVersionConflict is returned.
	Commit(ctx context.Context, batch *Batch) error
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// Publisher fans committed events out to consumers (Kafka, inline projector).
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
