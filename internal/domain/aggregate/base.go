package aggregate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/infrastructure/store"
)

// Aggregate defines the interface for event-sourced aggregates
type Aggregate interface {
	GetID() string
	GetVersion() int
	SetVersion(int)
	ApplyEvent(store.Event) error
}

// Record queues an event for agg in the batch and applies it immediately, so
// the in-memory aggregate always reflects what the batch will commit.
func Record(b *store.Batch, agg Aggregate, aggregateType, eventType string, data any) error {
	event, err := b.Record(agg.GetID(), aggregateType, agg.GetVersion(), eventType, data)
	if err != nil {
		return err
	}
	if err := agg.ApplyEvent(event); err != nil {
		return errors.Wrapf(err, "apply %s", eventType)
	}
	agg.SetVersion(event.Version)
	return nil
}

// LoadAggregate loads an aggregate by replaying events, using snapshot if available
// Returns the aggregate, a boolean indicating if data was found, and any error
func LoadAggregate[T Aggregate](
	ctx context.Context,
	eventStore store.EventStoreInterface,
	id string,
	newAggregate func() T,
) (T, bool, error) {
	var zero T
	agg := newAggregate()

	snapshot, err := eventStore.GetSnapshot(ctx, id)
	if err != nil {
		return zero, false, errors.Wrap(err, "get snapshot")
	}

	var events []store.Event
	if snapshot != nil {
		if err := json.Unmarshal(snapshot.State, agg); err != nil {
			return zero, false, errors.Wrap(err, "unmarshal snapshot")
		}
		agg.SetVersion(snapshot.Version)
		events, err = eventStore.GetEventsFromVersion(ctx, id, snapshot.Version)
	} else {
		events, err = eventStore.GetEvents(ctx, id)
	}
	if err != nil {
		return zero, false, errors.Wrap(err, "load events")
	}

	for _, event := range events {
		if err := agg.ApplyEvent(event); err != nil {
			return zero, false, errors.Wrapf(err, "apply %s", event.EventType)
		}
		agg.SetVersion(event.Version)
	}

	return agg, snapshot != nil || len(events) > 0, nil
}

// MaybeCreateSnapshot creates a snapshot if the threshold is exceeded
func MaybeCreateSnapshot(
	ctx context.Context,
	eventStore store.EventStoreInterface,
	agg Aggregate,
	aggregateType string,
) error {
	version := agg.GetVersion()
	if !store.SnapshotDue(version) {
		return nil
	}

	state, err := json.Marshal(agg)
	if err != nil {
		return errors.Wrap(err, "marshal aggregate state")
	}

	return errors.Wrap(eventStore.SaveSnapshot(ctx, &store.Snapshot{
		AggregateID:   agg.GetID(),
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		CreatedAt:     time.Now().UTC(),
	}), "save snapshot")
}

// Snapshotter pairs an aggregate with its type name for SnapshotAll.
type Snapshotter struct {
	Aggregate Aggregate
	Type      string
}

// SnapshotAll snapshots every aggregate touched by a committed batch.
// Snapshots are an optimisation, so failures are only logged.
func SnapshotAll(ctx context.Context, eventStore store.EventStoreInterface, aggs ...Snapshotter) {
	for _, s := range aggs {
		if err := MaybeCreateSnapshot(ctx, eventStore, s.Aggregate, s.Type); err != nil {
			log.WithField("component", "aggregate").WithError(err).
				Warnf("snapshot %s %s", s.Type, s.Aggregate.GetID())
		}
	}
}
