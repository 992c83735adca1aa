package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Batch is a unit of work: the events of one or more aggregates that must be
// committed together.
type Batch struct {
	events []Event
}

func NewBatch() *Batch {
	return &Batch{}
}

// Record builds the event moving aggregateID from version to version+1 and
// queues it. The returned event can be applied to the in-memory aggregate
// right away.
func (b *Batch) Record(aggregateID, aggregateType string, version int, eventType string, data any) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, errors.Wrapf(err, "marshal %s", eventType)
	}

	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          payload,
		Timestamp:     time.Now().UTC(),
		Version:       version + 1,
	}
	b.events = append(b.events, event)
	return event, nil
}

// Events returns the queued events in recording order.
func (b *Batch) Events() []Event {
	return b.events
}

func (b *Batch) Len() int {
	return len(b.events)
}

// checkVersions verifies the batch against the current head version of each
// aggregate. head reports the committed version of an aggregate.
func (b *Batch) checkVersions(head func(aggregateID string) (int, error)) error {
	next := make(map[string]int)
	for _, e := range b.events {
		current, ok := next[e.AggregateID]
		if !ok {
			v, err := head(e.AggregateID)
			if err != nil {
				return err
			}
			current = v
		}
		if e.Version != current+1 {
			return errors.Wrapf(ErrVersionConflict, "%s %s is at version %d, batch expects %d",
				e.AggregateType, e.AggregateID, current, e.Version-1)
		}
		next[e.AggregateID] = e.Version
	}
	return nil
}
