package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "event-store")

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// EventStore keeps events in memory and publishes them after each commit
type EventStore struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	log       []Event            // commit order, used for replay
	snapshots map[string]Snapshot
	publisher Publisher
}

func NewEventStore(publisher Publisher) *EventStore {
	return &EventStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string]Snapshot),
		publisher: publisher,
	}
}

// SetPublisher replaces the publisher used after commit.
func (es *EventStore) SetPublisher(p Publisher) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.publisher = p
}

func (es *EventStore) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	es.mu.Lock()
	err := batch.checkVersions(func(id string) (int, error) {
		return len(es.events[id]), nil
	})
	if err != nil {
		es.mu.Unlock()
		return err
	}
	for _, e := range batch.Events() {
		es.events[e.AggregateID] = append(es.events[e.AggregateID], e)
		es.log = append(es.log, e)
	}
	publisher := es.publisher
	es.mu.Unlock()

	publishAll(ctx, publisher, batch.Events())
	return nil
}

func (es *EventStore) GetEvents(_ context.Context, aggregateID string) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return append([]Event(nil), es.events[aggregateID]...), nil
}

func (es *EventStore) GetEventsFromVersion(_ context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var events []Event
	for _, e := range es.events[aggregateID] {
		if e.Version > fromVersion {
			events = append(events, e)
		}
	}
	return events, nil
}

// GetAllEvents returns every event in commit order
func (es *EventStore) GetAllEvents(_ context.Context) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return append([]Event(nil), es.log...), nil
}

func (es *EventStore) GetSnapshot(_ context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	s, ok := es.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (es *EventStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.snapshots[snapshot.AggregateID] = *snapshot
	return nil
}

// publishAll forwards committed events. The events are already durable, so a
// failed publish is logged and left for replay.
func publishAll(ctx context.Context, p Publisher, events []Event) {
	if p == nil {
		return
	}
	for _, e := range events {
		if err := p.Publish(ctx, e.AggregateID, e); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"event_type":   e.EventType,
				"aggregate_id": e.AggregateID,
			}).Error("publish failed")
		}
	}
}
