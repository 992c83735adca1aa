package mocks

import (
	"context"
	"sync"

	"github.com/example/marketplace/internal/infrastructure/store"
)

// MockEventStore wraps the in-memory event store and records commits for assertions.
type MockEventStore struct {
	*store.EventStore

	mu sync.Mutex

	// For tracking calls in tests
	CommitCalls    [][]store.Event
	CommitErr      error
	CommitCallback func(ctx context.Context, batch *store.Batch) error
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{EventStore: store.NewEventStore(nil)}
}

// Commit records the batch, then fails with CommitErr or delegates to the
// callback or the embedded store.
func (m *MockEventStore) Commit(ctx context.Context, batch *store.Batch) error {
	m.mu.Lock()
	m.CommitCalls = append(m.CommitCalls, append([]store.Event(nil), batch.Events()...))
	callback, commitErr := m.CommitCallback, m.CommitErr
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, batch)
	}
	if commitErr != nil {
		return commitErr
	}
	return m.EventStore.Commit(ctx, batch)
}

// CommittedTypes returns the event types of every recorded commit, in order.
func (m *MockEventStore) CommittedTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var types []string
	for _, events := range m.CommitCalls {
		for _, e := range events {
			types = append(types, e.EventType)
		}
	}
	return types
}

// AddEvent seeds an event for an aggregate without recording a commit call.
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	ctx := context.Background()
	existing, err := m.EventStore.GetEvents(ctx, aggregateID)
	if err != nil {
		return err
	}
	batch := store.NewBatch()
	if _, err := batch.Record(aggregateID, aggregateType, len(existing), eventType, data); err != nil {
		return err
	}
	return m.EventStore.Commit(ctx, batch)
}

// Reset clears recorded calls and injected failures
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls = nil
	m.CommitErr = nil
	m.CommitCallback = nil
}
