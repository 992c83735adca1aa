package store

import "context"

// PublishingStore adds post-commit publishing to a store that has none of its
// own, such as DynamoEventStore outside of a stream-driven deployment.
type PublishingStore struct {
	EventStoreInterface
	publisher Publisher
}

func WithPublisher(es EventStoreInterface, publisher Publisher) *PublishingStore {
	return &PublishingStore{EventStoreInterface: es, publisher: publisher}
}

func (s *PublishingStore) Commit(ctx context.Context, batch *Batch) error {
	if err := s.EventStoreInterface.Commit(ctx, batch); err != nil {
		return err
	}
	publishAll(ctx, s.publisher, batch.Events())
	return nil
}
