package app

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/infrastructure/store"
)

// Replay feeds every stored event, in commit order, to apply. Events that fail
// are counted and logged; replay carries on with the rest.
func Replay(ctx context.Context, es store.EventStoreInterface, apply func(context.Context, store.Event) error) (applied, failed int, err error) {
	events, err := es.GetAllEvents(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "load events")
	}
	logger.WithField("events", len(events)).Info("replaying events")

	for _, e := range events {
		if ctx.Err() != nil {
			return applied, failed, ctx.Err()
		}
		if err := apply(ctx, e); err != nil {
			failed++
			logger.WithError(err).WithField("event_id", e.ID).Warn("replay failed")
			continue
		}
		applied++
	}
	logger.WithField("applied", applied).WithField("failed", failed).Info("replay completed")
	return applied, failed, nil
}
