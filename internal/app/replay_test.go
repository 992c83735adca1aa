package app

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/infrastructure/store"
)

func TestReplay_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	es := store.NewEventStore(nil)
	batch := store.NewBatch()
	for i, typ := range []string{"OrderCreated", "OrderLineAdded", "OrderConfirmed"} {
		_, err := batch.Record("order-1", "Order", i, typ, map[string]int{"n": i})
		require.NoError(t, err)
	}
	require.NoError(t, es.Commit(ctx, batch))

	var seen []string
	applied, failed, err := Replay(ctx, es, func(_ context.Context, e store.Event) error {
		seen = append(seen, e.EventType)
		if e.EventType == "OrderLineAdded" {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"OrderCreated", "OrderLineAdded", "OrderConfirmed"}, seen)
}
