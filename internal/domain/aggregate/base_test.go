package aggregate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/infrastructure/store"
)

type counter struct {
	ID      string `json:"id"`
	Count   int    `json:"count"`
	Version int    `json:"version"`
}

func (c *counter) GetID() string    { return c.ID }
func (c *counter) GetVersion() int  { return c.Version }
func (c *counter) SetVersion(v int) { c.Version = v }
func (c *counter) ApplyEvent(e store.Event) error {
	var data struct {
		By int `json:"by"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return err
	}
	c.ID = e.AggregateID
	c.Count += data.By
	return nil
}

func incrementN(t *testing.T, es store.EventStoreInterface, c *counter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		b := store.NewBatch()
		require.NoError(t, Record(b, c, "Counter", "Incremented", map[string]int{"by": 1}))
		require.NoError(t, es.Commit(context.Background(), b))
		require.NoError(t, MaybeCreateSnapshot(context.Background(), es, c, "Counter"))
	}
}

func TestRecord_AppliesAndAdvancesVersion(t *testing.T) {
	c := &counter{ID: "c-1"}
	b := store.NewBatch()

	require.NoError(t, Record(b, c, "Counter", "Incremented", map[string]int{"by": 3}))
	require.NoError(t, Record(b, c, "Counter", "Incremented", map[string]int{"by": 2}))

	assert.Equal(t, 5, c.Count)
	assert.Equal(t, 2, c.Version)
	assert.Equal(t, 2, b.Events()[1].Version)
}

func TestLoadAggregate_ReplaysEvents(t *testing.T) {
	es := store.NewEventStore(nil)
	incrementN(t, es, &counter{ID: "c-1"}, 3)

	loaded, found, err := LoadAggregate(context.Background(), es, "c-1", func() *counter { return &counter{} })

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, loaded.Count)
	assert.Equal(t, 3, loaded.Version)
}

func TestLoadAggregate_NotFound(t *testing.T) {
	es := store.NewEventStore(nil)

	_, found, err := LoadAggregate(context.Background(), es, "missing", func() *counter { return &counter{} })

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadAggregate_UsesSnapshotThenNewerEvents(t *testing.T) {
	ctx := context.Background()
	es := store.NewEventStore(nil)
	incrementN(t, es, &counter{ID: "c-1"}, store.SnapshotThreshold+2)

	snap, err := es.GetSnapshot(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, store.SnapshotThreshold, snap.Version)

	loaded, found, err := LoadAggregate(ctx, es, "c-1", func() *counter { return &counter{} })

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, store.SnapshotThreshold+2, loaded.Count)
	assert.Equal(t, store.SnapshotThreshold+2, loaded.Version)
}

func TestMaybeCreateSnapshot_BelowThreshold(t *testing.T) {
	ctx := context.Background()
	es := store.NewEventStore(nil)

	require.NoError(t, MaybeCreateSnapshot(ctx, es, &counter{ID: "c-1", Version: 3}, "Counter"))

	snap, err := es.GetSnapshot(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
