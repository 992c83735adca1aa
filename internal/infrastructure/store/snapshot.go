package store

import (
	"encoding/json"
	"time"
)

// SnapshotThreshold is the version interval between snapshots.
const SnapshotThreshold = 10

// Snapshot is the JSON state of an aggregate as of Version. Loading applies
// only the events after it.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotDue reports whether an aggregate at version should be snapshotted.
func SnapshotDue(version int) bool {
	return version > 0 && version%SnapshotThreshold == 0
}
