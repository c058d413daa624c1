package pipeline

import (
	"context"

	"nexusops/internal/store"
)

// Predictor produces a label suggestion for one work item.
type Predictor interface {
	Predict(ctx context.Context, item store.WorkItem, project store.Project) (store.Prediction, error)
}

// Observer receives store snapshots as a run makes progress. Implementations
// must not block; the runner calls them synchronously between items.
type Observer interface {
	SnapshotUpdated(store.Snapshot)
}
