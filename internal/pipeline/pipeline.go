package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nexusops/internal/logging"
	"nexusops/internal/store"
)

// Stage identifies the phase a run is currently in.
type Stage string

const (
	StageIntake   Stage = "intake"
	StagePreLabel Stage = "prelabel"
	StageRouting  Stage = "routing"
)

// RunState is a read-only view of the runner's ephemeral state.
type RunState struct {
	Processing bool
	Stage      Stage // empty when idle
	LastError  string
}

// Runner coordinates batch processing of pending work items.
type Runner struct {
	store     *store.Store
	predictor Predictor
	feed      *logging.Feed
	logger    *slog.Logger
	observer  Observer

	mu         sync.Mutex
	processing bool
	stage      Stage
	lastErr    string
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithObserver wires a snapshot observer that receives incremental progress.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// NewRunner constructs a batch pipeline runner.
func NewRunner(st *store.Store, predictor Predictor, feed *logging.Feed, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		store:     st,
		predictor: predictor,
		feed:      feed,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// State returns the current run state.
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunState{Processing: r.processing, Stage: r.stage, LastError: r.lastErr}
}

// Feed returns the runner's progress feed for cross-reporting and observers.
func (r *Runner) Feed() *logging.Feed {
	return r.feed
}

// Run executes one batch: intake, pre-label, routing. Invoking Run while a
// run is in flight is a no-op. Processing flags are cleared on every exit
// path; a fatal error is recorded in the run state and returned.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.processing {
		r.mu.Unlock()
		r.logger.Warn("batch trigger ignored; run already in flight")
		return nil
	}
	r.processing = true
	r.stage = StageIntake
	r.lastErr = ""
	r.mu.Unlock()

	err := r.run(ctx)

	r.mu.Lock()
	r.processing = false
	r.stage = ""
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		r.feed.Appendf("[system] critical workflow error: %v", err)
		r.logger.Error("batch workflow failed", logging.Error(err))
	}
	return err
}

func (r *Runner) run(ctx context.Context) error {
	r.feed.Append("[system] starting batch workflow")

	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("intake snapshot: %w", err)
	}
	pending := snap.PendingItems()
	if len(pending) == 0 {
		r.feed.Append("[intake] no pending items found")
		r.logger.Info("no pending items; run complete")
		return nil
	}

	batchID := fmt.Sprintf("BATCH-%04d", time.Now().Unix()%10000)
	r.feed.Appendf("[intake] found %d pending items, assigned %s", len(pending), batchID)
	r.logger.Info("intake complete",
		logging.Int("pending", len(pending)),
		logging.String("batch", batchID),
	)

	r.setStage(StagePreLabel)
	for _, item := range pending {
		r.preLabelItem(ctx, snap, item)
		r.publishSnapshot(ctx)
	}

	r.setStage(StageRouting)
	r.feed.Appendf("[routing] %d items handed to the worker queue", len(pending))
	r.logger.Info("routing complete", logging.String("batch", batchID))

	r.feed.Append("[system] batch complete")
	return nil
}

// preLabelItem resolves one item. Per-item failures are logged and swallowed
// so a single bad item never blocks its siblings; the item stays pending.
func (r *Runner) preLabelItem(ctx context.Context, snap store.Snapshot, item store.WorkItem) {
	project, ok := snap.Project(item.ProjectID)
	if !ok {
		r.feed.Appendf("[prelabel] item %s references unknown project %s, skipped", item.ID, item.ProjectID)
		r.logger.Warn("skipping item without project",
			logging.String("item", item.ID),
			logging.String("project", item.ProjectID),
		)
		return
	}

	prediction, err := r.predictor.Predict(ctx, item, project)
	if err != nil {
		r.feed.Appendf("[prelabel] item %s failed: %v", item.ID, err)
		r.logger.Warn("prediction failed; item left pending",
			logging.String("item", item.ID),
			logging.Error(err),
		)
		return
	}

	status := store.StatusReadyForHuman
	if _, err := r.store.ApplyPatch(ctx, item.ID, store.Patch{Status: &status, Prediction: &prediction}); err != nil {
		r.feed.Appendf("[prelabel] item %s failed: %v", item.ID, err)
		r.logger.Warn("failed to persist prediction; item left pending",
			logging.String("item", item.ID),
			logging.Error(err),
		)
		return
	}
	r.feed.Appendf("[prelabel] item %s -> %s (%.0f%%)", item.ID, prediction.Label, prediction.Confidence*100)
	r.logger.Info("item pre-labeled",
		logging.String("item", item.ID),
		logging.String("label", prediction.Label),
		logging.Float64("confidence", prediction.Confidence),
	)
}

func (r *Runner) setStage(stage Stage) {
	r.mu.Lock()
	r.stage = stage
	r.mu.Unlock()
}

func (r *Runner) publishSnapshot(ctx context.Context) {
	if r.observer == nil {
		return
	}
	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		r.logger.Warn("snapshot publish failed", logging.Error(err))
		return
	}
	r.observer.SnapshotUpdated(snap)
}
