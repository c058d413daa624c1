// Package pipeline drives a batch of pending work items through the
// intake, pre-label, and routing stages.
//
// The Runner takes a snapshot at intake time, calls the prediction capability
// for each pending item strictly in snapshot order, and merges results back
// through the store one item at a time so observers see incremental progress.
// A single item's failure never aborts the batch; the item stays pending and
// is eligible for the next run. At most one run is in flight at a time;
// re-entry while processing is a logged no-op.
package pipeline
