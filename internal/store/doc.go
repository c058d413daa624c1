// Package store owns all project and work item records for the lifetime of
// the process and exposes the lifecycle helpers the workflows drive.
//
// The Store hands out consistent snapshots, applies atomic patches to
// existing items, and appends whole new batches. Workflows hold no private
// copies; they snapshot, compute, and merge back through ApplyPatch or the
// append operations. No record is ever deleted.
//
// Treat this package as the single source of truth for item lifecycle
// semantics; new statuses or fields belong in models.go and schema.go.
package store
