package pipeline

import (
	"fmt"

	"nexusops/internal/store"
)

// AuditResult reports whether a labeled item needs reviewer attention.
type AuditResult struct {
	FlagForReview bool
	Comment       string
}

// Audit compares an item's human label against its prediction and flags
// disagreements for review. Items without both labels are never flagged.
func Audit(item store.WorkItem) AuditResult {
	if item.HumanLabel == nil || item.Prediction == nil {
		return AuditResult{Comment: "insufficient data"}
	}
	if item.HumanLabel.Label != item.Prediction.Label {
		return AuditResult{
			FlagForReview: true,
			Comment: fmt.Sprintf("disagreement detected: predicted %s (%.2f), human %s",
				item.Prediction.Label, item.Prediction.Confidence, item.HumanLabel.Label),
		}
	}
	return AuditResult{Comment: "consensus reached"}
}
