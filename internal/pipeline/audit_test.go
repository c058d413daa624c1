package pipeline_test

import (
	"strings"
	"testing"

	"nexusops/internal/pipeline"
	"nexusops/internal/store"
)

func TestAuditConsensus(t *testing.T) {
	result := pipeline.Audit(store.WorkItem{
		Prediction: &store.Prediction{Label: "Positive", Confidence: 0.9},
		HumanLabel: &store.HumanLabel{Label: "Positive"},
	})
	if result.FlagForReview {
		t.Fatal("matching labels should not be flagged")
	}
	if result.Comment != "consensus reached" {
		t.Fatalf("unexpected comment: %q", result.Comment)
	}
}

func TestAuditDisagreement(t *testing.T) {
	result := pipeline.Audit(store.WorkItem{
		Prediction: &store.Prediction{Label: "Positive", Confidence: 0.42},
		HumanLabel: &store.HumanLabel{Label: "Negative"},
	})
	if !result.FlagForReview {
		t.Fatal("disagreement should be flagged for review")
	}
	if !strings.Contains(result.Comment, "Positive") || !strings.Contains(result.Comment, "Negative") {
		t.Fatalf("comment should name both labels: %q", result.Comment)
	}
}

func TestAuditInsufficientData(t *testing.T) {
	cases := []store.WorkItem{
		{},
		{Prediction: &store.Prediction{Label: "Positive"}},
		{HumanLabel: &store.HumanLabel{Label: "Positive"}},
	}
	for i, item := range cases {
		result := pipeline.Audit(item)
		if result.FlagForReview {
			t.Fatalf("case %d: incomplete items must not be flagged", i)
		}
		if result.Comment != "insufficient data" {
			t.Fatalf("case %d: unexpected comment %q", i, result.Comment)
		}
	}
}
