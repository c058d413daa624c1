package store_test

import (
	"testing"

	"nexusops/internal/store"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  store.Status
		ok    bool
	}{
		{"pending", store.StatusPending, true},
		{"  Ready_For_Human ", store.StatusReadyForHuman, true},
		{"REVIEW_QUEUE", store.StatusReviewQueue, true},
		{"", "", false},
		{"shipped", "", false},
	}
	for _, tc := range cases {
		got, ok := store.ParseStatus(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseProjectType(t *testing.T) {
	if _, ok := store.ParseProjectType("ner"); !ok {
		t.Fatal("expected ner to parse")
	}
	if _, ok := store.ParseProjectType("video_tagging"); ok {
		t.Fatal("expected unknown type to fail")
	}
}

func TestClosedLabelSet(t *testing.T) {
	if store.TypeImageCaptioning.ClosedLabelSet() {
		t.Fatal("captioning should be open-ended")
	}
	for _, projectType := range []store.ProjectType{
		store.TypeTextClassification,
		store.TypeSentimentAnalysis,
		store.TypeEntityRecognition,
	} {
		if !projectType.ClosedLabelSet() {
			t.Fatalf("%s should require the configured label set", projectType)
		}
	}
}

func TestSnapshotPendingItemsKeepsOrder(t *testing.T) {
	snap := store.Snapshot{
		Items: []store.WorkItem{
			{ID: "a", Status: store.StatusPending},
			{ID: "b", Status: store.StatusCompleted},
			{ID: "c", Status: store.StatusPending},
			{ID: "d", Status: store.StatusReadyForHuman},
			{ID: "e", Status: store.StatusPending},
		},
	}
	pending := snap.PendingItems()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending items, got %d", len(pending))
	}
	for i, want := range []string{"a", "c", "e"} {
		if pending[i].ID != want {
			t.Fatalf("pending[%d] = %s, want %s", i, pending[i].ID, want)
		}
	}
}

func TestSnapshotProjectLookup(t *testing.T) {
	snap := store.Snapshot{Projects: []store.Project{{ID: "p1", Name: "One"}}}
	if project, ok := snap.Project("p1"); !ok || project.Name != "One" {
		t.Fatalf("unexpected lookup result: %#v, %v", project, ok)
	}
	if _, ok := snap.Project("p2"); ok {
		t.Fatal("expected lookup miss for unknown id")
	}
}
