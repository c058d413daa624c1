package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nexusops/internal/config"
	"nexusops/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject appends a classification project with the given labels and
// returns it.
func NewProject(t testing.TB, st *store.Store, name string, labels ...string) store.Project {
	t.Helper()

	if len(labels) == 0 {
		labels = []string{"Alpha", "Beta"}
	}
	project := store.Project{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       store.TypeTextClassification,
		Labels:     labels,
		Guidelines: "Pick the closest label.",
		HourlyRate: 12.5,
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.AppendProject(context.Background(), project); err != nil {
		t.Fatalf("store.AppendProject: %v", err)
	}
	return project
}

// NewItem appends a pending work item holding the given text payload and
// returns it.
func NewItem(t testing.TB, st *store.Store, projectID, text string) store.WorkItem {
	t.Helper()

	now := time.Now().UTC()
	item := store.WorkItem{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Payload:   map[string]string{"text": text},
		Status:    store.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.AppendItems(context.Background(), []store.WorkItem{item}); err != nil {
		t.Fatalf("store.AppendItems: %v", err)
	}
	return item
}
