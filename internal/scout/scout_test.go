package scout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nexusops/internal/logging"
	"nexusops/internal/scout"
	"nexusops/internal/services/gemini"
	"nexusops/internal/store"
	"nexusops/internal/testsupport"
)

type stubDiscoverer struct {
	mu       sync.Mutex
	calls    int
	batch    gemini.Batch
	grounded gemini.GroundedBatch
	err      error
	block    chan struct{}
}

func (d *stubDiscoverer) DiscoverFast(ctx context.Context) (gemini.Batch, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return gemini.Batch{}, ctx.Err()
		}
	}
	if d.err != nil {
		return gemini.Batch{}, d.err
	}
	return d.batch, nil
}

func (d *stubDiscoverer) DiscoverGrounded(ctx context.Context) (gemini.GroundedBatch, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return gemini.GroundedBatch{}, d.err
	}
	return d.grounded, nil
}

func (d *stubDiscoverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func sampleBatch() gemini.Batch {
	return gemini.Batch{
		Project: store.Project{
			Name:       "Medical Triage Notes",
			Type:       store.TypeTextClassification,
			Labels:     []string{"Urgent", "Routine"},
			Guidelines: "Classify by urgency.",
			HourlyRate: 24,
		},
		Payloads: []map[string]string{
			{"text": "patient reports chest pain"},
			{"text": "routine follow up scheduled"},
			{"text": "prescription refill request"},
		},
	}
}

type scoutFixture struct {
	store        *store.Store
	feed         *logging.Feed
	workflowFeed *logging.Feed
}

func newScout(t *testing.T, discoverer scout.Discoverer, opts ...scout.Option) (*scout.Scout, *scoutFixture) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	fixture := &scoutFixture{
		store:        testsupport.MustOpenStore(t, cfg),
		feed:         logging.NewFeed(20),
		workflowFeed: logging.NewFeed(50),
	}
	counter := 0
	base := append([]scout.Option{
		scout.WithNarration(scout.Narration{Steps: []string{"step one", "step two"}}),
		scout.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("scout-id-%d", counter)
		}),
	}, opts...)
	sc := scout.New(fixture.store, discoverer, fixture.feed, fixture.workflowFeed, logging.NewNop(), base...)
	return sc, fixture
}

func TestRunFastAppendsDiscoveredBatch(t *testing.T) {
	discoverer := &stubDiscoverer{batch: sampleBatch()}
	sc, fixture := newScout(t, discoverer)
	ctx := context.Background()

	if err := sc.Run(ctx, scout.ModeFast); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap, err := fixture.store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(snap.Projects))
	}
	project := snap.Projects[0]
	if project.Name != "Medical Triage Notes" || project.ID == "" {
		t.Fatalf("unexpected project: %#v", project)
	}
	if len(snap.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(snap.Items))
	}
	for _, item := range snap.Items {
		if item.Status != store.StatusPending {
			t.Fatalf("discovered items must start pending, got %s", item.Status)
		}
		if item.ProjectID != project.ID {
			t.Fatalf("item %s not linked to new project", item.ID)
		}
	}

	lines := strings.Join(fixture.feed.Lines(), "\n")
	for _, want := range []string{"initializing scout...", "mode: simulation (fast)", "> step one", "> step two", `success: contract secured for "Medical Triage Notes" (3 items)`} {
		if !strings.Contains(lines, want) {
			t.Fatalf("feed missing %q:\n%s", want, lines)
		}
	}
	if sc.Active() {
		t.Fatal("active flag not cleared")
	}
}

func TestRunGroundedLogsContextAndSources(t *testing.T) {
	discoverer := &stubDiscoverer{grounded: gemini.GroundedBatch{
		Batch:      sampleBatch(),
		Context:    "RLHF labeling demand is spiking",
		SourceURLs: []string{"https://example.com/report", "https://example.com/jobs"},
	}}
	sc, fixture := newScout(t, discoverer)

	if err := sc.Run(context.Background(), scout.ModeGrounded); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Join(fixture.feed.Lines(), "\n")
	for _, want := range []string{
		"mode: grounded (live web search)",
		"> context: RLHF labeling demand is spiking",
		"sources found:",
		"https://example.com/report",
		"https://example.com/jobs",
	} {
		if !strings.Contains(lines, want) {
			t.Fatalf("feed missing %q:\n%s", want, lines)
		}
	}
	if strings.Contains(lines, "> step one") {
		t.Fatal("grounded mode must not play the simulated narration")
	}
}

func TestRunFailureCrossReportsAndLeavesStoreUntouched(t *testing.T) {
	discoverer := &stubDiscoverer{err: &gemini.DiscoveryError{Step: "search", Err: errors.New("quota exceeded")}}
	sc, fixture := newScout(t, discoverer)
	ctx := context.Background()

	existingProject := testsupport.NewProject(t, fixture.store, "Preexisting")
	existing := testsupport.NewItem(t, fixture.store, existingProject.ID, "untouched")

	err := sc.Run(ctx, scout.ModeGrounded)
	var discErr *gemini.DiscoveryError
	if !errors.As(err, &discErr) || discErr.Step != "search" {
		t.Fatalf("expected search-step discovery error, got %v", err)
	}

	scoutLines := strings.Join(fixture.feed.Lines(), "\n")
	if !strings.Contains(scoutLines, "error:") || !strings.Contains(scoutLines, "quota exceeded") {
		t.Fatalf("scout feed missing failure line:\n%s", scoutLines)
	}
	workflowLines := strings.Join(fixture.workflowFeed.Lines(), "\n")
	if !strings.Contains(workflowLines, "[scout] acquisition failed") {
		t.Fatalf("workflow feed missing cross-report:\n%s", workflowLines)
	}

	snap, _ := fixture.store.Snapshot(ctx)
	if len(snap.Projects) != 1 || len(snap.Items) != 1 {
		t.Fatalf("failed acquisition must not change the store: %d projects, %d items", len(snap.Projects), len(snap.Items))
	}
	item, _ := fixture.store.GetItem(ctx, existing.ID)
	if item.Status != store.StatusPending {
		t.Fatalf("existing item modified: %s", item.Status)
	}
	if sc.Active() {
		t.Fatal("active flag not cleared after failure")
	}
}

func TestRunWhileActiveIsNoOp(t *testing.T) {
	discoverer := &stubDiscoverer{batch: sampleBatch(), block: make(chan struct{})}
	sc, _ := newScout(t, discoverer)

	done := make(chan error, 1)
	go func() {
		done <- sc.Run(context.Background(), scout.ModeFast)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !sc.Active() {
		if time.Now().After(deadline) {
			t.Fatal("scout never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := sc.Run(context.Background(), scout.ModeFast); err != nil {
		t.Fatalf("re-entrant Run should be a no-op, got %v", err)
	}
	if discoverer.callCount() != 1 {
		t.Fatalf("expected a single discovery call, got %d", discoverer.callCount())
	}

	close(discoverer.block)
	if err := <-done; err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	discoverer := &stubDiscoverer{batch: sampleBatch()}
	sc, fixture := newScout(t, discoverer, scout.WithNarration(scout.Narration{
		Steps:     []string{"never shown"},
		StepDelay: time.Hour,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sc.Run(ctx, scout.ModeFast); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	snap, _ := fixture.store.Snapshot(context.Background())
	if len(snap.Projects) != 0 {
		t.Fatal("cancelled run must not append records")
	}
}

func TestParseMode(t *testing.T) {
	if mode, ok := scout.ParseMode(""); !ok || mode != scout.ModeFast {
		t.Fatalf("empty mode should default to fast, got %s/%v", mode, ok)
	}
	if mode, ok := scout.ParseMode("grounded"); !ok || mode != scout.ModeGrounded {
		t.Fatalf("grounded should parse, got %s/%v", mode, ok)
	}
	if _, ok := scout.ParseMode("psychic"); ok {
		t.Fatal("unknown mode should fail")
	}
}
