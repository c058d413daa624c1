package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nexusops/internal/api"
	"nexusops/internal/logging"
	"nexusops/internal/pipeline"
	"nexusops/internal/scout"
	"nexusops/internal/services/gemini"
	"nexusops/internal/store"
	"nexusops/internal/testsupport"
)

type stubPredictor struct{}

func (stubPredictor) Predict(ctx context.Context, item store.WorkItem, project store.Project) (store.Prediction, error) {
	return store.Prediction{Label: project.Labels[0], Confidence: 0.75, Reasoning: "stub"}, nil
}

type stubDiscoverer struct{}

func (stubDiscoverer) DiscoverFast(ctx context.Context) (gemini.Batch, error) {
	return gemini.Batch{
		Project: store.Project{
			Name:   "Discovered",
			Type:   store.TypeTextClassification,
			Labels: []string{"A", "B"},
		},
		Payloads: []map[string]string{{"text": "sample"}},
	}, nil
}

func (stubDiscoverer) DiscoverGrounded(ctx context.Context) (gemini.GroundedBatch, error) {
	batch, _ := stubDiscoverer{}.DiscoverFast(ctx)
	return gemini.GroundedBatch{Batch: batch, Context: "ctx"}, nil
}

type stubCapability bool

func (c stubCapability) Available() bool { return bool(c) }

type fixture struct {
	store  *store.Store
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	runner := pipeline.NewRunner(st, stubPredictor{}, logging.NewFeed(50), logging.NewNop())
	sc := scout.New(st, stubDiscoverer{}, logging.NewFeed(20), runner.Feed(), logging.NewNop(),
		scout.WithNarration(scout.Narration{}))

	server := api.NewServer(st, runner, sc, stubCapability(true), logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &fixture{store: st, server: ts}
}

func (f *fixture) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func (f *fixture) post(t *testing.T, path, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	project := testsupport.NewProject(t, f.store, "Status")
	testsupport.NewItem(t, f.store, project.ID, "one")

	var status api.StatusResponse
	resp := f.get(t, "/api/status", &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code %d", resp.StatusCode)
	}
	if status.Processing || status.ScoutActive {
		t.Fatalf("expected idle workflows: %#v", status)
	}
	if !status.CapabilityAvailable {
		t.Fatal("capability should report available")
	}
	if status.ItemCounts["pending"] != 1 {
		t.Fatalf("unexpected item counts: %#v", status.ItemCounts)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	f := newFixture(t)
	project := testsupport.NewProject(t, f.store, "Snapshot", "Yes", "No")
	item := testsupport.NewItem(t, f.store, project.ID, "payload text")

	var snapshot api.SnapshotResponse
	f.get(t, "/api/snapshot", &snapshot)
	if len(snapshot.Projects) != 1 || snapshot.Projects[0].Name != "Snapshot" {
		t.Fatalf("unexpected projects: %#v", snapshot.Projects)
	}
	if len(snapshot.Items) != 1 || snapshot.Items[0].ID != item.ID {
		t.Fatalf("unexpected items: %#v", snapshot.Items)
	}
	if snapshot.Items[0].Payload["text"] != "payload text" {
		t.Fatalf("payload not exposed: %#v", snapshot.Items[0].Payload)
	}
}

func TestWorkflowTriggerRunsBatch(t *testing.T) {
	f := newFixture(t)
	project := testsupport.NewProject(t, f.store, "Trigger", "Yes", "No")
	item := testsupport.NewItem(t, f.store, project.ID, "label me")

	var trigger api.TriggerResponse
	resp := f.post(t, "/api/workflow/run", "", &trigger)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if !trigger.Accepted {
		t.Fatalf("trigger rejected: %#v", trigger)
	}

	waitUntil(t, func() bool {
		got, err := f.store.GetItem(context.Background(), item.ID)
		return err == nil && got.Status == store.StatusReadyForHuman
	})

	var logs api.LogsResponse
	f.get(t, "/api/logs/workflow", &logs)
	joined := strings.Join(logs.Lines, "\n")
	if !strings.Contains(joined, "[system] batch complete") {
		t.Fatalf("workflow feed incomplete:\n%s", joined)
	}
}

func TestScoutTriggerAppendsBatch(t *testing.T) {
	f := newFixture(t)

	var trigger api.TriggerResponse
	resp := f.post(t, "/api/scout/run?mode=fast", "", &trigger)
	if resp.StatusCode != http.StatusAccepted || !trigger.Accepted {
		t.Fatalf("trigger rejected: %d %#v", resp.StatusCode, trigger)
	}

	waitUntil(t, func() bool {
		snap, err := f.store.Snapshot(context.Background())
		return err == nil && len(snap.Projects) == 1 && len(snap.Items) == 1
	})
}

func TestScoutTriggerRejectsUnknownMode(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/api/scout/run?mode=psychic", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLogsEndpointUnknownChannel(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/api/logs/nonsense", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSubmitLabelCompletesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, f.store, "Labeling", "Yes", "No")
	item := testsupport.NewItem(t, f.store, project.ID, "agree with me")

	status := store.StatusReadyForHuman
	prediction := store.Prediction{Label: "Yes", Confidence: 0.9}
	if _, err := f.store.ApplyPatch(ctx, item.ID, store.Patch{Status: &status, Prediction: &prediction}); err != nil {
		t.Fatalf("seed prediction: %v", err)
	}

	var trigger api.TriggerResponse
	resp := f.post(t, "/api/items/"+item.ID+"/label", `{"label": "Yes", "operator_id": "op-7", "time_spent_seconds": 30}`, &trigger)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if trigger.Detail != "consensus reached" {
		t.Fatalf("unexpected audit detail: %q", trigger.Detail)
	}

	got, err := f.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.HumanLabel == nil || got.HumanLabel.OperatorID != "op-7" {
		t.Fatalf("human label not recorded: %#v", got.HumanLabel)
	}
}

func TestSubmitLabelDisagreementRoutesToReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := testsupport.NewProject(t, f.store, "Review", "Yes", "No")
	item := testsupport.NewItem(t, f.store, project.ID, "disagree with me")

	status := store.StatusReadyForHuman
	prediction := store.Prediction{Label: "Yes", Confidence: 0.55}
	if _, err := f.store.ApplyPatch(ctx, item.ID, store.Patch{Status: &status, Prediction: &prediction}); err != nil {
		t.Fatalf("seed prediction: %v", err)
	}

	var trigger api.TriggerResponse
	f.post(t, "/api/items/"+item.ID+"/label", `{"label": "No"}`, &trigger)
	if !strings.Contains(trigger.Detail, "disagreement detected") {
		t.Fatalf("unexpected audit detail: %q", trigger.Detail)
	}

	got, _ := f.store.GetItem(ctx, item.ID)
	if got.Status != store.StatusReviewQueue {
		t.Fatalf("expected review_queue, got %s", got.Status)
	}
}

func TestSubmitLabelValidation(t *testing.T) {
	f := newFixture(t)

	if resp := f.post(t, "/api/items/missing/label", `{"label": "Yes"}`, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", resp.StatusCode)
	}

	project := testsupport.NewProject(t, f.store, "Validation")
	item := testsupport.NewItem(t, f.store, project.ID, "x")
	if resp := f.post(t, "/api/items/"+item.ID+"/label", `{"label": "  "}`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank label, got %d", resp.StatusCode)
	}
	if resp := f.post(t, "/api/items/"+item.ID+"/label", `not json`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", resp.StatusCode)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
