package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"nexusops/internal/config"
	"nexusops/internal/daemon"
	"nexusops/internal/logging"
	"nexusops/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	addr       string
	configPath string
}

// setupCLITestEnv boots a daemon on a random port backed by a stubbed model
// endpoint, then writes a config file the CLI can load.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"text": `{"label": "Positive", "confidence": 0.9, "reasoning": "stubbed"}`,
					}},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(model.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithGeminiBaseURL(model.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{cfg: cfg, daemon: d, addr: d.Addr(), configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	full := args
	if env != nil {
		full = append([]string{"--config", env.configPath, "--addr", env.addr}, args...)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(full)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func seededItemID(t *testing.T, env *cliTestEnv, status string) string {
	t.Helper()
	snap, err := env.daemon.Store().Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, item := range snap.Items {
		if string(item.Status) == status {
			return item.ID
		}
	}
	t.Fatalf("no seeded item with status %s", status)
	return ""
}
