package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"time"

	"nexusops/internal/api"
)

// apiClient talks to a running daemon's observer API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

func (c *apiClient) Snapshot(ctx context.Context) (api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	err := c.do(ctx, http.MethodGet, "/api/snapshot", nil, &resp)
	return resp, err
}

func (c *apiClient) Logs(ctx context.Context, channel string) (api.LogsResponse, error) {
	var resp api.LogsResponse
	err := c.do(ctx, http.MethodGet, "/api/logs/"+channel, nil, &resp)
	return resp, err
}

func (c *apiClient) RunWorkflow(ctx context.Context) (api.TriggerResponse, error) {
	var resp api.TriggerResponse
	err := c.do(ctx, http.MethodPost, "/api/workflow/run", nil, &resp)
	return resp, err
}

func (c *apiClient) RunScout(ctx context.Context, mode string) (api.TriggerResponse, error) {
	var resp api.TriggerResponse
	path := "/api/scout/run"
	if mode != "" {
		path += "?mode=" + mode
	}
	err := c.do(ctx, http.MethodPost, path, nil, &resp)
	return resp, err
}

func (c *apiClient) SubmitLabel(ctx context.Context, itemID string, req api.SubmitLabelRequest) (api.TriggerResponse, error) {
	var resp api.TriggerResponse
	err := c.do(ctx, http.MethodPost, "/api/items/"+itemID+"/label", req, &resp)
	return resp, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `nexusops serve`", base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
