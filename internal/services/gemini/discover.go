package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nexusops/internal/store"
)

const (
	fastTemperature     = 0.8
	groundedTemperature = 0.7
	contextLimit        = 500
)

// Batch is a discovered project specification plus raw item payloads.
// The project carries no id; the acquisition workflow assigns fresh ids.
type Batch struct {
	Project  store.Project
	Payloads []map[string]string
}

// GroundedBatch is a Batch plus the intermediate search context that produced
// it, surfaced so the caller can log it.
type GroundedBatch struct {
	Batch
	Context    string
	SourceURLs []string
}

const scoutPrompt = `You are an autonomous agent scouting for data labeling work.
Generate a realistic, high-value data labeling contract that might be found on a freelance platform.

The project should be one of these types: sentiment_analysis, text_classification, ner.

Return a JSON object containing the project details and 3 sample tasks (raw data) associated with it.`

const searchPrompt = `What are the most in-demand freelance data labeling jobs right now? (e.g. RLHF, medical, coding). Find a specific recent example or niche.`

const fallbackContext = "General high-demand RLHF data labeling."

// DiscoverFast manufactures a new batch in a single call without external
// context gathering. Failures surface as *DiscoveryError.
func (c *Client) DiscoverFast(ctx context.Context) (Batch, error) {
	if !c.Available() {
		return Batch{}, ErrUnavailable
	}
	return c.generateBatch(ctx, scoutPrompt, fastTemperature)
}

// DiscoverGrounded gathers real-world context via the search tool first, then
// generates a batch conditioned on it. The intermediate context text and
// source URLs are returned for logging even though only the batch feeds the
// store. Either step's failure surfaces as *DiscoveryError with the step name.
func (c *Client) DiscoverGrounded(ctx context.Context) (GroundedBatch, error) {
	var empty GroundedBatch
	if !c.Available() {
		return empty, ErrUnavailable
	}

	searchResp, err := c.generate(ctx, generateRequest{
		Contents: []content{{Parts: []part{{Text: searchPrompt}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	})
	if err != nil {
		return empty, &DiscoveryError{Step: "search", Err: err}
	}
	searchContext := searchResp.text()
	if searchContext == "" {
		searchContext = fallbackContext
	}
	sources := searchResp.sourceURLs()

	genPrompt := fmt.Sprintf(
		"Based on this real-world market context: %q,\nGenerate a realistic project contract and 3 sample tasks that fit this specific niche.\n\nReturn JSON only.",
		truncate(searchContext, contextLimit),
	)
	batch, err := c.generateBatch(ctx, genPrompt, groundedTemperature)
	if err != nil {
		return empty, err
	}
	return GroundedBatch{Batch: batch, Context: searchContext, SourceURLs: sources}, nil
}

func (c *Client) generateBatch(ctx context.Context, prompt string, temperature float64) (Batch, error) {
	var empty Batch
	resp, err := c.generate(ctx, generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      temperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   batchSchema(),
		},
	})
	if err != nil {
		return empty, &DiscoveryError{Step: "generate", Err: err}
	}

	var parsed struct {
		Project struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Type        string   `json:"type"`
			Labels      []string `json:"labels"`
			Guidelines  string   `json:"guidelines"`
			HourlyRate  float64  `json:"hourlyRate"`
		} `json:"project"`
		Tasks []struct {
			Text string `json:"text"`
		} `json:"tasks"`
	}
	if err := DecodeModelJSON(resp.text(), &parsed); err != nil {
		return empty, &DiscoveryError{Step: "generate", Err: fmt.Errorf("parse payload: %w", err)}
	}

	projectType, ok := store.ParseProjectType(parsed.Project.Type)
	if !ok {
		return empty, &DiscoveryError{Step: "generate", Err: fmt.Errorf("unknown project type %q", parsed.Project.Type)}
	}
	if strings.TrimSpace(parsed.Project.Name) == "" {
		return empty, &DiscoveryError{Step: "generate", Err: errors.New("project name missing")}
	}
	if projectType.ClosedLabelSet() && len(parsed.Project.Labels) == 0 {
		return empty, &DiscoveryError{Step: "generate", Err: errors.New("label set missing")}
	}
	if len(parsed.Tasks) == 0 {
		return empty, &DiscoveryError{Step: "generate", Err: errors.New("no tasks in payload")}
	}

	batch := Batch{
		Project: store.Project{
			Name:        strings.TrimSpace(parsed.Project.Name),
			Type:        projectType,
			Description: strings.TrimSpace(parsed.Project.Description),
			Labels:      parsed.Project.Labels,
			Guidelines:  strings.TrimSpace(parsed.Project.Guidelines),
			HourlyRate:  parsed.Project.HourlyRate,
		},
	}
	for _, task := range parsed.Tasks {
		if strings.TrimSpace(task.Text) == "" {
			continue
		}
		batch.Payloads = append(batch.Payloads, map[string]string{"text": task.Text})
	}
	if len(batch.Payloads) == 0 {
		return empty, &DiscoveryError{Step: "generate", Err: errors.New("all tasks empty")}
	}
	return batch, nil
}

func batchSchema() json.RawMessage {
	return mustSchema(responseSchema{
		Type: "OBJECT",
		Properties: map[string]responseSchema{
			"project": {
				Type: "OBJECT",
				Properties: map[string]responseSchema{
					"name":        {Type: "STRING", Description: "Catchy project name"},
					"description": {Type: "STRING", Description: "Client description of the work"},
					"type":        {Type: "STRING", Enum: []string{"sentiment_analysis", "text_classification", "ner"}},
					"labels":      {Type: "ARRAY", Items: &responseSchema{Type: "STRING"}, Description: "List of valid labels"},
					"guidelines":  {Type: "STRING", Description: "Instructions for labelers"},
					"hourlyRate":  {Type: "NUMBER", Description: "Pay rate in USD"},
				},
				Required: []string{"name", "description", "type", "labels", "guidelines", "hourlyRate"},
			},
			"tasks": {
				Type: "ARRAY",
				Items: &responseSchema{
					Type: "OBJECT",
					Properties: map[string]responseSchema{
						"text": {Type: "STRING", Description: "The raw text data to label"},
					},
					Required: []string{"text"},
				},
			},
		},
		Required: []string{"project", "tasks"},
	})
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
