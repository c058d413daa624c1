package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nexusops/internal/store"
)

// Low temperature keeps labeling near-deterministic.
const predictTemperature = 0.1

// Predict produces a label suggestion for one work item. Failures surface as
// ErrUnavailable (missing key) or *UpstreamError (failed or malformed
// response); both are recoverable by a later run.
func (c *Client) Predict(ctx context.Context, item store.WorkItem, project store.Project) (store.Prediction, error) {
	var empty store.Prediction
	if !c.Available() {
		return empty, ErrUnavailable
	}

	prompt, schema := predictionPrompt(item, project)
	resp, err := c.generate(ctx, generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      predictTemperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	})
	if err != nil {
		return empty, &UpstreamError{Op: "predict", Err: err}
	}

	var parsed store.Prediction
	if err := DecodeModelJSON(resp.text(), &parsed); err != nil {
		return empty, &UpstreamError{Op: "predict", Err: fmt.Errorf("parse payload: %w", err)}
	}

	parsed.Label = strings.TrimSpace(parsed.Label)
	parsed.Reasoning = strings.TrimSpace(parsed.Reasoning)
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	if parsed.Label == "" {
		return empty, &UpstreamError{Op: "predict", Err: fmt.Errorf("empty label in payload")}
	}
	if project.Type.ClosedLabelSet() && !labelAllowed(parsed.Label, project.Labels) {
		return empty, &UpstreamError{Op: "predict", Err: fmt.Errorf("label %q not in project label set", parsed.Label)}
	}
	return parsed, nil
}

func labelAllowed(label string, labels []string) bool {
	for _, candidate := range labels {
		if strings.EqualFold(strings.TrimSpace(candidate), label) {
			return true
		}
	}
	return false
}

func predictionPrompt(item store.WorkItem, project store.Project) (string, json.RawMessage) {
	labelSchema := responseSchema{Type: "STRING", Description: "The assigned label"}
	if project.Type.ClosedLabelSet() {
		labelSchema.Enum = project.Labels
	}
	schema := mustSchema(responseSchema{
		Type: "OBJECT",
		Properties: map[string]responseSchema{
			"label":      labelSchema,
			"confidence": {Type: "NUMBER", Description: "Confidence score between 0 and 1"},
			"reasoning":  {Type: "STRING", Description: "Short explanation for the label"},
		},
		Required: []string{"label", "confidence", "reasoning"},
	})

	switch project.Type {
	case store.TypeTextClassification, store.TypeSentimentAnalysis:
		prompt := fmt.Sprintf(
			"Analyze the following text and assign exactly one of the following labels: %s.\nText: %q\n\nGuidelines: %s\nProvide a confidence score between 0.0 and 1.0, and a brief reasoning for your choice.",
			strings.Join(project.Labels, ", "),
			item.Text(),
			project.Guidelines,
		)
		return prompt, schema
	case store.TypeImageCaptioning:
		return "Generate a descriptive caption for this content.", schema
	default:
		payload, _ := json.Marshal(item.Payload)
		prompt := fmt.Sprintf("Analyze: %s. Labels: %s", payload, strings.Join(project.Labels, ", "))
		return prompt, schema
	}
}
