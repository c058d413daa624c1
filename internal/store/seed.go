package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Seed populates an empty store with two sample projects and a handful of
// work items so a fresh daemon has a working queue. It is a no-op when the
// store already holds items.
func Seed(ctx context.Context, s *Store) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, count := range stats {
		if count > 0 {
			return nil
		}
	}

	now := time.Now().UTC()
	sentiment := Project{
		ID:          uuid.NewString(),
		Name:        "Customer Feedback Sentiment",
		Type:        TypeSentimentAnalysis,
		Description: "Classify support tickets as Positive, Negative, or Neutral.",
		Labels:      []string{"Positive", "Negative", "Neutral"},
		Guidelines:  "Read the customer email carefully. Sarcasm should be marked Negative.",
		HourlyRate:  15.0,
		CreatedAt:   now,
	}
	news := Project{
		ID:          uuid.NewString(),
		Name:        "Tech News Classification",
		Type:        TypeTextClassification,
		Description: "Categorize news headlines into topics.",
		Labels:      []string{"AI/ML", "Crypto", "Hardware", "Software", "Business"},
		Guidelines:  "Focus on the main subject of the headline.",
		HourlyRate:  12.5,
		CreatedAt:   now,
	}
	for _, project := range []Project{sentiment, news} {
		if err := s.AppendProject(ctx, project); err != nil {
			return fmt.Errorf("seed project: %w", err)
		}
	}

	items := []WorkItem{
		{
			ID:        uuid.NewString(),
			ProjectID: sentiment.ID,
			Payload:   map[string]string{"text": "I absolutely love this product, it saved me hours!"},
			Status:    StatusReadyForHuman,
			Prediction: &Prediction{
				Label:      "Positive",
				Confidence: 0.95,
				Reasoning:  "Strong positive phrasing and gratitude.",
			},
		},
		{
			ID:        uuid.NewString(),
			ProjectID: sentiment.ID,
			Payload:   map[string]string{"text": "The refund process is a nightmare. Avoid."},
			Status:    StatusPending,
		},
		{
			ID:        uuid.NewString(),
			ProjectID: news.ID,
			Payload:   map[string]string{"text": "NVIDIA announces new Blackwell GPU architecture."},
			Status:    StatusPending,
		},
		{
			ID:        uuid.NewString(),
			ProjectID: news.ID,
			Payload:   map[string]string{"text": "Bitcoin surges past $90k in record rally."},
			Status:    StatusPending,
		},
	}
	if err := s.AppendItems(ctx, items); err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	return nil
}
