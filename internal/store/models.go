package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPreLabeling   Status = "pre_labeling"
	StatusReadyForHuman Status = "ready_for_human"
	StatusInProgress    Status = "in_progress"
	StatusReviewQueue   Status = "review_queue"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
)

var allStatuses = []Status{
	StatusPending,
	StatusPreLabeling,
	StatusReadyForHuman,
	StatusInProgress,
	StatusReviewQueue,
	StatusCompleted,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ProjectType identifies the labeling task kind a project configures.
type ProjectType string

const (
	TypeTextClassification ProjectType = "text_classification"
	TypeSentimentAnalysis  ProjectType = "sentiment_analysis"
	TypeEntityRecognition  ProjectType = "ner"
	TypeImageCaptioning    ProjectType = "image_captioning"
)

var projectTypeSet = map[ProjectType]struct{}{
	TypeTextClassification: {},
	TypeSentimentAnalysis:  {},
	TypeEntityRecognition:  {},
	TypeImageCaptioning:    {},
}

// ParseProjectType converts a string into a known ProjectType.
func ParseProjectType(value string) (ProjectType, bool) {
	normalized := ProjectType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := projectTypeSet[normalized]
	return normalized, ok
}

// ClosedLabelSet reports whether predictions for this project type must pick
// from the project's configured labels.
func (t ProjectType) ClosedLabelSet() bool {
	return t != TypeImageCaptioning
}

// Project groups work items and supplies their labeling configuration.
type Project struct {
	ID          string
	Name        string
	Type        ProjectType
	Description string
	Labels      []string
	Guidelines  string
	HourlyRate  float64
	CreatedAt   time.Time
}

// Prediction is a label suggestion produced by the pre-label stage.
// Confidence is clamped to [0, 1] at the capability boundary.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// HumanLabel records a manual label submission from the work queue.
type HumanLabel struct {
	Label            string    `json:"label"`
	SubmittedAt      time.Time `json:"submitted_at"`
	OperatorID       string    `json:"operator_id"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// WorkItem is one unit of labeling work. Payload content is opaque to the
// pipeline beyond being handed to the prediction capability.
type WorkItem struct {
	ID         string
	ProjectID  string
	Payload    map[string]string
	Status     Status
	Prediction *Prediction
	HumanLabel *HumanLabel
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Text returns the textual payload field, if present.
func (i WorkItem) Text() string {
	return i.Payload["text"]
}

// Snapshot is a consistent, independently-readable copy of the store.
type Snapshot struct {
	Projects []Project
	Items    []WorkItem
}

// Project resolves a project by id within the snapshot.
func (s Snapshot) Project(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// PendingItems returns the snapshot's pending items in snapshot order.
func (s Snapshot) PendingItems() []WorkItem {
	var pending []WorkItem
	for _, item := range s.Items {
		if item.Status == StatusPending {
			pending = append(pending, item)
		}
	}
	return pending
}
