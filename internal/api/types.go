package api

import (
	"time"

	"nexusops/internal/store"
)

// StatusResponse summarizes both workflows for the dashboard.
type StatusResponse struct {
	Processing          bool           `json:"processing"`
	Stage               string         `json:"stage,omitempty"`
	LastError           string         `json:"last_error,omitempty"`
	ScoutActive         bool           `json:"scout_active"`
	CapabilityAvailable bool           `json:"capability_available"`
	ItemCounts          map[string]int `json:"item_counts"`
}

// ProjectView is the wire representation of a project.
type ProjectView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Guidelines  string    `json:"guidelines,omitempty"`
	HourlyRate  float64   `json:"hourly_rate"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemView is the wire representation of a work item.
type ItemView struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	Payload    map[string]string `json:"payload,omitempty"`
	Status     string            `json:"status"`
	Prediction *store.Prediction `json:"prediction,omitempty"`
	HumanLabel *store.HumanLabel `json:"human_label,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// SnapshotResponse carries a full store snapshot.
type SnapshotResponse struct {
	Projects []ProjectView `json:"projects"`
	Items    []ItemView    `json:"items"`
}

// LogsResponse carries one feed's buffered lines in insertion order.
type LogsResponse struct {
	Channel string   `json:"channel"`
	Lines   []string `json:"lines"`
}

// TriggerResponse acknowledges a workflow trigger.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Detail   string `json:"detail,omitempty"`
}

// SubmitLabelRequest records a manual label from the work queue UI.
type SubmitLabelRequest struct {
	Label            string `json:"label"`
	OperatorID       string `json:"operator_id"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

func snapshotResponse(snap store.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Projects: make([]ProjectView, 0, len(snap.Projects)),
		Items:    make([]ItemView, 0, len(snap.Items)),
	}
	for _, project := range snap.Projects {
		resp.Projects = append(resp.Projects, ProjectView{
			ID:          project.ID,
			Name:        project.Name,
			Type:        string(project.Type),
			Description: project.Description,
			Labels:      project.Labels,
			Guidelines:  project.Guidelines,
			HourlyRate:  project.HourlyRate,
			CreatedAt:   project.CreatedAt,
		})
	}
	for _, item := range snap.Items {
		resp.Items = append(resp.Items, ItemView{
			ID:         item.ID,
			ProjectID:  item.ProjectID,
			Payload:    item.Payload,
			Status:     string(item.Status),
			Prediction: item.Prediction,
			HumanLabel: item.HumanLabel,
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
		})
	}
	return resp
}
