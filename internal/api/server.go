// Package api exposes the observer surface the surrounding dashboard
// consumes: read-only status, snapshot, and feed endpoints plus trigger
// endpoints for the two workflows.
//
// The rendering layer subscribes to this surface; it never drives the
// workflow logic directly and never receives typed errors from the core.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nexusops/internal/logging"
	"nexusops/internal/pipeline"
	"nexusops/internal/scout"
	"nexusops/internal/store"
)

// Capability is the availability probe consulted before exposing triggers.
type Capability interface {
	Available() bool
}

// Server wires the HTTP observer surface.
type Server struct {
	store      *store.Store
	runner     *pipeline.Runner
	scout      *scout.Scout
	capability Capability
	logger     *slog.Logger
}

// NewServer constructs the observer API server.
func NewServer(st *store.Store, runner *pipeline.Runner, sc *scout.Scout, capability Capability, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		store:      st,
		runner:     runner,
		scout:      sc,
		capability: capability,
		logger:     logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/logs/{channel}", s.handleLogs)
	mux.HandleFunc("POST /api/workflow/run", s.handleRunWorkflow)
	mux.HandleFunc("POST /api/scout/run", s.handleRunScout)
	mux.HandleFunc("POST /api/items/{id}/label", s.handleSubmitLabel)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.runner.State()
	counts := map[string]int{}
	if stats, err := s.store.Stats(r.Context()); err == nil {
		for status, count := range stats {
			counts[string(status)] = count
		}
	} else {
		s.logger.Warn("failed to read item stats", logging.Error(err))
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Processing:          state.Processing,
		Stage:               string(state.Stage),
		LastError:           state.LastError,
		ScoutActive:         s.scout.Active(),
		CapabilityAvailable: s.capability != nil && s.capability.Available(),
		ItemCounts:          counts,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("snapshot failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	var feed *logging.Feed
	switch channel {
	case "workflow":
		feed = s.runner.Feed()
	case "scout":
		feed = s.scout.Feed()
	default:
		writeError(w, http.StatusNotFound, "unknown log channel")
		return
	}
	writeJSON(w, http.StatusOK, LogsResponse{Channel: channel, Lines: feed.Lines()})
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.runner.State().Processing {
		writeJSON(w, http.StatusOK, TriggerResponse{Accepted: false, Detail: "run already in flight"})
		return
	}
	go func() {
		// Detached from the request context; a trigger outlives its caller.
		_ = s.runner.Run(context.Background())
	}()
	writeJSON(w, http.StatusAccepted, TriggerResponse{Accepted: true})
}

func (s *Server) handleRunScout(w http.ResponseWriter, r *http.Request) {
	mode, ok := scout.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scout mode")
		return
	}
	if s.scout.Active() {
		writeJSON(w, http.StatusOK, TriggerResponse{Accepted: false, Detail: "acquisition already in flight"})
		return
	}
	go func() {
		_ = s.scout.Run(context.Background(), mode)
	}()
	writeJSON(w, http.StatusAccepted, TriggerResponse{Accepted: true, Detail: string(mode)})
}

func (s *Server) handleSubmitLabel(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	var req SubmitLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "label required")
		return
	}

	status := store.StatusCompleted
	label := store.HumanLabel{
		Label:            req.Label,
		OperatorID:       req.OperatorID,
		TimeSpentSeconds: req.TimeSpentSeconds,
	}
	label.SubmittedAt = time.Now().UTC()

	item, err := s.store.ApplyPatch(r.Context(), itemID, store.Patch{Status: &status, HumanLabel: &label})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		s.logger.Error("label submission failed", logging.String("item", itemID), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "label submission failed")
		return
	}

	audit := pipeline.Audit(*item)
	if audit.FlagForReview {
		review := store.StatusReviewQueue
		if _, err := s.store.ApplyPatch(r.Context(), itemID, store.Patch{Status: &review}); err != nil {
			s.logger.Warn("failed to flag item for review", logging.String("item", itemID), logging.Error(err))
		}
		s.logger.Info("item flagged for review", logging.String("item", itemID), logging.String("comment", audit.Comment))
	}
	writeJSON(w, http.StatusOK, TriggerResponse{Accepted: true, Detail: audit.Comment})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
