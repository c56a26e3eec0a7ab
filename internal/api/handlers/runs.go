package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/pkg/logger"
)

// RunsHandler starts pipeline runs and reports their state
type RunsHandler struct {
	service *brain.Service
	config  ConfigLoader
	baseCtx context.Context // runs outlive the request that started them
	logger  *logger.Logger
}

// NewRunsHandler creates a runs handler
func NewRunsHandler(baseCtx context.Context, svc *brain.Service, config ConfigLoader, log *logger.Logger) *RunsHandler {
	return &RunsHandler{service: svc, config: config, baseCtx: baseCtx, logger: log}
}

// RunRequest optionally overrides the configured schedule
type RunRequest struct {
	Years     []int  `json:"years,omitempty"`
	Months    []int  `json:"months,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// Apply copies the non-empty overrides into cfg
func (req RunRequest) Apply(cfg *pipelineconfig.Config) {
	if len(req.Years) > 0 {
		cfg.Schedule.Years = req.Years
	}
	if len(req.Months) > 0 {
		cfg.Schedule.Months = req.Months
	}
	if req.Frequency != "" {
		cfg.Schedule.Frequency = req.Frequency
	}
}

// Create starts a run in the background
// POST /api/runs
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.config()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load pipeline config")
		respondError(w, http.StatusInternalServerError, "Failed to load pipeline config")
		return
	}
	req.Apply(cfg)
	if err := pipelineconfig.Validate(cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := brain.Schedule(cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.Start(h.baseCtx, cfg, "api")
	switch {
	case errors.Is(err, brain.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case contracts.IsConfigurationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": brain.StateRunning,
	})
}

// Get returns one run
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := h.service.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// List returns every run of this process, newest first
// GET /api/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": h.service.List(),
	})
}
