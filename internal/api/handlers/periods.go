package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/pkg/logger"
)

// PeriodsHandler exposes the schedule and the cached artifacts
// ⭐ SSOT: read-only view over the artifact cache
type PeriodsHandler struct {
	cache  *artifact.Cache
	config ConfigLoader
	logger *logger.Logger
}

// NewPeriodsHandler creates a periods handler
func NewPeriodsHandler(cache *artifact.Cache, config ConfigLoader, log *logger.Logger) *PeriodsHandler {
	return &PeriodsHandler{cache: cache, config: config, logger: log}
}

// PeriodItem is one scheduled period
type PeriodItem struct {
	StorageKey string    `json:"storage_key"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Frequency  string    `json:"frequency"`
	Artifacts  int       `json:"artifacts"`
	Complete   bool      `json:"complete"` // performance table cached
	CheckedAt  time.Time `json:"checked_at"`
}

// ArtifactItem describes one cached artifact
type ArtifactItem struct {
	Stage  string `json:"stage"`
	Method string `json:"method"`
}

// List returns the configured schedule with cache status
// GET /api/periods
func (h *PeriodsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.config()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load pipeline config")
		respondError(w, http.StatusInternalServerError, "Failed to load pipeline config")
		return
	}
	periods, err := brain.Schedule(cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]PeriodItem, 0, len(periods))
	for _, p := range periods {
		keys, err := h.cache.Store().List(ctx, p.StorageKey)
		if err != nil {
			h.logger.WithError(err).WithField("period", p.StorageKey).Error("Failed to list artifacts")
			respondError(w, http.StatusInternalServerError, "Failed to list artifacts")
			return
		}
		complete, _ := h.cache.Exists(ctx, artifact.NewKey(p, contracts.StagePerformance, artifact.AllMethods))
		items = append(items, PeriodItem{
			StorageKey: p.StorageKey,
			Start:      p.Start.Format(contracts.DateLayout),
			End:        p.LastDay().Format(contracts.DateLayout),
			Frequency:  string(p.Frequency),
			Artifacts:  len(keys),
			Complete:   complete,
			CheckedAt:  time.Now().UTC(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"periods": items,
		"count":   len(items),
	})
}

// Artifacts lists the cached artifacts of one period
// GET /api/periods/{key}/artifacts
func (h *PeriodsHandler) Artifacts(w http.ResponseWriter, r *http.Request) {
	periodKey := mux.Vars(r)["key"]
	check := artifact.Key{Period: periodKey, Stage: contracts.StageData, Method: artifact.AllMethods}
	if err := check.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid period key")
		return
	}

	keys, err := h.cache.Store().List(r.Context(), periodKey)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalidKey) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).WithField("period", periodKey).Error("Failed to list artifacts")
		respondError(w, http.StatusInternalServerError, "Failed to list artifacts")
		return
	}

	items := make([]ArtifactItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, ArtifactItem{Stage: string(k.Stage), Method: k.Method})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"period":    periodKey,
		"artifacts": items,
	})
}

// Artifact returns one decoded artifact with its envelope metadata
// GET /api/periods/{key}/artifacts/{stage}/{method}
func (h *PeriodsHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !contracts.IsValidStage(vars["stage"]) {
		respondError(w, http.StatusBadRequest, "Unknown stage")
		return
	}
	key := artifact.Key{Period: vars["key"], Stage: contracts.Stage(vars["stage"]), Method: vars["method"]}
	if err := key.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, meta, err := h.cache.Raw(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).WithField("key", key.String()).Error("Failed to read artifact")
		respondError(w, http.StatusInternalServerError, "Failed to read artifact")
		return
	}
	if data == nil {
		respondError(w, http.StatusNotFound, "Artifact not found")
		return
	}

	var payload interface{}
	if _, err := h.cache.Codec().Decode(data, &payload); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to decode artifact")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"meta":    meta,
		"payload": payload,
	})
}
