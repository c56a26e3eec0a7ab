package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/frontier/internal/pipelineconfig"
)

// ConfigLoader returns the current pipeline definition
type ConfigLoader func() (*pipelineconfig.Config, error)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
