package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/frontier/internal/api/handlers"
	"github.com/wonny/frontier/pkg/logger"
)

// Routes groups the handlers mounted by NewRouter.
// Metrics is optional (nil when METRICS_ENABLED=false).
type Routes struct {
	Runs    *handlers.RunsHandler
	Periods *handlers.PeriodsHandler
	Hub     *Hub
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are declared in this function only
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods("GET")
	}
	r.Handle("/ws/progress", routes.Hub).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Periods and cached artifacts
	api.HandleFunc("/periods", routes.Periods.List).Methods("GET")
	api.HandleFunc("/periods/{key}/artifacts", routes.Periods.Artifacts).Methods("GET")
	api.HandleFunc("/periods/{key}/artifacts/{stage}/{method}", routes.Periods.Artifact).Methods("GET")

	// Runs
	api.HandleFunc("/runs", routes.Runs.Create).Methods("POST")
	api.HandleFunc("/runs", routes.Runs.List).Methods("GET")
	api.HandleFunc("/runs/{id}", routes.Runs.Get).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "frontier-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
