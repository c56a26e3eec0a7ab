package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/api"
	"github.com/wonny/frontier/internal/api/handlers"
	"github.com/wonny/frontier/internal/brain"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

This command:
- serves the schedule and the cached artifacts
- starts pipeline runs in the background (one at a time)
- streams run progress over a websocket

Endpoints:
  GET  /health                                     - Health check
  GET  /metrics                                    - Prometheus metrics
  GET  /ws/progress                                - Run progress events
  GET  /api/periods                                - Schedule with cache status
  GET  /api/periods/{key}/artifacts                - Cached artifacts of a period
  GET  /api/periods/{key}/artifacts/{stage}/{method}
  POST /api/runs                                   - Start a run
  GET  /api/runs                                   - Runs of this process
  GET  /api/runs/{id}                              - One run

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Frontier API Server ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Open cache, source and connections
	s, err := openStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	// Override port if flag is set
	if apiPort != "" {
		s.env.Port = apiPort
	}

	s.log.WithFields(map[string]interface{}{
		"port": s.env.Port,
		"env":  s.env.Env,
	}).Info("Initializing API server")

	// 2. Run service publishing to the websocket hub
	hub := api.NewHub(s.log)
	svc := brain.NewService(s.orchestrator(), hub, s.log)
	loader := handlers.ConfigLoader(pipelineLoader(s.env))

	// 3. Router
	var metricsHandler http.Handler
	if s.env.MetricsEnabled {
		metricsHandler = s.metrics.Handler()
	}
	router := api.NewRouter(api.Routes{
		Runs:    handlers.NewRunsHandler(ctx, svc, loader, s.log),
		Periods: handlers.NewPeriodsHandler(s.cache, loader, s.log),
		Hub:     hub,
		Metrics: metricsHandler,
	}, s.log)

	// 4. Start server with graceful shutdown
	server := api.New(s.env, s.log, router)
	go func() {
		if err := server.Start(); err != nil {
			s.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	s.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", s.env.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.log.Info("Shutting down server...")

	// Running pipelines stop between methods
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("Server stopped")
	return nil
}
