package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and backend health",
	Long: `Prints the effective configuration, the pipeline config fingerprint
and the health of every backend the configuration needs.

Example:
  go run ./cmd/quant status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := openStack(ctx, true)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer s.Close()

	hash, err := pipelineconfig.Hash(s.pipeline)
	if err != nil {
		return err
	}

	PrintHeader("Frontier status", [][2]string{
		{"Env", s.env.Env},
		{"Output", s.env.OutputDir},
		{"Pipeline", pipelinePath(s.env)},
		{"Hash", hash[:12]},
		{"Cache", s.env.Cache.Backend + "/" + s.cache.Codec().Name()},
	})

	for _, w := range pipelineconfig.Warn(s.pipeline) {
		PrintWarning(w.Message)
	}

	if s.rdb.Enabled() {
		if err := s.rdb.Ping(ctx); err != nil {
			PrintError(fmt.Sprintf("Redis %s: %v", s.rdb.Addr(), err))
		} else {
			PrintSuccess("Redis: connected to " + s.rdb.Addr())
		}
	}

	if s.db != nil {
		health, err := s.db.HealthCheck(ctx)
		if err != nil {
			PrintError(fmt.Sprintf("PostgreSQL: %v", err))
			return nil
		}
		printDBHealth(health)
	}

	PrintSuccess("Price source ready")
	return nil
}

func printDBHealth(h *database.HealthStatus) {
	PrintSuccess("PostgreSQL: connected")
	PrintKeyValue("Latency", h.ResponseTime.String(), 12)
	PrintKeyValue("Connections", fmt.Sprintf("%d total / %d idle / %d max", h.Stats.TotalConns, h.Stats.IdleConns, h.Stats.MaxConns), 12)
}
