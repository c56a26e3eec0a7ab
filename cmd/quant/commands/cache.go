package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/scheduler/jobs"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate cached artifacts",
	Long: `Artifacts never expire; deleting them is the only invalidation.

Subcommands:
  ls     - list the artifacts of a period
  rm     - delete a period, a stage or one method
  prune  - delete unreadable or stale-schema artifacts

Example:
  go run ./cmd/quant cache ls 2024
  go run ./cmd/quant cache rm 2024 optimization
  go run ./cmd/quant cache rm 2024 risk_model SampleCovariance`,
}

var (
	cacheLsCmd = &cobra.Command{
		Use:   "ls [period]",
		Short: "List the artifacts of a period",
		Args:  cobra.ExactArgs(1),
		RunE:  listArtifacts,
	}

	cacheRmCmd = &cobra.Command{
		Use:   "rm [period] [stage] [method]",
		Short: "Delete cached artifacts",
		Args:  cobra.RangeArgs(1, 3),
		RunE:  removeArtifacts,
	}

	cachePruneCmd = &cobra.Command{
		Use:   "prune [period]",
		Short: "Delete artifacts the cache can no longer load",
		Args:  cobra.ExactArgs(1),
		RunE:  pruneArtifacts,
	}
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheLsCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}

func listArtifacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	keys, err := s.cache.Store().List(ctx, args[0])
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		PrintInfo(fmt.Sprintf("No artifacts cached for %s", args[0]))
		return nil
	}

	widths := []int{16, 32, 6, 20}
	PrintTableHeader([]string{"STAGE", "METHOD", "SCHEMA", "CREATED"}, widths)
	for _, k := range keys {
		schema, created := "?", "?"
		if _, meta, err := s.cache.Raw(ctx, k); err == nil && meta != nil {
			schema = fmt.Sprint(meta.Schema)
			created = meta.CreatedAt.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{string(k.Stage), k.Method, schema, created}, widths)
	}
	return nil
}

func removeArtifacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var stage contracts.Stage
	if len(args) > 1 {
		if !contracts.IsValidStage(args[1]) {
			return fmt.Errorf("unknown stage %q", args[1])
		}
		stage = contracts.Stage(args[1])
	}
	method := ""
	if len(args) > 2 {
		method = args[2]
	}

	s, err := openStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	keys, err := s.cache.Store().List(ctx, args[0])
	if err != nil {
		return err
	}

	removed := 0
	for _, k := range keys {
		if !matchesKey(k, stage, method) {
			continue
		}
		if err := s.cache.Store().Delete(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
		s.log.WithField("key", k.String()).Debug("Artifact deleted")
		removed++
	}

	PrintSuccess(fmt.Sprintf("Removed %d artifact(s) from %s", removed, args[0]))
	return nil
}

// matchesKey filters by stage and method; empty values match everything
func matchesKey(k artifact.Key, stage contracts.Stage, method string) bool {
	if stage != "" && k.Stage != stage {
		return false
	}
	return method == "" || k.Method == method
}

func pruneArtifacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := jobs.Prune(ctx, s.cache, args[0])
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Pruned %d artifact(s) from %s", removed, args[0]))
	return nil
}
