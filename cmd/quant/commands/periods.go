package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
)

// periodsCmd represents the periods command
var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Print the schedule with cache status",
	Long: `Expands the configured schedule into periods and shows how many
artifacts each period already has cached.

Example:
  go run ./cmd/quant periods
  go run ./cmd/quant periods --years 2024 --frequency monthly`,
	RunE: listPeriods,
}

func init() {
	rootCmd.AddCommand(periodsCmd)

	addScheduleFlags(periodsCmd)
}

func listPeriods(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openStack(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := applyScheduleFlags(s.pipeline); err != nil {
		return err
	}
	periods, err := brain.Schedule(s.pipeline)
	if err != nil {
		return err
	}

	widths := []int{12, 10, 10, 9, 9}
	PrintTableHeader([]string{"PERIOD", "START", "END", "CACHED", "COMPLETE"}, widths)
	for _, p := range periods {
		keys, err := s.cache.Store().List(ctx, p.StorageKey)
		if err != nil {
			return fmt.Errorf("list %s: %w", p.StorageKey, err)
		}
		complete, err := s.cache.Exists(ctx, artifact.NewKey(p, contracts.StagePerformance, artifact.AllMethods))
		if err != nil {
			return fmt.Errorf("check %s: %w", p.StorageKey, err)
		}
		mark := "-"
		if complete {
			mark = "✓"
		}
		PrintTableRow([]string{
			p.StorageKey,
			p.Start.Format(contracts.DateLayout),
			p.LastDay().Format(contracts.DateLayout),
			fmt.Sprint(len(keys)),
			mark,
		}, widths)
	}
	return nil
}
