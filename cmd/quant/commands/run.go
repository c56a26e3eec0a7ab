package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/api/handlers"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/pipelineconfig"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: `Runs every scheduled period through all six stages.

Cached stage results are reused; periods without price data are skipped.
Flags override the schedule section of the pipeline YAML.

Example:
  go run ./cmd/quant run
  go run ./cmd/quant run --years 2023,2024 --frequency yearly
  go run ./cmd/quant run --years 2024 --frequency monthly --months 1,2,3`,
	RunE: runPipeline,
}

var (
	runYears     []int
	runMonths    []int
	runFrequency string
)

func init() {
	rootCmd.AddCommand(runCmd)

	addScheduleFlags(runCmd)
}

// addScheduleFlags registers the schedule overrides shared by run and periods
func addScheduleFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&runYears, "years", nil, "override schedule.years")
	cmd.Flags().IntSliceVar(&runMonths, "months", nil, "override schedule.months (monthly only)")
	cmd.Flags().StringVar(&runFrequency, "frequency", "", "override schedule.frequency (monthly|yearly|multiyear)")
}

// applyScheduleFlags applies the overrides and revalidates the config
func applyScheduleFlags(cfg *pipelineconfig.Config) error {
	handlers.RunRequest{Years: runYears, Months: runMonths, Frequency: runFrequency}.Apply(cfg)
	return pipelineconfig.Validate(cfg)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStack(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := applyScheduleFlags(s.pipeline); err != nil {
		return err
	}

	runID := brain.GenerateRunID()
	PrintHeader("Frontier pipeline run", [][2]string{
		{"Run ID", runID},
		{"Frequency", s.pipeline.Schedule.Frequency},
		{"Years", fmt.Sprint(s.pipeline.Schedule.Years)},
		{"Started", time.Now().Format("2006-01-02 15:04:05")},
	})

	result, err := s.orchestrator().Run(ctx, s.pipeline, brain.RunOptions{RunID: runID, Sink: consoleSink{}})
	if err != nil {
		if contracts.IsConfigurationError(err) {
			PrintError(err.Error())
		}
		return err
	}

	fmt.Println()
	PrintRunResult(result)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("Run %s: %d/%d periods completed in %.2fs",
		result.RunID, result.Completed(), len(result.Periods), result.Duration.Seconds()))
	return nil
}

// consoleSink prints period-level progress
type consoleSink struct{}

// Publish implements contracts.ProgressSink
func (consoleSink) Publish(e contracts.Event) {
	switch e.Kind {
	case contracts.EventPeriodStarted:
		fmt.Printf("[%s] started\n", e.Period)
	case contracts.EventPeriodCompleted:
		fmt.Printf("[%s] completed: %s\n", e.Period, e.Message)
	case contracts.EventPeriodSkipped:
		fmt.Printf("[%s] skipped: %s\n", e.Period, e.Message)
	}
}
