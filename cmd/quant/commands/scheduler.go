package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/scheduler"
	"github.com/wonny/frontier/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduler management",
	Long: `Starts the scheduler or manages its jobs.

Subcommands:
  start   - start the scheduler daemon
  list    - list the registered jobs
  run     - run one job now and wait for it

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run pipeline_run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and schedules every registered job.

Registered jobs:
- pipeline_run: schedule.cron from the pipeline YAML (default weekdays 06:00)
- artifact_prune: Sundays 03:00 (drops unreadable and stale-schema artifacts)

The pipeline YAML is reread before every run.
Stop the scheduler with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Frontier Scheduler ===")

	s, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer s.Close()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s (next %s)\n", name, sched.Next(name).Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	for name, stat := range sched.GetJobStats() {
		fmt.Printf("📊 %s: %d runs, %d failures\n", name, stat.TotalRuns, stat.FailureCount)
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	s, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer s.Close()

	stats := sched.GetJobStats()
	widths := []int{16, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	s, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", jobName, result.Duration.Seconds()))
	return nil
}

func initScheduler() (*stack, *scheduler.Scheduler, error) {
	// 1. Open cache, source and connections
	s, err := openStack(context.Background(), true)
	if err != nil {
		return nil, nil, err
	}

	// 2. Run service shared by every pipeline job
	svc := brain.NewService(s.orchestrator(), nil, s.log)
	loader := jobs.ConfigLoader(pipelineLoader(s.env))

	// 3. Create scheduler
	sched := scheduler.New(s.log)

	// 4. Register jobs
	for _, job := range []scheduler.Job{
		jobs.NewPipelineRunJob(svc, loader, s.pipeline.Schedule.Cron, s.log),
		jobs.NewArtifactPruneJob(s.cache, loader, s.log),
	} {
		if err := sched.AddJob(job); err != nil {
			s.Close()
			return nil, nil, err
		}
	}

	return s, sched, nil
}
