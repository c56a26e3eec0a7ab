package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/internal/scheduler"
	"github.com/wonny/frontier/pkg/logger"
)

// DefaultPipelineSchedule runs on weekdays at 06:00 when the config has no cron
const DefaultPipelineSchedule = "0 0 6 * * 1-5"

// ConfigLoader returns a fresh pipeline config for every run
type ConfigLoader func() (*pipelineconfig.Config, error)

// PipelineRunJob runs the full pipeline on a cron schedule
type PipelineRunJob struct {
	service  *brain.Service
	config   ConfigLoader
	schedule string
	logger   *logger.Logger
}

// NewPipelineRunJob creates the job. An empty schedule falls back to
// DefaultPipelineSchedule.
func NewPipelineRunJob(svc *brain.Service, config ConfigLoader, schedule string, log *logger.Logger) *PipelineRunJob {
	if schedule == "" {
		schedule = DefaultPipelineSchedule
	}
	return &PipelineRunJob{service: svc, config: config, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *PipelineRunJob) Name() string {
	return "pipeline_run"
}

// Schedule returns the cron schedule
func (j *PipelineRunJob) Schedule() string {
	return j.schedule
}

// Run executes one pipeline run.
// Configuration errors are permanent; an overlapping run is retried.
func (j *PipelineRunJob) Run(ctx context.Context) error {
	cfg, err := j.config()
	if err != nil {
		return &scheduler.Permanent{Err: fmt.Errorf("load pipeline config: %w", err)}
	}

	result, err := j.service.Run(ctx, cfg, "scheduler")
	switch {
	case err == nil:
	case contracts.IsConfigurationError(err):
		return &scheduler.Permanent{Err: err}
	case errors.Is(err, brain.ErrRunInProgress):
		return err
	default:
		return fmt.Errorf("pipeline run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"completed": result.Completed(),
		"periods":   len(result.Periods),
		"duration":  result.Duration,
	}).Info("Scheduled pipeline run finished")

	return nil
}
