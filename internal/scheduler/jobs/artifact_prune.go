package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/pkg/logger"
)

// ArtifactPruneJob deletes cached artifacts that the cache would refuse to
// load anyway: unreadable envelopes and envelopes of another schema version.
type ArtifactPruneJob struct {
	cache  *artifact.Cache
	config ConfigLoader
	logger *logger.Logger
}

// NewArtifactPruneJob creates a new prune job
func NewArtifactPruneJob(cache *artifact.Cache, config ConfigLoader, log *logger.Logger) *ArtifactPruneJob {
	return &ArtifactPruneJob{cache: cache, config: config, logger: log}
}

// Name returns the job name
func (j *ArtifactPruneJob) Name() string {
	return "artifact_prune"
}

// Schedule returns the cron schedule (Sundays 03:00)
func (j *ArtifactPruneJob) Schedule() string {
	return "0 0 3 * * 0"
}

// Run prunes every scheduled period
func (j *ArtifactPruneJob) Run(ctx context.Context) error {
	cfg, err := j.config()
	if err != nil {
		return fmt.Errorf("load pipeline config: %w", err)
	}
	periods, err := brain.Schedule(cfg)
	if err != nil {
		return err
	}

	removed := 0
	for _, p := range periods {
		n, err := Prune(ctx, j.cache, p.StorageKey)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Artifact prune completed")
	}
	return nil
}

// Prune removes the stale artifacts of one period and returns how many went
func Prune(ctx context.Context, cache *artifact.Cache, period string) (int, error) {
	keys, err := cache.Store().List(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", period, err)
	}

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		data, meta, err := cache.Raw(ctx, key)
		if data == nil && err != nil {
			return removed, fmt.Errorf("read %s: %w", key, err)
		}
		if err == nil && meta != nil && meta.Schema == artifact.SchemaVersion {
			continue
		}
		if err := cache.Store().Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}
