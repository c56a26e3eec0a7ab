package commands

import (
	"context"
	"fmt"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/data"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/pkg/config"
	"github.com/wonny/frontier/pkg/database"
	"github.com/wonny/frontier/pkg/logger"
	pkgredis "github.com/wonny/frontier/pkg/redis"
)

// stack holds everything a command needs to run or inspect the pipeline
type stack struct {
	env      *config.Config
	pipeline *pipelineconfig.Config
	log      *logger.Logger
	metrics  *metrics.Registry
	cache    *artifact.Cache
	source   data.Source
	db       *database.DB
	rdb      *pkgredis.Client
}

// loadEnv loads the process configuration and the logger
func loadEnv() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// pipelinePath resolves --config over PIPELINE_CONFIG
func pipelinePath(cfg *config.Config) string {
	if configFile != "" {
		return configFile
	}
	return cfg.PipelineConfig
}

// pipelineLoader rereads the YAML on every call so edits apply to the next run
func pipelineLoader(cfg *config.Config) func() (*pipelineconfig.Config, error) {
	path := pipelinePath(cfg)
	return func() (*pipelineconfig.Config, error) {
		p, _, err := pipelineconfig.Load(path)
		return p, err
	}
}

// openStack opens the cache and, when withSource is set, the price source.
// The database pool is opened only for the postgres source.
func openStack(ctx context.Context, withSource bool) (*stack, error) {
	env, log, err := loadEnv()
	if err != nil {
		return nil, err
	}
	pipeline, err := pipelineLoader(env)()
	if err != nil {
		return nil, err
	}

	s := &stack{env: env, pipeline: pipeline, log: log, metrics: metrics.New()}

	s.rdb, err = pkgredis.New(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	codec, err := artifact.NewCodec(env.Cache.Codec)
	if err != nil {
		s.Close()
		return nil, err
	}
	store, err := artifact.OpenStore(env.Cache.Backend, env.OutputDir, codec, s.rdb, env.Cache.Prefix)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.cache = artifact.NewCache(store, codec, log, artifact.WithObserver(s.metrics))

	if !withSource {
		return s, nil
	}

	var q data.Querier
	if pipeline.Data.Source == data.SourcePostgres {
		s.db, err = database.New(ctx, env)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		q = s.db.Pool
		log.Info("Connected to database")
	}

	s.source, err = data.NewSource(pipeline.Data, q, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"source":  data.Describe(s.source),
		"backend": env.Cache.Backend,
		"codec":   codec.Name(),
	}).Debug("Pipeline stack ready")

	return s, nil
}

// orchestrator wires the built-in strategies over the stack
func (s *stack) orchestrator() *brain.Orchestrator {
	return brain.NewOrchestrator(brain.DefaultDependencies(s.source, s.cache, s.metrics, s.env.OutputDir), s.log)
}

// Close releases every connection the stack opened
func (s *stack) Close() {
	if s.cache != nil {
		if err := s.cache.Store().Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close artifact store")
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
}
