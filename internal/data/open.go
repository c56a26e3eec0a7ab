package data

import (
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/pkg/logger"
)

// Source names accepted by data.source
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// NewSource builds the configured source wrapped in a circuit breaker.
// db is required for the postgres source only.
func NewSource(cfg pipelineconfig.DataConfig, db Querier, log *logger.Logger) (Source, error) {
	var src Source
	switch cfg.Source {
	case SourceCSV:
		if cfg.CSVPath == "" {
			return nil, contracts.NewConfigurationError("data.csv_path", "required for the csv source")
		}
		src = NewCSVSource(cfg.CSVPath)
	case SourcePostgres:
		if db == nil {
			return nil, contracts.NewConfigurationError("data.source", "postgres source requires DATABASE_URL")
		}
		pg, err := NewPostgresSource(db, cfg.Table)
		if err != nil {
			return nil, err
		}
		src = pg
	default:
		return nil, contracts.NewConfigurationError("data.source", "unknown source %q", cfg.Source)
	}

	return NewBreakerSource(src, BreakerConfig{
		Name:        cfg.Source,
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, log), nil
}
