// Package pipelineconfig loads the YAML pipeline definition: schedule,
// data source and the ordered enabled methods of every stage.
package pipelineconfig

import "time"

// Config is the whole pipeline definition
// ⭐ SSOT: which periods run and which methods each stage enables
type Config struct {
	Meta            Meta               `yaml:"meta" json:"meta"`
	Schedule        ScheduleConfig     `yaml:"schedule" json:"schedule"`
	Data            DataConfig         `yaml:"data" json:"data"`
	ExpectedReturns StageConfig        `yaml:"expected_returns" json:"expected_returns"`
	RiskModels      StageConfig        `yaml:"risk_models" json:"risk_models"`
	Optimization    OptimizationConfig `yaml:"optimization" json:"optimization"`
	Allocation      AllocationConfig   `yaml:"allocation" json:"allocation"`
	Performance     PerformanceConfig  `yaml:"performance" json:"performance"`
}

// Meta identifies the pipeline definition
type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ScheduleConfig is the (years, months, frequency) request
type ScheduleConfig struct {
	Years     []int  `yaml:"years" json:"years"`
	Months    []int  `yaml:"months,omitempty" json:"months,omitempty"`
	Frequency string `yaml:"frequency" json:"frequency"`
	Cron      string `yaml:"cron,omitempty" json:"cron,omitempty"` // scheduler only
}

// DataConfig selects the price source
type DataConfig struct {
	Source  string        `yaml:"source" json:"source"` // csv, postgres
	CSVPath string        `yaml:"csv_path,omitempty" json:"csv_path,omitempty"`
	Table   string        `yaml:"table,omitempty" json:"table,omitempty"`
	Tickers []string      `yaml:"tickers,omitempty" json:"tickers,omitempty"`
	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig configures the circuit breaker around the price source
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" json:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout" json:"open_timeout"`
}

// StageConfig lists the enabled methods of a stage, in run order
type StageConfig struct {
	EnabledMethods []string `yaml:"enabled_methods" json:"enabled_methods"`
}

// OptimizationConfig configures the combinatorial sweep
type OptimizationConfig struct {
	EnabledMethods []string         `yaml:"enabled_methods" json:"enabled_methods"`
	RiskFreeRate   float64          `yaml:"risk_free_rate" json:"risk_free_rate"`
	MonteCarlo     MonteCarloConfig `yaml:"monte_carlo" json:"monte_carlo"`
}

// MonteCarloConfig enables the random-portfolio rows; 0 simulations disables them
type MonteCarloConfig struct {
	Simulations int    `yaml:"simulations" json:"simulations"`
	Seed        uint64 `yaml:"seed" json:"seed"`
}

// AllocationConfig configures the allocation stage
type AllocationConfig struct {
	EnabledMethods []string `yaml:"enabled_methods" json:"enabled_methods"`
	Budget         float64  `yaml:"budget" json:"budget"`
}

// PerformanceConfig configures the performance stage.
// EnabledMethods are extra metrics on top of return, volatility and Sharpe.
type PerformanceConfig struct {
	EnabledMethods []string `yaml:"enabled_methods,omitempty" json:"enabled_methods,omitempty"`
	RiskFreeRate   float64  `yaml:"risk_free_rate" json:"risk_free_rate"`
	TradingDays    int      `yaml:"trading_days" json:"trading_days"`
}

// Defaults
const (
	DefaultBudget       = 1_000_000.0
	DefaultRiskFreeRate = 0.02
	DefaultTradingDays  = 252
	DefaultMaxFailures  = 3
	DefaultOpenTimeout  = 30 * time.Second

	DefaultMonteCarloSeed uint64 = 42
)

// presets returns the values a YAML document overlays. Keys absent from the
// document keep them; an explicit 0 replaces them.
func presets() Config {
	return Config{
		Optimization: OptimizationConfig{
			RiskFreeRate: DefaultRiskFreeRate,
			MonteCarlo:   MonteCarloConfig{Seed: DefaultMonteCarloSeed},
		},
		Performance: PerformanceConfig{RiskFreeRate: DefaultRiskFreeRate},
	}
}

// Default returns a runnable definition over a local CSV file
func Default() *Config {
	cfg := &Config{
		Meta: Meta{Name: "default"},
		Schedule: ScheduleConfig{
			Years:     []int{2023},
			Frequency: "yearly",
		},
		Data: DataConfig{
			Source:  "csv",
			CSVPath: "data/prices.csv",
		},
		ExpectedReturns: StageConfig{EnabledMethods: []string{
			"ArithmeticMeanHistorical", "CAGRMeanHistorical", "EMAHistorical", "LogMeanHistorical",
		}},
		RiskModels: StageConfig{EnabledMethods: []string{
			"SampleCovariance", "SemiCovariance", "ExponentialCovariance", "LedoitWolfConstantVariance",
		}},
		Optimization: OptimizationConfig{
			EnabledMethods: []string{
				"MaxSharpe", "MinVolatility", "MinVolatilityShort", "EqualWeight", "InverseVolatility",
			},
			RiskFreeRate: DefaultRiskFreeRate,
			MonteCarlo:   MonteCarloConfig{Seed: DefaultMonteCarloSeed},
		},
		Allocation: AllocationConfig{EnabledMethods: []string{
			"GreedyPortfolio", "WeightedFloorAllocator", "ProportionalRoundingAllocator", "CustomGreedyAllocation",
		}},
		Performance: PerformanceConfig{
			EnabledMethods: []string{"MaxDrawdown", "Sortino"},
			RiskFreeRate:   DefaultRiskFreeRate,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values that have a documented default.
// Fields where zero is meaningful (risk-free rates, the Monte Carlo seed)
// come from presets, applied before decoding.
func applyDefaults(cfg *Config) {
	if cfg.Allocation.Budget == 0 {
		cfg.Allocation.Budget = DefaultBudget
	}
	if cfg.Performance.TradingDays == 0 {
		cfg.Performance.TradingDays = DefaultTradingDays
	}
	if cfg.Data.Breaker.MaxFailures == 0 {
		cfg.Data.Breaker.MaxFailures = DefaultMaxFailures
	}
	if cfg.Data.Breaker.OpenTimeout == 0 {
		cfg.Data.Breaker.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.Data.Table == "" {
		cfg.Data.Table = "daily_prices"
	}
}
