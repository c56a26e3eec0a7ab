package pipelineconfig

import (
	"os"
	"testing"
	"time"

	"github.com/wonny/frontier/internal/contracts"
)

func TestLoad(t *testing.T) {
	path := "../../config/pipeline.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Schedule.Frequency != "yearly" {
		t.Errorf("expected frequency=yearly, got %s", cfg.Schedule.Frequency)
	}
	if cfg.Data.Breaker.OpenTimeout != 30*time.Second {
		t.Errorf("expected open_timeout=30s, got %s", cfg.Data.Breaker.OpenTimeout)
	}
	if len(cfg.Optimization.EnabledMethods) != 5 {
		t.Errorf("expected 5 optimizers, got %d", len(cfg.Optimization.EnabledMethods))
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	t.Logf("config hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	data := []byte(`
schedule:
  years: [2023]
  frequency: yearly
  frequncy: monthly
`)
	_, err := Parse(data)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !contracts.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestParse_AppliesDefaults(t *testing.T) {
	data := []byte(`
schedule:
  years: [2023]
  frequency: yearly
data:
  source: csv
  csv_path: prices.csv
expected_returns:
  enabled_methods: [ArithmeticMeanHistorical]
risk_models:
  enabled_methods: [SampleCovariance]
optimization:
  enabled_methods: [MaxSharpe]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Allocation.Budget != DefaultBudget {
		t.Errorf("Budget = %v, want %v", cfg.Allocation.Budget, DefaultBudget)
	}
	if cfg.Performance.RiskFreeRate != DefaultRiskFreeRate {
		t.Errorf("RiskFreeRate = %v, want %v", cfg.Performance.RiskFreeRate, DefaultRiskFreeRate)
	}
	if cfg.Performance.TradingDays != DefaultTradingDays {
		t.Errorf("TradingDays = %d, want %d", cfg.Performance.TradingDays, DefaultTradingDays)
	}
	if cfg.Optimization.RiskFreeRate != DefaultRiskFreeRate {
		t.Errorf("optimization RiskFreeRate = %v, want %v", cfg.Optimization.RiskFreeRate, DefaultRiskFreeRate)
	}
	if cfg.Optimization.MonteCarlo.Seed != DefaultMonteCarloSeed {
		t.Errorf("Seed = %d, want %d", cfg.Optimization.MonteCarlo.Seed, DefaultMonteCarloSeed)
	}
}

func TestParse_KeepsExplicitZeros(t *testing.T) {
	data := []byte(`
schedule:
  years: [2023]
  frequency: yearly
data:
  source: csv
  csv_path: prices.csv
expected_returns:
  enabled_methods: [ArithmeticMeanHistorical]
risk_models:
  enabled_methods: [SampleCovariance]
optimization:
  enabled_methods: [MaxSharpe]
  risk_free_rate: 0
  monte_carlo:
    simulations: 100
    seed: 0
performance:
  risk_free_rate: 0
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Optimization.RiskFreeRate != 0 {
		t.Errorf("optimization RiskFreeRate = %v, want 0", cfg.Optimization.RiskFreeRate)
	}
	if cfg.Performance.RiskFreeRate != 0 {
		t.Errorf("performance RiskFreeRate = %v, want 0", cfg.Performance.RiskFreeRate)
	}
	if cfg.Optimization.MonteCarlo.Seed != 0 {
		t.Errorf("Seed = %d, want 0", cfg.Optimization.MonteCarlo.Seed)
	}
	if cfg.Optimization.MonteCarlo.Simulations != 100 {
		t.Errorf("Simulations = %d, want 100", cfg.Optimization.MonteCarlo.Simulations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"unknown frequency", func(c *Config) { c.Schedule.Frequency = "weekly" }, "schedule.frequency"},
		{"no years", func(c *Config) { c.Schedule.Years = nil }, "schedule.years"},
		{"month 13", func(c *Config) { c.Schedule.Frequency = "monthly"; c.Schedule.Months = []int{13} }, "schedule.months"},
		{"month 0", func(c *Config) { c.Schedule.Months = []int{0} }, "schedule.months"},
		{"missing source", func(c *Config) { c.Data.Source = "" }, "data.source"},
		{"csv without path", func(c *Config) { c.Data.CSVPath = "" }, "data.csv_path"},
		{"no risk models", func(c *Config) { c.RiskModels.EnabledMethods = nil }, "risk_models.enabled_methods"},
		{"empty method name", func(c *Config) { c.Optimization.EnabledMethods = []string{"MaxSharpe", " "} }, "optimization.enabled_methods[1]"},
		{"negative budget", func(c *Config) { c.Allocation.Budget = -1 }, "allocation.budget"},
		{"rate too large", func(c *Config) { c.Performance.RiskFreeRate = 1.5 }, "performance.risk_free_rate"},
		{"negative simulations", func(c *Config) { c.Optimization.MonteCarlo.Simulations = -1 }, "optimization.monte_carlo.simulations"},
		{"no allocators is allowed", func(c *Config) { c.Allocation.EnabledMethods = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			ce, ok := err.(*contracts.ConfigurationError)
			if !ok {
				t.Fatalf("expected *ConfigurationError, got %T (%v)", err, err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Schedule.Months = []int{1}
	cfg.ExpectedReturns.EnabledMethods = append(cfg.ExpectedReturns.EnabledMethods, "CAGRMeanHistorical")

	codes := make(map[string]bool)
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}

	if !codes["MONTHS_IGNORED"] {
		t.Error("expected MONTHS_IGNORED")
	}
	if !codes["DUPLICATE_METHOD"] {
		t.Error("expected DUPLICATE_METHOD")
	}
	if codes["NO_ALLOCATORS"] {
		t.Error("default config enables allocators")
	}
}
