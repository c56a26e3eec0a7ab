package pipelineconfig

import (
	"fmt"
	"strings"

	"github.com/wonny/frontier/internal/contracts"
)

// Warning is a recommended-practice violation; the run proceeds
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints and returns the first violation
// as a *contracts.ConfigurationError
func Validate(cfg *Config) error {
	// === Schedule ===
	if _, err := contracts.ParseFrequency(cfg.Schedule.Frequency); err != nil {
		return contracts.NewConfigurationError("schedule.frequency", "unknown frequency %q", cfg.Schedule.Frequency)
	}
	if len(cfg.Schedule.Years) == 0 {
		return contracts.NewConfigurationError("schedule.years", "required")
	}
	for _, y := range cfg.Schedule.Years {
		if y < 1900 || y > 2200 {
			return contracts.NewConfigurationError("schedule.years", "year %d out of range [1900, 2200]", y)
		}
	}
	for _, m := range cfg.Schedule.Months {
		if m < 1 || m > 12 {
			return contracts.NewConfigurationError("schedule.months", "month %d outside 1-12", m)
		}
	}

	// === Data ===
	switch cfg.Data.Source {
	case "":
		return contracts.NewConfigurationError("data.source", "required")
	case "csv":
		if cfg.Data.CSVPath == "" {
			return contracts.NewConfigurationError("data.csv_path", "required for csv source")
		}
	}
	if cfg.Data.Breaker.OpenTimeout < 0 {
		return contracts.NewConfigurationError("data.breaker.open_timeout", "must be >= 0")
	}

	// === Stages ===
	stages := []struct {
		field   string
		methods []string
		require bool
	}{
		{"expected_returns.enabled_methods", cfg.ExpectedReturns.EnabledMethods, true},
		{"risk_models.enabled_methods", cfg.RiskModels.EnabledMethods, true},
		{"optimization.enabled_methods", cfg.Optimization.EnabledMethods, true},
		{"allocation.enabled_methods", cfg.Allocation.EnabledMethods, false},
		{"performance.enabled_methods", cfg.Performance.EnabledMethods, false},
	}
	for _, s := range stages {
		if s.require && len(s.methods) == 0 {
			return contracts.NewConfigurationError(s.field, "at least one method is required")
		}
		for i, m := range s.methods {
			if strings.TrimSpace(m) == "" {
				return contracts.NewConfigurationError(fmt.Sprintf("%s[%d]", s.field, i), "empty method name")
			}
		}
	}

	// === Numbers ===
	if cfg.Allocation.Budget <= 0 {
		return contracts.NewConfigurationError("allocation.budget", "must be > 0")
	}
	if err := validateRate(cfg.Optimization.RiskFreeRate); err != nil {
		return contracts.NewConfigurationError("optimization.risk_free_rate", "%v", err)
	}
	if err := validateRate(cfg.Performance.RiskFreeRate); err != nil {
		return contracts.NewConfigurationError("performance.risk_free_rate", "%v", err)
	}
	if cfg.Performance.TradingDays <= 0 {
		return contracts.NewConfigurationError("performance.trading_days", "must be > 0")
	}
	if cfg.Optimization.MonteCarlo.Simulations < 0 {
		return contracts.NewConfigurationError("optimization.monte_carlo.simulations", "must be >= 0")
	}

	return nil
}

// Warn returns non-fatal findings
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Schedule.Frequency != string(contracts.FrequencyMonthly) && len(cfg.Schedule.Months) > 0 {
		warnings = append(warnings, Warning{
			Code:    "MONTHS_IGNORED",
			Message: fmt.Sprintf("schedule.months is ignored for %s frequency", cfg.Schedule.Frequency),
		})
	}

	for field, methods := range map[string][]string{
		"expected_returns": cfg.ExpectedReturns.EnabledMethods,
		"risk_models":      cfg.RiskModels.EnabledMethods,
		"optimization":     cfg.Optimization.EnabledMethods,
		"allocation":       cfg.Allocation.EnabledMethods,
		"performance":      cfg.Performance.EnabledMethods,
	} {
		if dup := firstDuplicate(methods); dup != "" {
			warnings = append(warnings, Warning{
				Code:    "DUPLICATE_METHOD",
				Message: fmt.Sprintf("%s lists %s more than once; it runs once", field, dup),
			})
		}
	}

	if cfg.Optimization.MonteCarlo.Simulations > 100_000 {
		warnings = append(warnings, Warning{
			Code:    "MONTE_CARLO_LARGE",
			Message: fmt.Sprintf("%d simulations per period is slow", cfg.Optimization.MonteCarlo.Simulations),
		})
	}

	if len(cfg.Allocation.EnabledMethods) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_ALLOCATORS",
			Message: "no allocators enabled; allocation and performance stages produce nothing",
		})
	}

	return warnings
}

func validateRate(v float64) error {
	if v < 0 || v >= 1 {
		return fmt.Errorf("must be in [0, 1), got %v", v)
	}
	return nil
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}
