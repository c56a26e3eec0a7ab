package contracts

import (
	"errors"
	"fmt"
)

// ConfigurationError is fatal to the whole run
// (invalid frequency, multiyear with fewer than two years, unresolvable data source)
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a ConfigurationError for a field
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DataUnavailableError is fatal to one period, not to the run
type DataUnavailableError struct {
	Period string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no price data for period %s", e.Period)
	}
	return fmt.Sprintf("no price data for period %s: %v", e.Period, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// StrategyFailure is an error returned by one strategy invocation.
// It is recorded inline in the stage result and never stops the pipeline.
type StrategyFailure struct {
	Stage  Stage
	Method string
	Err    error
}

func (e *StrategyFailure) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Stage, e.Method, e.Err)
}

func (e *StrategyFailure) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsDataUnavailable reports whether err is (or wraps) a DataUnavailableError
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}
