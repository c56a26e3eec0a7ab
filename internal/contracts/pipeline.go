package contracts

import "time"

// Pipeline stage definitions (SSOT)
// Every log field, cache key and metric label uses these constants.
//
// Flow:
//   data → expected_return → risk_model → optimization → allocation → performance

// Stage represents a pipeline stage
type Stage string

const (
	// StageData retrieves and cleans the period's price series
	StageData Stage = "data"

	// StageExpectedReturn estimates per-ticker expected returns, one column per method
	StageExpectedReturn Stage = "expected_return"

	// StageRiskModel estimates a covariance-like matrix per method
	StageRiskModel Stage = "risk_model"

	// StageOptimization runs the (return type × risk model × optimizer) sweep
	StageOptimization Stage = "optimization"

	// StageAllocation converts weights into integer share counts
	StageAllocation Stage = "allocation"

	// StagePerformance scores every allocation over the period's prices
	StagePerformance Stage = "performance"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageData:
		return "S0"
	case StageExpectedReturn:
		return "S1"
	case StageRiskModel:
		return "S2"
	case StageOptimization:
		return "S3"
	case StageAllocation:
		return "S4"
	case StagePerformance:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageData:
		return "price data retrieval"
	case StageExpectedReturn:
		return "expected return estimation"
	case StageRiskModel:
		return "risk model estimation"
	case StageOptimization:
		return "portfolio optimization sweep"
	case StageAllocation:
		return "discrete share allocation"
	case StagePerformance:
		return "performance scoring"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageData,
		StageExpectedReturn,
		StageRiskModel,
		StageOptimization,
		StageAllocation,
		StagePerformance,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// EventKind classifies progress events
type EventKind string

const (
	EventRunStarted      EventKind = "run_started"
	EventPeriodStarted   EventKind = "period_started"
	EventStageCompleted  EventKind = "stage_completed"
	EventStrategyFailed  EventKind = "strategy_failed"
	EventPeriodSkipped   EventKind = "period_skipped"
	EventPeriodCompleted EventKind = "period_completed"
	EventRunCompleted    EventKind = "run_completed"
)

// Event is one progress notification emitted while a run executes
type Event struct {
	RunID   string    `json:"run_id"`
	Kind    EventKind `json:"kind"`
	Period  string    `json:"period,omitempty"`
	Stage   Stage     `json:"stage,omitempty"`
	Method  string    `json:"method,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// ProgressSink receives progress events. Implementations must not block.
type ProgressSink interface {
	Publish(event Event)
}

// NopSink discards all events
type NopSink struct{}

// Publish implements ProgressSink
func (NopSink) Publish(Event) {}
