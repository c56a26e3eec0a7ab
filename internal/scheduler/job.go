package scheduler

import (
	"context"
	"time"
)

// historyLimit is how many results each job keeps
const historyLimit = 100

// Job is a unit of scheduled pipeline work, such as a full pipeline run
// or an artifact prune
// ⭐ SSOT: the scheduled job contract is defined here only
type Job interface {
	// Name is the registry key used by `quant scheduler run <name>`
	Name() string

	// Run does one attempt. Wrap the error in *Permanent when a retry
	// cannot help (a broken pipeline definition, for instance).
	Run(ctx context.Context) error

	// Schedule is a six-field cron expression with seconds, such as
	// "0 0 6 * * 1-5" for weekdays at 06:00, or a descriptor like "@daily"
	Schedule() string
}

// JobResult is one execution, counting every retry attempt it took
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"` // last attempt's error
}

// JobHistory holds the latest results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends result and drops the oldest beyond historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append(h.Results[:0:0], h.Results[over:]...)
	}
}

// GetLatestResults returns up to n results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns the failed executions
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate is successes over kept results, 0 without history
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}

// last returns the start time of the newest result with the given outcome
func (h *JobHistory) last(success bool) *time.Time {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if h.Results[i].Success == success {
			t := h.Results[i].StartTime
			return &t
		}
	}
	return nil
}
