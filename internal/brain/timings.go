package brain

import (
	"sync"
	"time"

	"github.com/wonny/frontier/internal/contracts"
)

// Timing is one measured (period, stage) duration
type Timing struct {
	Period   string          `json:"period"`
	Stage    contracts.Stage `json:"stage"`
	Duration time.Duration   `json:"duration"`
}

// Timings accumulates stage durations of one run.
// A Timings belongs to exactly one run; there is no process-wide recorder.
type Timings struct {
	mu      sync.Mutex
	entries []Timing
}

// NewTimings creates an empty accumulator
func NewTimings() *Timings {
	return &Timings{}
}

// Record appends one measurement
func (t *Timings) Record(period string, stage contracts.Stage, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Timing{Period: period, Stage: stage, Duration: d})
}

// Entries returns a copy of the measurements in record order
func (t *Timings) Entries() []Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Timing, len(t.entries))
	copy(out, t.entries)
	return out
}

// ByStage sums durations per stage
func (t *Timings) ByStage() map[contracts.Stage]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[contracts.Stage]time.Duration)
	for _, e := range t.entries {
		out[e.Stage] += e.Duration
	}
	return out
}

// Total sums every measurement
func (t *Timings) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	for _, e := range t.entries {
		total += e.Duration
	}
	return total
}
