package brain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/pkg/logger"
)

// Run states
const (
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// RunStatus is the externally visible state of one run
type RunStatus struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Result     *RunResult `json:"result,omitempty"`
}

// Service runs one pipeline at a time and remembers past runs.
// The HTTP API and the scheduler share one Service.
type Service struct {
	orch   *Orchestrator
	sink   contracts.ProgressSink
	logger *logger.Logger

	running sync.Mutex // held for the duration of a run

	mu   sync.RWMutex
	runs map[string]*RunStatus
}

// NewService creates a run service; sink receives the events of every run
func NewService(orch *Orchestrator, sink contracts.ProgressSink, log *logger.Logger) *Service {
	if sink == nil {
		sink = contracts.NopSink{}
	}
	return &Service{
		orch:   orch,
		sink:   sink,
		logger: log,
		runs:   make(map[string]*RunStatus),
	}
}

// Run executes cfg synchronously. It fails with ErrRunInProgress instead of
// waiting when another run holds the service.
func (s *Service) Run(ctx context.Context, cfg *pipelineconfig.Config, trigger string) (*RunResult, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	id := GenerateRunID()
	s.track(id, trigger)
	result, err := s.orch.Run(ctx, cfg, RunOptions{RunID: id, Sink: s.sink})
	s.finish(id, result, err)
	return result, err
}

// Start launches cfg in the background and returns its run ID
func (s *Service) Start(ctx context.Context, cfg *pipelineconfig.Config, trigger string) (string, error) {
	if !s.running.TryLock() {
		return "", ErrRunInProgress
	}

	id := GenerateRunID()
	s.track(id, trigger)

	go func() {
		defer s.running.Unlock()
		result, err := s.orch.Run(ctx, cfg, RunOptions{RunID: id, Sink: s.sink})
		s.finish(id, result, err)
	}()
	return id, nil
}

// Get returns a copy of the status of run id
func (s *Service) Get(id string) (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[id]
	if !ok {
		return RunStatus{}, false
	}
	return *st, true
}

// List returns every known run, newest first
func (s *Service) List() []RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunStatus, 0, len(s.runs))
	for _, st := range s.runs {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *Service) track(id, trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = &RunStatus{ID: id, State: StateRunning, Trigger: trigger, StartedAt: time.Now().UTC()}
}

func (s *Service) finish(id string, result *RunResult, err error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.runs[id]
	st.FinishedAt = &now
	st.Result = result
	if err != nil {
		st.State = StateFailed
		st.Error = err.Error()
		s.logger.WithError(err).WithField("run_id", id).Error("Pipeline run failed")
		return
	}
	st.State = StateSucceeded
}
