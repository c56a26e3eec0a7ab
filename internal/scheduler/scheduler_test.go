package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	fail     func(call int32) error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.fail != nil {
		return j.fail(n)
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.NewNop(), WithRetry(2, time.Millisecond))
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 6 * * 1-5"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a cron"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("b"))
	assert.Error(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
	assert.NotContains(t, s.GetJobStats(), "b")
}

func TestRunJobSync_Retries(t *testing.T) {
	tests := []struct {
		name      string
		fail      func(call int32) error
		success   bool
		attempts  int
		wantError string
	}{
		{
			name:     "first attempt succeeds",
			success:  true,
			attempts: 1,
		},
		{
			name: "succeeds on retry",
			fail: func(call int32) error {
				if call < 3 {
					return errors.New("flaky")
				}
				return nil
			},
			success:  true,
			attempts: 3,
		},
		{
			name:      "exhausts retries",
			fail:      func(int32) error { return errors.New("down") },
			attempts:  3,
			wantError: "down",
		},
		{
			name:      "permanent error stops at once",
			fail:      func(int32) error { return &Permanent{Err: errors.New("bad config")} },
			attempts:  1,
			wantError: "bad config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &fakeJob{name: "job", schedule: "@daily", fail: tt.fail}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJobSync("job")
			require.NoError(t, err)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.attempts, result.Attempts)
			assert.Equal(t, int32(tt.attempts), job.calls.Load())
			assert.Equal(t, tt.wantError, result.Error)

			history, err := s.GetJobHistory("job")
			require.NoError(t, err)
			assert.Len(t, history.Results, 1)
		})
	}

	_, err := newTestScheduler().RunJobSync("missing")
	assert.Error(t, err)
}

func TestStopCancelsRetries(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(5, time.Hour))
	job := &fakeJob{name: "job", schedule: "@daily", fail: func(int32) error { return errors.New("down") }}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult, 1)
	go func() {
		r, _ := s.RunJobSync("job")
		done <- r
	}()

	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	s.Stop()

	select {
	case r := <-done:
		assert.False(t, r.Success)
		assert.LessOrEqual(t, r.Attempts, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("job kept retrying after Stop")
	}
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "job", schedule: "@daily", fail: func(call int32) error {
		if call == 1 {
			return &Permanent{Err: errors.New("once")}
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	_, err := s.RunJobSync("job")
	require.NoError(t, err)
	_, err = s.RunJobSync("job")
	require.NoError(t, err)

	stats := s.GetJobStats()["job"]
	assert.Equal(t, "@daily", stats.Schedule)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	// the success is newest, yet the earlier failure is still reported
	require.NotNil(t, stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.False(t, stats.LastFailure.After(*stats.LastSuccess))
}

func TestJobHistory_KeepsLatest(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "job", Success: i%2 == 0, Attempts: i})
	}

	assert.Len(t, h.Results, 100)
	assert.Equal(t, 20, h.Results[0].Attempts)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetLatestResults(500), 100)
	assert.Len(t, h.GetFailedResults(), 50)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Equal(t, 0.0, (&JobHistory{}).GetSuccessRate())
}
