package jobs_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/jobs"
	"portfolio/internal/testsupport"
)

type countingJob struct {
	runs  atomic.Int32
	panic bool
	err   error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

type fakeCleaner struct{ calls atomic.Int32 }

func (f *fakeCleaner) Cleanup() (int64, int64, error) {
	f.calls.Add(1)
	return 2, 3, nil
}

type fakeCheckpointer struct{ modes []string }

func (f *fakeCheckpointer) CheckpointWAL(mode string) error {
	f.modes = append(f.modes, mode)
	return nil
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := jobs.NewScheduler(testsupport.GetLogger())
	job := &countingJob{}
	require.NoError(t, s.Add("* * * * * *", job))
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerSurvivesPanicsAndErrors(t *testing.T) {
	s := jobs.NewScheduler(testsupport.GetLogger())
	panicking := &countingJob{panic: true}
	failing := &countingJob{err: errors.New("nope")}
	s.RunOnStart(panicking)
	s.RunOnStart(failing)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return panicking.runs.Load() == 1 && failing.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := jobs.NewScheduler(testsupport.GetLogger())
	assert.Error(t, s.Add("not a spec", &countingJob{}))
}

func TestAdminCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := jobs.NewAdminCleanupJob(cleaner, testsupport.GetLogger())
	assert.Equal(t, "admin_cleanup", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, int32(1), cleaner.calls.Load())
}

func TestCheckpointJob(t *testing.T) {
	db := &fakeCheckpointer{}
	require.NoError(t, jobs.NewCheckpointJob(db, testsupport.GetLogger()).Run())
	assert.Equal(t, []string{"TRUNCATE"}, db.modes)
}
