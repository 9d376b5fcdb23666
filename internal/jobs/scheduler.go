package jobs

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron specs, with a leading seconds field.
const (
	AdminCleanupSpec = "0 0 * * * *"
	CheckpointSpec   = "0 0 3 * * *"
)

// Job is one unit of background work.
type Job interface {
	Name() string
	Run() error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	initial []Job
	running bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger)),
		logger: logger,
	}
}

// Add schedules job on spec. A run that is still going when the next one is
// due makes the next one skip.
func (s *Scheduler) Add(spec string, job Job) error {
	wrapped := cron.NewChain(
		s.recoverer(job.Name()),
		cron.SkipIfStillRunning(cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))),
	).Then(cron.FuncJob(func() { s.execute(job) }))

	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}
	s.logger.Info("Scheduled background job", slog.String("job", job.Name()), slog.String("spec", spec))
	return nil
}

// RunOnStart also runs job once when the scheduler starts.
func (s *Scheduler) RunOnStart(job Job) {
	s.initial = append(s.initial, job)
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if s.running {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.running = true

	for _, job := range s.initial {
		go func(job Job) {
			defer s.recover(job.Name())
			s.execute(job)
		}(job)
	}

	s.cron.Start()
	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.logger.Info("Stopping background jobs...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Background jobs stopped")
}

func (s *Scheduler) execute(job Job) {
	start := time.Now()
	if err := job.Run(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
		return
	}
	s.logger.Debug("Job finished",
		slog.String("job", job.Name()),
		slog.Duration("duration", time.Since(start)))
}

func (s *Scheduler) recoverer(name string) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer s.recover(name)
			j.Run()
		})
	}
}

func (s *Scheduler) recover(name string) {
	if r := recover(); r != nil {
		s.logger.Error("Panic recovered in background job",
			slog.String("job", name),
			slog.Any("panic", r),
			slog.String("stack_trace", string(debug.Stack())))
	}
}
