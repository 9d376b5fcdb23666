package geoip

import (
	"context"
	"log/slog"
	"sync"

	"portfolio/internal/metrics"
)

const DefaultQueueSize = 1024

// Job is one deferred lookup. Apply receives the resolved (or unknown) location.
type Job struct {
	IP    string
	Apply func(Location) error
}

// Enricher resolves locations on a small worker pool so requests never wait
// on the network. When the queue is full new jobs are dropped.
type Enricher struct {
	resolver *Resolver
	queue    chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

func NewEnricher(resolver *Resolver, workers, queueSize int, logger *slog.Logger) *Enricher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	e := &Enricher{
		resolver: resolver,
		queue:    make(chan Job, queueSize),
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.work()
	}
	return e
}

// Enqueue schedules a job. It reports false when the job was dropped.
func (e *Enricher) Enqueue(job Job) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}

	select {
	case e.queue <- job:
		return true
	default:
		metrics.GeoQueueDropped.Inc()
		e.logger.Warn("Geo enrichment queue full, dropping job")
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (e *Enricher) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Enricher) work() {
	defer e.wg.Done()
	for job := range e.queue {
		e.run(job)
	}
}

func (e *Enricher) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic in geo enrichment job", slog.Any("panic", r))
		}
	}()

	loc := e.resolver.Resolve(context.Background(), job.IP)
	if err := job.Apply(loc); err != nil {
		e.logger.Error("Failed to apply geo enrichment", slog.Any("error", err))
	}
}
