package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skypro1111/stt-stream-service/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolStopped is returned by Submit after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Job is a unit of work executed by a pool worker
type Job func()

// Pool executes jobs on a fixed set of goroutines
type Pool struct {
	jobs    chan Job
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool

	// Statistics
	submitted uint64
	completed uint64
	rejected  uint64
	panics    uint64
	statsMu   sync.Mutex
}

// Stats represents pool statistics
type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Rejected  uint64 `json:"rejected"`
	Panics    uint64 `json:"panics"`
}

// NewPool starts workers goroutines reading from a queue of queueSize jobs
func NewPool(workers, queueSize int, logger *slog.Logger, m *metrics.Metrics) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}

	if queueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", queueSize)
	}

	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		logger:  logger.With(slog.String("component", "worker_pool")),
		metrics: m,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("Worker pool started",
		slog.Int("workers", workers),
		slog.Int("queue_size", queueSize),
	)

	return p, nil
}

// Submit queues job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		p.statsMu.Lock()
		p.submitted++
		p.statsMu.Unlock()
		p.metrics.SetPoolQueueSize(len(p.jobs))
		return nil
	default:
		p.statsMu.Lock()
		p.rejected++
		p.statsMu.Unlock()
		p.metrics.RecordPoolRejection()
		return ErrQueueFull
	}
}

// Stop rejects new jobs, runs the ones already queued and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()

	stats := p.GetStats()
	p.logger.Info("Worker pool stopped",
		slog.Uint64("completed", stats.Completed),
		slog.Uint64("rejected", stats.Rejected),
	)
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.metrics.SetPoolQueueSize(len(p.jobs))
		p.run(workerID, job)
	}
}

// run executes one job, keeping the worker alive if it panics
func (p *Pool) run(workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.statsMu.Lock()
			p.panics++
			p.statsMu.Unlock()
			p.logger.Error("Job panicked",
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
			)
		}
		p.statsMu.Lock()
		p.completed++
		p.statsMu.Unlock()
	}()

	job()
}

// GetStats returns current pool statistics
func (p *Pool) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	return Stats{
		Workers:   p.workers,
		Queued:    len(p.jobs),
		Capacity:  cap(p.jobs),
		Submitted: p.submitted,
		Completed: p.completed,
		Rejected:  p.rejected,
		Panics:    p.panics,
	}
}
