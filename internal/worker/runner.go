package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

// Queue is the job storage the runner drains
type Queue interface {
	Enqueue(ctx context.Context, job *domain.Job) error
	EnqueueAt(ctx context.Context, job *domain.Job, at time.Time) error
	PromoteDue(ctx context.Context, now time.Time, limit int) (int, error)
	Dequeue(ctx context.Context, n int) ([]*domain.Job, error)
}

// Handler processes one job. Returning domain.Permanent(err) skips retries.
type Handler func(ctx context.Context, job *domain.Job) error

// JobRunner periodically drains the job queue and dispatches jobs by type
type JobRunner struct {
	queue    Queue
	handlers map[domain.JobType]Handler
	config   *config.JobsConfig
	clock    func() time.Time
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewJobRunner creates a new job runner
func NewJobRunner(queue Queue, cfg *config.JobsConfig, clock func() time.Time, logger *slog.Logger) *JobRunner {
	if clock == nil {
		clock = time.Now
	}
	return &JobRunner{
		queue:    queue,
		handlers: make(map[domain.JobType]Handler),
		config:   cfg,
		clock:    clock,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Handle registers the handler for a job type
func (w *JobRunner) Handle(jobType domain.JobType, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

// Start begins polling the queue
func (w *JobRunner) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("job runner started", "poll_interval", w.config.PollInterval)

	go w.run(ctx)
	return nil
}

// Stop stops polling and waits for the current batch to finish
func (w *JobRunner) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("job runner stopped")
	return nil
}

// IsRunning returns whether the runner is currently polling
func (w *JobRunner) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *JobRunner) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce promotes due jobs and processes one batch of ready jobs. It
// returns the number of jobs dispatched.
func (w *JobRunner) RunOnce(ctx context.Context) int {
	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	if _, err := w.queue.PromoteDue(ctx, w.clock(), batchSize); err != nil {
		w.logger.Error("failed to promote delayed jobs", "error", err)
	}

	jobs, err := w.queue.Dequeue(ctx, batchSize)
	if err != nil {
		w.logger.Error("failed to dequeue jobs", "error", err)
		return 0
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			w.requeue(ctx, jobs[i:])
			return i
		}
		w.process(ctx, job)
	}
	return len(jobs)
}

// requeue puts popped jobs back on the ready list unchanged. It writes with
// a context that outlives ctx so a shutdown does not drop them.
func (w *JobRunner) requeue(ctx context.Context, jobs []*domain.Job) {
	writeCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		if err := w.queue.Enqueue(writeCtx, job); err != nil {
			w.logger.Error("failed to requeue job", "job_id", job.ID, "type", job.Type, "error", err)
		}
	}
	w.logger.Info("requeued unprocessed jobs", "count", len(jobs))
}

func (w *JobRunner) process(ctx context.Context, job *domain.Job) {
	w.mu.Lock()
	h, ok := w.handlers[job.Type]
	w.mu.Unlock()
	if !ok {
		w.logger.Error("dropping job with unknown type", "job_id", job.ID, "type", job.Type)
		return
	}

	err := h(ctx, job)
	if err == nil {
		w.logger.Debug("job completed", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts)
		return
	}

	// Cancelled mid-run: the attempt does not count.
	if ctx.Err() != nil {
		w.logger.Warn("job interrupted by shutdown", "job_id", job.ID, "type", job.Type, "error", err)
		w.requeue(ctx, []*domain.Job{job})
		return
	}

	if domain.IsPermanent(err) {
		w.logger.Error("job failed permanently", "job_id", job.ID, "type", job.Type, "error", err)
		return
	}

	if job.Attempts >= w.config.MaxAttempts {
		w.logger.Error("job abandoned after max attempts",
			"job_id", job.ID,
			"type", job.Type,
			"attempts", job.Attempts,
			"error", err,
		)
		return
	}

	job.Attempts++
	retryAt := w.clock().Add(w.config.RetryDelay)
	if qErr := w.queue.EnqueueAt(context.WithoutCancel(ctx), job, retryAt); qErr != nil {
		w.logger.Error("failed to reschedule job", "job_id", job.ID, "type", job.Type, "error", qErr)
		return
	}
	w.logger.Warn("job failed, retry scheduled",
		"job_id", job.ID,
		"type", job.Type,
		"attempts", job.Attempts,
		"retry_at", retryAt,
		"error", err,
	)
}
