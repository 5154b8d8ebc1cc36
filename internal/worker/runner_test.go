package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userpets/internal/config"
	"github.com/userpets/internal/domain"
)

type scheduledJob struct {
	job *domain.Job
	at  time.Time
}

type fakeQueue struct {
	mu      sync.Mutex
	ready   []*domain.Job
	delayed []scheduledJob
}

// The fake fails on a cancelled context like the redis client does.
func (q *fakeQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, job)
	return nil
}

func (q *fakeQueue) EnqueueAt(ctx context.Context, job *domain.Job, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, scheduledJob{job: job, at: at})
	return nil
}

func (q *fakeQueue) PromoteDue(_ context.Context, now time.Time, limit int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	moved := 0
	var rest []scheduledJob
	for _, s := range q.delayed {
		if moved < limit && !s.at.After(now) {
			q.ready = append(q.ready, s.job)
			moved++
			continue
		}
		rest = append(rest, s)
	}
	q.delayed = rest
	return moved, nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, n int) ([]*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n = min(n, len(q.ready))
	jobs := q.ready[:n]
	q.ready = q.ready[n:]
	return jobs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(q Queue, now *time.Time) *JobRunner {
	cfg := &config.JobsConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		MaxAttempts:  5,
		RetryDelay:   30 * time.Second,
	}
	return NewJobRunner(q, cfg, func() time.Time { return *now }, testLogger())
}

func TestJobRunner_DispatchesByType(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	var resolved, rewarded []string
	r.Handle(domain.JobTypeDuelResolve, func(_ context.Context, job *domain.Job) error {
		resolved = append(resolved, job.ID)
		return nil
	})
	r.Handle(domain.JobTypeTutorialReward, func(_ context.Context, job *domain.Job) error {
		rewarded = append(rewarded, job.ID)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "1", Type: domain.JobTypeDuelResolve}))
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "2", Type: domain.JobTypeTutorialReward}))
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "3", Type: "mystery"}))

	assert.Equal(t, 3, r.RunOnce(ctx))
	assert.Equal(t, []string{"1"}, resolved)
	assert.Equal(t, []string{"2"}, rewarded)
	assert.Empty(t, q.delayed, "unknown job types are dropped")
}

func TestJobRunner_RetriesUntilMaxAttempts(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	calls := 0
	r.Handle(domain.JobTypeDuelResolve, func(context.Context, *domain.Job) error {
		calls++
		return errors.New("database unavailable")
	})

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "1", Type: domain.JobTypeDuelResolve}))

	r.RunOnce(ctx)
	require.Len(t, q.delayed, 1)
	assert.Equal(t, 1, q.delayed[0].job.Attempts)
	assert.Equal(t, now.Add(30*time.Second), q.delayed[0].at)

	assert.Equal(t, 0, r.RunOnce(ctx), "retry is not due yet")

	for i := 0; i < 10; i++ {
		now = now.Add(30 * time.Second)
		r.RunOnce(ctx)
	}

	// Attempts 0 through 5 run, then the job is abandoned.
	assert.Equal(t, 6, calls)
	assert.Empty(t, q.delayed)
	assert.Empty(t, q.ready)
}

func TestJobRunner_PermanentErrorsAreNotRetried(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	r.Handle(domain.JobTypeTutorialReward, func(context.Context, *domain.Job) error {
		return domain.Permanent(errors.New("bad payload"))
	})

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "1", Type: domain.JobTypeTutorialReward}))
	r.RunOnce(ctx)

	assert.Empty(t, q.delayed)
	assert.Empty(t, q.ready)
}

func TestJobRunner_StartStop(t *testing.T) {
	now := time.Now()
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	done := make(chan struct{})
	r.Handle(domain.JobTypeDuelResolve, func(context.Context, *domain.Job) error {
		close(done)
		return nil
	})
	require.NoError(t, q.Enqueue(context.Background(), &domain.Job{ID: "1", Type: domain.JobTypeDuelResolve}))

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	require.NoError(t, r.Stop())
	assert.False(t, r.IsRunning())
	require.NoError(t, r.Stop())
}

func TestJobRunner_ShutdownMidBatchKeepsJobs(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dispatched []string
	r.Handle(domain.JobTypeDuelResolve, func(ctx context.Context, job *domain.Job) error {
		dispatched = append(dispatched, job.ID)
		cancel()
		return ctx.Err()
	})

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: id, Type: domain.JobTypeDuelResolve}))
	}

	assert.Equal(t, 1, r.RunOnce(ctx))
	assert.Equal(t, []string{"1"}, dispatched)
	assert.Empty(t, q.delayed)

	require.Len(t, q.ready, 3, "no job is lost")
	ids := make([]string, 0, len(q.ready))
	for _, job := range q.ready {
		ids = append(ids, job.ID)
		assert.Zero(t, job.Attempts, "an interrupted run is not an attempt")
	}
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)

	// After a restart every job runs.
	dispatched = nil
	r.Handle(domain.JobTypeDuelResolve, func(_ context.Context, job *domain.Job) error {
		dispatched = append(dispatched, job.ID)
		return nil
	})
	assert.Equal(t, 3, r.RunOnce(context.Background()))
	assert.ElementsMatch(t, []string{"1", "2", "3"}, dispatched)
	assert.Empty(t, q.ready)
}

func TestJobRunner_CancelledContextDequeuesNothing(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)
	r.Handle(domain.JobTypeDuelResolve, func(context.Context, *domain.Job) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.NoError(t, q.Enqueue(context.Background(), &domain.Job{ID: "1", Type: domain.JobTypeDuelResolve}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, r.RunOnce(ctx))
	assert.Len(t, q.ready, 1)
}

func TestJobRunner_ShutdownKeepsScheduledRetries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{}
	r := newTestRunner(q, &now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Handle(domain.JobTypeTutorialReward, func(context.Context, *domain.Job) error {
		return errors.New("redis unavailable")
	})
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "1", Type: domain.JobTypeTutorialReward}))
	require.NoError(t, q.Enqueue(ctx, &domain.Job{ID: "2", Type: domain.JobTypeDuelResolve}))

	// The duel handler ends the run once the reward job has failed.
	r.Handle(domain.JobTypeDuelResolve, func(ctx context.Context, _ *domain.Job) error {
		cancel()
		return ctx.Err()
	})

	r.RunOnce(ctx)
	require.Len(t, q.delayed, 1)
	assert.Equal(t, "1", q.delayed[0].job.ID)
	assert.Equal(t, 1, q.delayed[0].job.Attempts)
	require.Len(t, q.ready, 1)
	assert.Equal(t, "2", q.ready[0].ID)
}
