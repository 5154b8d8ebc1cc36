package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userpets/internal/domain"
)

// promoteScript moves due members of the delayed set onto the ready list
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, payload in ipairs(due) do
	redis.call('ZREM', KEYS[1], payload)
	redis.call('RPUSH', KEYS[2], payload)
end
return #due
`)

// Enqueue pushes a job onto the ready list
func (s *Store) Enqueue(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := s.client.RPush(ctx, s.readyKey(), payload).Err(); err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	return nil
}

// EnqueueAt schedules a job to become ready at the given time
func (s *Store) EnqueueAt(ctx context.Context, job *domain.Job, at time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	err = s.client.ZAdd(ctx, s.delayedKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling job: %w", err)
	}
	return nil
}

// PromoteDue moves up to limit delayed jobs that are due onto the ready list
func (s *Store) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	moved, err := promoteScript.Run(ctx, s.client,
		[]string{s.delayedKey(), s.readyKey()},
		strconv.FormatInt(now.UnixMilli(), 10), limit,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promoting delayed jobs: %w", err)
	}
	return moved, nil
}

// Dequeue pops up to n ready jobs. Payloads that cannot be decoded are
// logged and dropped.
func (s *Store) Dequeue(ctx context.Context, n int) ([]*domain.Job, error) {
	payloads, err := s.client.LPopCount(ctx, s.readyKey(), n).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeueing jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(payloads))
	for _, payload := range payloads {
		var job domain.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			s.logger.Error("dropping malformed job", "payload", payload, "error", err)
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// QueueDepth returns the number of ready and delayed jobs
func (s *Store) QueueDepth(ctx context.Context) (ready, delayed int64, err error) {
	pipe := s.client.Pipeline()
	readyCmd := pipe.LLen(ctx, s.readyKey())
	delayedCmd := pipe.ZCard(ctx, s.delayedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("getting queue depth: %w", err)
	}
	return readyCmd.Val(), delayedCmd.Val(), nil
}
