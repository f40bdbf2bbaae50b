package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"travel/internal/notification"
)

// Notification queue keys.
const (
	readyKey      = "notify:ready"
	processingKey = "notify:processing"
	delayedKey    = "notify:delayed"
	deadKey       = "notify:dead"
)

// promoteBatch caps how many delayed jobs one PromoteDue call moves.
const promoteBatch = 100

// promoteScript moves one member from the delayed set to the ready list in a
// single step. The ZREM result decides ownership between promoters.
const promoteScript = `
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[1])
	return 1
end
return 0
`

// JobQueue is a Redis-backed notification.Queue.
//
// Ready jobs live in a list. A worker atomically moves a job into the
// processing list with BLMOVE and removes it there once the job is acked,
// rescheduled or buried, so a crash leaves the job recoverable. Delayed
// retries live in a sorted set scored by due time in milliseconds.
type JobQueue struct {
	client redis.Cmdable
}

// NewJobQueue creates a new JobQueue.
func NewJobQueue(client redis.Cmdable) *JobQueue {
	return &JobQueue{client: client}
}

// Enqueue pushes a job onto the ready list.
func (q *JobQueue) Enqueue(ctx context.Context, job notification.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, readyKey, string(data)).Err()
}

// Dequeue blocks up to timeout for a ready job.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*notification.Delivery, error) {
	raw, err := q.client.BLMove(ctx, readyKey, processingKey, "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var job notification.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Unreadable payloads go straight to the dead list. The raw entry stays
		// in processing until the dead list has it.
		if pushErr := q.client.LPush(ctx, deadKey, raw).Err(); pushErr != nil {
			return nil, fmt.Errorf("bury unreadable job: %w (decode: %v)", pushErr, err)
		}
		if remErr := q.client.LRem(ctx, processingKey, 1, raw).Err(); remErr != nil {
			return nil, fmt.Errorf("drop unreadable job: %w (decode: %v)", remErr, err)
		}
		return nil, fmt.Errorf("decode job: %w", err)
	}

	return &notification.Delivery{Job: job, Receipt: raw}, nil
}

// Ack removes a finished job from the processing list.
func (q *JobQueue) Ack(ctx context.Context, d *notification.Delivery) error {
	return q.client.LRem(ctx, processingKey, 1, d.Receipt).Err()
}

// Retry schedules the next attempt. The delayed entry is written before the
// in-flight copy is dropped so a crash in between duplicates rather than
// loses the job.
func (q *JobQueue) Retry(ctx context.Context, d *notification.Delivery, at time.Time) error {
	next := d.Job
	next.Attempt++
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	if err := q.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}
	return q.client.LRem(ctx, processingKey, 1, d.Receipt).Err()
}

// Bury moves a job to the dead-letter list.
func (q *JobQueue) Bury(ctx context.Context, d *notification.Delivery, reason string) error {
	data, err := json.Marshal(notification.DeadJob{
		Job:      d.Job,
		Reason:   reason,
		BuriedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, deadKey, string(data)).Err(); err != nil {
		return err
	}
	return q.client.LRem(ctx, processingKey, 1, d.Receipt).Err()
}

// PromoteDue moves delayed jobs that are due onto the ready list. Each move
// runs as one script, so a job is always in exactly one of the two.
func (q *JobQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, member := range members {
		moved, err := q.client.Eval(ctx, promoteScript, []string{delayedKey, readyKey}, member).Int()
		if err != nil {
			return promoted, err
		}
		promoted += moved
	}
	return promoted, nil
}

// Recover moves every in-flight job back onto the ready list. It must run
// before workers start.
func (q *JobQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, processingKey, readyKey, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, err
		}
		recovered++
	}
}
