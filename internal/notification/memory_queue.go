package notification

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

var _ Queue = (*MemoryQueue)(nil)

type delayedJob struct {
	due time.Time
	job Job
}

// MemoryQueue is an in-process Queue. Jobs do not survive a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	ready      []Job
	processing map[string]Job
	delayed    []delayedJob
	dead       []DeadJob
	notify     chan struct{}
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		processing: make(map[string]Job),
		notify:     make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	q.ready = append(q.ready, job)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			job := q.ready[0]
			q.ready = q.ready[1:]
			receipt, err := json.Marshal(job)
			if err != nil {
				q.mu.Unlock()
				return nil, err
			}
			q.processing[string(receipt)] = job
			more := len(q.ready) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return &Delivery{Job: job, Receipt: string(receipt)}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, d.Receipt)
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, d *Delivery, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, d.Receipt)
	next := d.Job
	next.Attempt++
	q.delayed = append(q.delayed, delayedJob{due: at, job: next})
	return nil
}

func (q *MemoryQueue) Bury(_ context.Context, d *Delivery, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, d.Receipt)
	q.dead = append(q.dead, DeadJob{Job: d.Job, Reason: reason, BuriedAt: time.Now().UTC()})
	return nil
}

func (q *MemoryQueue) PromoteDue(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	sort.SliceStable(q.delayed, func(i, j int) bool { return q.delayed[i].due.Before(q.delayed[j].due) })
	n := 0
	for n < len(q.delayed) && !q.delayed[n].due.After(now) {
		q.ready = append(q.ready, q.delayed[n].job)
		n++
	}
	q.delayed = q.delayed[n:]
	q.mu.Unlock()

	if n > 0 {
		q.signal()
	}
	return n, nil
}

func (q *MemoryQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	n := len(q.processing)
	for receipt, job := range q.processing {
		q.ready = append(q.ready, job)
		delete(q.processing, receipt)
	}
	q.mu.Unlock()

	if n > 0 {
		q.signal()
	}
	return n, nil
}

// Len returns the number of ready, delayed and in-flight jobs.
func (q *MemoryQueue) Len() (ready, delayed, processing int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.delayed), len(q.processing)
}

// Jobs returns a copy of the ready jobs.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.ready...)
}

// Dead returns a copy of the dead-letter list.
func (q *MemoryQueue) Dead() []DeadJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadJob(nil), q.dead...)
}
