package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"travel/internal/monitoring"
)

// DispatcherConfig tunes the worker pool and retry policy.
type DispatcherConfig struct {
	Workers      int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Dispatcher drains a Queue with a pool of workers.
type Dispatcher struct {
	queue    Queue
	renderer Renderer
	sink     Sink
	cfg      DispatcherConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. Nothing runs until Run is called.
func NewDispatcher(queue Queue, renderer Renderer, sink Sink, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		renderer: renderer,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		log:      log.With(zap.String("service", "notification")),
		now:      time.Now,
	}
}

// Run recovers in-flight jobs, then processes jobs until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	recovered, err := d.queue.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		d.log.Warn("requeued in-flight jobs", zap.Int("count", recovered))
	}

	d.log.Info("dispatcher started", zap.Int("workers", d.cfg.Workers))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.promote(ctx)
	}()

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}

	wg.Wait()
	d.log.Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) promote(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.queue.PromoteDue(ctx, d.now()); err != nil && ctx.Err() == nil {
				d.log.Error("promote delayed jobs", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	log := d.log.With(zap.Int("worker", worker))
	for ctx.Err() == nil {
		delivery, err := d.queue.Dequeue(ctx, d.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue", zap.Error(err))
			sleep(ctx, d.cfg.PollInterval)
			continue
		}
		if delivery == nil {
			continue
		}
		if err := d.Process(ctx, delivery); err != nil {
			log.Error("process job", zap.String("job_id", delivery.Job.ID), zap.Error(err))
		}
	}
}

// Process runs one delivery to completion: ack, retry or bury. The returned
// error only reports queue failures.
func (d *Dispatcher) Process(ctx context.Context, delivery *Delivery) error {
	job := delivery.Job
	log := d.log.With(
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("booking_id", job.BookingID),
		zap.Int("attempt", job.Attempt),
	)

	msg, err := d.renderer.Render(ctx, job)
	if errors.Is(err, ErrNothingToSend) {
		log.Info("notification skipped", zap.Error(err))
		monitoring.RecordNotification(string(job.Kind), "skipped")
		return d.queue.Ack(ctx, delivery)
	}
	if err == nil {
		err = d.sink.Send(ctx, *msg)
	}
	if err == nil {
		log.Info("notification sent", zap.String("to", msg.To))
		monitoring.RecordNotification(string(job.Kind), "sent")
		return d.queue.Ack(ctx, delivery)
	}

	var delivErr *DeliveryError
	permanent := errors.As(err, &delivErr) && delivErr.Permanent
	if permanent || job.Attempt >= d.cfg.MaxAttempts {
		log.Error("notification dead-lettered",
			zap.Error(errors.Join(ErrDeliveryFailed, err)),
			zap.Bool("permanent", permanent),
		)
		monitoring.RecordNotification(string(job.Kind), "dead")
		return d.queue.Bury(ctx, delivery, err.Error())
	}

	delay := d.Backoff(job.Attempt)
	log.Warn("notification retry scheduled", zap.Duration("delay", delay), zap.Error(err))
	monitoring.RecordNotification(string(job.Kind), "retried")
	return d.queue.Retry(ctx, delivery, d.now().Add(delay))
}

// Backoff returns the wait before the attempt after the given one:
// base * 2^(attempt-1), capped at the configured maximum.
func (d *Dispatcher) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
