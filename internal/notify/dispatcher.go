package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yungbote/entitlement-engine/internal/platform/httpx"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// Handler delivers a single task.
type Handler interface {
	Deliver(ctx context.Context, t Task) error
}

type HandlerFunc func(ctx context.Context, t Task) error

func (f HandlerFunc) Deliver(ctx context.Context, t Task) error { return f(ctx, t) }

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

type DispatcherConfig struct {
	Workers        int
	Retry          RetryConfig
	DeliverTimeout time.Duration
}

// Dispatcher drains a Queue with a fixed pool of workers. Failed deliveries
// are retried with exponential backoff, then dead-lettered.
type Dispatcher struct {
	log     *logger.Logger
	queue   Queue
	handler Handler
	cfg     DispatcherConfig
	wg      sync.WaitGroup
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(log *logger.Logger, queue Queue, handler Handler, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 30 * time.Second
	}
	return &Dispatcher{
		log:     log.With("component", "NotificationDispatcher"),
		queue:   queue,
		handler: handler,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			d.run(ctx, worker)
		}(i)
	}
	d.log.Info("Notification dispatcher started", "workers", d.cfg.Workers)
}

func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) run(ctx context.Context, worker int) {
	for {
		t, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("Notification dequeue failed", "worker", worker, "error", err)
			if d.sleep(ctx, time.Second) != nil {
				return
			}
			continue
		}
		d.Process(ctx, t)
	}
}

// Process delivers t, retrying in place. It never returns an error: the
// terminal failure path is the dead-letter queue.
func (d *Dispatcher) Process(ctx context.Context, t Task) {
	for {
		t.Attempt++
		err := d.deliver(ctx, t)
		if err == nil {
			return
		}
		t.LastError = err.Error()
		if ctx.Err() != nil {
			d.requeue(ctx, t)
			return
		}
		if t.Attempt >= d.cfg.Retry.MaxAttempts {
			d.log.Error("Notification dead-lettered",
				"task_id", t.ID,
				"recipient_id", t.RecipientID,
				"kind", t.Kind,
				"attempts", t.Attempt,
				"error", err,
			)
			dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if dlErr := d.queue.DeadLetter(dlCtx, t); dlErr != nil {
				d.log.Error("Dead-letter write failed", "task_id", t.ID, "error", dlErr)
			}
			cancel()
			return
		}
		wait := httpx.JitterSleep(httpx.Backoff(t.Attempt-1, d.cfg.Retry.InitialBackoff, d.cfg.Retry.MaxBackoff))
		d.log.Warn("Notification delivery retrying",
			"task_id", t.ID,
			"attempt", t.Attempt,
			"sleep", wait.String(),
			"error", err,
		)
		if d.sleep(ctx, wait) != nil {
			d.requeue(ctx, t)
			return
		}
	}
}

// requeue hands an unfinished task back to the queue during shutdown.
func (d *Dispatcher) requeue(ctx context.Context, t Task) {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.queue.Enqueue(qctx, t); err != nil {
		d.log.Error("Notification requeue failed", "task_id", t.ID, "error", err)
		_ = d.queue.DeadLetter(qctx, t)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Notification handler panic", "task_id", t.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if d.handler == nil {
		return errors.New("no notification handler")
	}
	dctx, cancel := context.WithTimeout(ctx, d.cfg.DeliverTimeout)
	defer cancel()
	return d.handler.Deliver(dctx, t)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
