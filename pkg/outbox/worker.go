package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// WorkerOptions configures the delivery loop.
type WorkerOptions struct {
	BatchSize       int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	MaxBackoff      time.Duration
	MaxAttempts     int
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		BatchSize:       50,
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxBackoff:      time.Hour,
		MaxAttempts:     12,
	}
}

// WorkerOption is a functional option for the delivery worker.
type WorkerOption func(*WorkerOptions)

func WithBatchSize(n int) WorkerOption {
	return func(o *WorkerOptions) { o.BatchSize = n }
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.PollInterval = d }
}

func WithMaxBackoff(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.MaxBackoff = d }
}

func WithMaxAttempts(n int) WorkerOption {
	return func(o *WorkerOptions) { o.MaxAttempts = n }
}

// Worker claims pending outbox entries and ships them via Publisher, retrying
// failed deliveries with exponential backoff before giving up and marking the
// entry dead.
type Worker struct {
	store     Store
	publisher Publisher
	opts      WorkerOptions
	mu        sync.Mutex
	running   bool
}

func NewWorker(store Store, publisher Publisher, options ...WorkerOption) *Worker {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Worker{store: store, publisher: publisher, opts: opts}
}

// Start runs the claim/deliver loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning()
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	logx.Info("outbox: delivery worker starting")

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runBatch(ctx)
			}
		}
	}()

	<-ctx.Done()
	logx.Info("outbox: shutting down delivery worker...")

	select {
	case <-done:
		logx.Info("outbox: delivery worker stopped")
	case <-time.After(w.opts.ShutdownTimeout):
		logx.Warn("outbox: shutdown timed out")
	}
	return nil
}

func (w *Worker) runBatch(ctx context.Context) {
	claimed, err := w.store.ClaimBatch(ctx, w.opts.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logx.WithError(err).Warn("outbox: failed to claim batch")
		return
	}

	for _, c := range claimed {
		w.deliver(ctx, c)
	}
}

func (w *Worker) deliver(ctx context.Context, c ClaimedEntry) {
	err := w.publisher.Publish(ctx, c.Entry.Destination, c.Event)
	if err == nil {
		if markErr := w.store.MarkDelivered(ctx, c.Entry.ID); markErr != nil {
			logx.WithError(markErr).WithField("entry_id", c.Entry.ID).Error("outbox: failed to mark delivered")
		}
		return
	}

	attempts := c.Entry.Attempts + 1
	if attempts >= w.opts.MaxAttempts {
		logx.WithError(err).
			WithField("entry_id", c.Entry.ID).
			WithField("event_id", c.Event.ID).
			WithField("destination", c.Entry.Destination).
			WithField("outbox_dead_letter", true).
			Error("outbox: delivery exhausted retries, marking dead")
		if markErr := w.store.MarkDead(ctx, c.Entry.ID, err.Error()); markErr != nil {
			logx.WithError(markErr).Error("outbox: failed to mark dead")
		}
		return
	}

	backoff := nextBackoff(attempts, w.opts.MaxBackoff)
	logx.WithError(err).
		WithField("entry_id", c.Entry.ID).
		WithField("attempts", attempts).
		WithField("retry_in", backoff.String()).
		Warn("outbox: delivery failed, scheduling retry")
	if markErr := w.store.MarkFailed(ctx, c.Entry.ID, err.Error(), time.Now().Add(backoff)); markErr != nil {
		logx.WithError(markErr).Error("outbox: failed to mark failed")
	}
}

// nextBackoff computes 2^attempts seconds capped at max, the same doubling
// shape as a standard exponential retry schedule.
func nextBackoff(attempts int, max time.Duration) time.Duration {
	d := time.Second
	for i := 0; i < attempts && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}
