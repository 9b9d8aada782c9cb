package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"zing/internal/models"
	"zing/internal/observability"
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// DispatcherConfig sizes the fan-out pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Sync delivers every intent on the publishing goroutine.
	Sync bool
	// InlineOnFull delivers on the publishing goroutine when the queue is
	// full instead of dropping the intent.
	InlineOnFull bool
	Logger       *slog.Logger
}

// ErrDispatcherClosed is returned by Close when called twice.
var ErrDispatcherClosed = errors.New("dispatcher closed")

type job struct {
	ctx    context.Context
	intent Intent
}

// Dispatcher routes events into intents and writes them to a Store using
// a bounded queue and a fixed worker pool. Delivery failures are logged and
// counted; they never reach the publisher.
type Dispatcher struct {
	store        Store
	logger       *slog.Logger
	sync         bool
	inlineOnFull bool

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool unless cfg.Sync is set.
func NewDispatcher(store Store, cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Logger
	}
	d := &Dispatcher{
		store:        store,
		logger:       logger,
		sync:         cfg.Sync,
		inlineOnFull: cfg.InlineOnFull,
	}
	if d.sync {
		return d
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	d.queue = make(chan job, queueSize)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		observability.FanoutQueueDepth.Dec()
		d.deliver(j.ctx, j.intent)
	}
}

// Publish routes ev and hands every resulting intent to the pool.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	intents, suppressed := route(ev)
	for _, typ := range suppressed {
		observability.NotificationsSuppressed.WithLabelValues(string(typ)).Inc()
	}
	if len(intents) == 0 {
		return
	}

	// request-scoped values stay for logging; cancellation does not
	ctx = context.WithoutCancel(ctx)
	for _, in := range intents {
		d.enqueue(ctx, in)
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, in Intent) {
	if d.sync {
		d.deliver(ctx, in)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.FanoutDropped.WithLabelValues("closed").Inc()
		d.logger.WarnContext(ctx, "notification dropped: dispatcher closed", slog.String("type", string(in.Type)))
		return
	}

	select {
	case d.queue <- job{ctx: ctx, intent: in}:
		observability.FanoutQueueDepth.Inc()
	default:
		if d.inlineOnFull {
			d.deliver(ctx, in)
			return
		}
		observability.FanoutDropped.WithLabelValues("queue_full").Inc()
		d.logger.WarnContext(ctx, "notification dropped: queue full",
			slog.String("type", string(in.Type)),
			slog.String("recipient_id", in.RecipientID),
		)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, in Intent) {
	n, err := d.store.Create(ctx, in.Notification())
	if err != nil {
		observability.NotificationFailures.WithLabelValues(string(in.Type)).Inc()
		observability.LogAsyncOperationError(ctx, d.logger, "notification_create", err, map[string]interface{}{
			"type":         string(in.Type),
			"recipient_id": in.RecipientID,
			"sender_id":    in.SenderID,
		})
		return
	}
	if n != nil {
		observability.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()
	}
}

// Close stops accepting intents and waits for queued ones to be written
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
