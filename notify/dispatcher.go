package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 10 * time.Second
)

// Dispatcher queues notifications and delivers them on a background worker.
// Dispatch never blocks; a full queue drops the notification.
type Dispatcher struct {
	sender      Sender
	logger      *slog.Logger
	queue       chan *Notification
	sendTimeout time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	// mu orders enqueues against Stop so nothing lands after the drain.
	mu      sync.RWMutex
	stopped bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan *Notification, n)
		}
	}
}

// WithSendTimeout bounds a single delivery.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.sendTimeout = timeout }
}

// NewDispatcher creates a dispatcher delivering through sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		logger:      slog.Default(),
		queue:       make(chan *Notification, DefaultQueueSize),
		sendTimeout: DefaultSendTimeout,
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sender == nil {
		d.sender = LogSender{Logger: d.logger}
	}
	return d
}

// Start launches the delivery worker. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	d.wg.Add(1)
	go d.worker(context.WithoutCancel(ctx))
}

// Dispatch enqueues n. It reports false when n was dropped because the
// queue is full or the dispatcher has stopped.
func (d *Dispatcher) Dispatch(n *Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.drop(n, "dispatcher stopped")
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.drop(n, "queue full")
		return false
	}
}

// Stop stops the worker and delivers whatever is still queued.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		close(d.stopChan)
		d.wg.Wait()
		d.drain(context.Background())
	})
}

// Dropped returns how many notifications were dropped.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns how many deliveries returned an error or panicked.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.send(ctx, n); err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification delivery failed",
			"event", n.Event,
			"recipient_kind", n.Recipient.Kind,
			"recipient_id", n.Recipient.ID,
			"order_id", n.OrderID.String(),
			"error", err,
		)
	}
}

// send turns a panicking Sender into a failed delivery.
func (d *Dispatcher) send(ctx context.Context, n *Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: sender panicked: %v", r)
		}
	}()
	return d.sender.Send(ctx, n)
}

func (d *Dispatcher) drop(n *Notification, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("notification dropped",
		"reason", reason,
		"event", n.Event,
		"recipient_id", n.Recipient.ID,
		"order_id", n.OrderID.String(),
	)
}
