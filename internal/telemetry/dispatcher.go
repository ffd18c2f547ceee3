package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// EventWriter is the slice of the repository the dispatcher consumes
type EventWriter interface {
	InsertEvent(ctx context.Context, ev *models.Event) error
}

// Dispatcher delivers telemetry events to the store from a bounded
// in-memory queue. Dispatch never blocks: when the queue is full the event
// is dropped and counted. Delivery failures are logged and counted, never
// surfaced to callers.
type Dispatcher struct {
	writer EventWriter
	queue  chan models.Event

	dropped   atomic.Int64
	failed    atomic.Int64
	delivered atomic.Int64

	mu          sync.Mutex
	subscribers map[chan models.Event]struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher with the given queue capacity
func NewDispatcher(writer EventWriter, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &Dispatcher{
		writer:      writer,
		queue:       make(chan models.Event, queueSize),
		subscribers: make(map[chan models.Event]struct{}),
	}
}

// Start begins background delivery
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)
}

// Dispatch enqueues an event without blocking. The return value reports
// whether the event was accepted; callers are free to ignore it.
func (d *Dispatcher) Dispatch(ev models.Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	select {
	case d.queue <- ev:
		d.fanOut(ev)
		return true
	default:
		d.dropped.Add(1)
		slog.Debug("telemetry queue full, event dropped",
			"event_type", ev.Type,
			"dropped", d.dropped.Load(),
		)
		return false
	}
}

// Subscribe returns a channel receiving a copy of every accepted event.
// Slow subscribers miss events rather than slowing dispatch.
func (d *Dispatcher) Subscribe() (<-chan models.Event, func()) {
	ch := make(chan models.Event, 64)

	d.mu.Lock()
	d.subscribers[ch] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		if _, ok := d.subscribers[ch]; ok {
			delete(d.subscribers, ch)
			close(ch)
		}
		d.mu.Unlock()
	}
	return ch, cancel
}

func (d *Dispatcher) fanOut(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for ch := range d.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer: skip rather than block dispatch
		}
	}
}

// Dropped reports events rejected because the queue was full
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Failed reports events that could not be written to the store
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

// Delivered reports events successfully written to the store
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}

// Close stops delivery after draining whatever is already queued
func (d *Dispatcher) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	slog.Info("telemetry dispatcher started", "queue_size", cap(d.queue))

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			d.drain()
			slog.Info("telemetry dispatcher stopped",
				"delivered", d.delivered.Load(),
				"dropped", d.dropped.Load(),
				"failed", d.failed.Load(),
			)
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.writer.InsertEvent(ctx, &ev); err != nil {
		d.failed.Add(1)
		slog.Warn("failed to deliver telemetry event",
			"event_type", ev.Type,
			"error", err,
		)
		return
	}
	d.delivered.Add(1)
}
