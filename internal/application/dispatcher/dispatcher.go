package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/procurement-bot/internal/domain/event"
)

// DefaultQueueSize bounds the number of async events waiting for delivery.
const DefaultQueueSize = 256

// Dispatcher fans ticket events out to the side channels that record them
// (history, event stream). Notification delivery does not go through here.
type Dispatcher interface {
	// SubscribeNamed registers a handler for one event type
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a handler for every known event type
	SubscribeAll(name string, handler Handler)

	// Dispatch runs every handler for the event and joins their errors.
	// One failing side channel does not starve the others.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync queues the event. Queued events are delivered one at a
	// time in submission order, so a ticket's events reach history and the
	// stream in the order its transitions happened. Errors are only logged.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Subscribers names the handlers registered for an event type
	Subscribers(eventType event.Type) []string

	// Close delivers what is already queued and rejects new events
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type queuedEvent struct {
	ctx context.Context
	evt *event.Event
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]subscription
	logger   Logger

	queueSize int
	queue     chan queuedEvent
	drained   chan struct{}

	// closeMu orders queue sends against close(queue).
	closeMu sync.RWMutex
	closed  bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithQueueSize sets how many async events may wait. Events beyond that
// are dropped with an error log rather than stalling the chat path.
func WithQueueSize(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:  make(map[event.Type][]subscription),
		queueSize: DefaultQueueSize,
		drained:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan queuedEvent, d.queueSize)
	go d.drain()
	return d
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], subscription{name: name, handler: handler})
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	for _, t := range event.All {
		d.SubscribeNamed(t, name, handler)
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.closeMu.RLock()
	closed := d.closed
	d.closeMu.RUnlock()
	if closed {
		return fmt.Errorf("dispatcher is closed")
	}
	return d.deliver(ctx, evt)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		d.logError("Event dropped, dispatcher is closed",
			"event_type", evt.Type, "event_id", evt.ID, "ticket_number", evt.TicketNumber)
		return
	}

	// Delivery outlives the chat turn that produced the event.
	select {
	case d.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		d.logError("Event dropped, dispatch queue is full",
			"event_type", evt.Type, "event_id", evt.ID, "ticket_number", evt.TicketNumber,
			"queue_size", d.queueSize)
	}
}

func (d *eventDispatcher) Subscribers(eventType event.Type) []string {
	subs := d.snapshot(eventType)
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.name
	}
	return names
}

func (d *eventDispatcher) Close() error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	close(d.queue)
	d.closeMu.Unlock()

	d.logInfo("Closing dispatcher, delivering queued events", "queued", len(d.queue))
	<-d.drained
	d.logInfo("Dispatcher closed")
	return nil
}

func (d *eventDispatcher) drain() {
	defer close(d.drained)
	for q := range d.queue {
		// Errors were logged per handler in deliver.
		_ = d.deliver(q.ctx, q.evt)
	}
}

func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event) error {
	var errs []error
	for _, sub := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, sub); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"ticket_number", evt.TicketNumber,
				"handler_name", sub.name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("handler %s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) snapshot(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]subscription(nil), d.handlers[eventType]...)
}

// safeExecute turns a handler panic into an error
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
