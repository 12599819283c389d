package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventHandler handles a published event. Returning an error schedules a retry.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// Options tune the asynchronous dispatcher.
type Options struct {
	Buffer      int
	MaxAttempts int
	BaseBackoff time.Duration
}

// AsyncDispatcher queues events and delivers them from a background loop,
// so Publish never waits on a handler. Each handler is retried up to
// MaxAttempts times; delivery is at-least-once.
type AsyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler

	queue   chan Event
	opts    Options
	logger  *zap.Logger
	pending sync.WaitGroup

	runMu   sync.Mutex
	stopped bool
}

// NewAsyncDispatcher creates a dispatcher; call Run to start delivery.
func NewAsyncDispatcher(opts Options, logger *zap.Logger) *AsyncDispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, opts.Buffer),
		opts:      opts,
		logger:    logger,
	}
}

// Subscribe registers a handler for the given event type.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Publish enqueues the event. When the queue is full the event is handed
// to a dedicated goroutine instead of being dropped. Once Run has returned
// the event is delivered inline.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	d.runMu.Lock()
	if d.stopped {
		d.runMu.Unlock()
		d.logger.Warn("dispatcher stopped; delivering inline",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		d.deliver(context.Background(), event)
		return nil
	}
	defer d.runMu.Unlock()

	d.pending.Add(1)
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("event queue full; delivering out of band",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		go func() {
			defer d.pending.Done()
			d.deliver(context.Background(), event)
		}()
	}
	return nil
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *AsyncDispatcher) Run(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
			d.pending.Done()
		case <-ctx.Done():
			d.runMu.Lock()
			d.stopped = true
			d.runMu.Unlock()
			d.drain()
			return
		}
	}
}

func (d *AsyncDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(context.Background(), event)
			d.pending.Done()
		default:
			return
		}
	}
}

// Wait blocks until every published event has been handled or given up on.
func (d *AsyncDispatcher) Wait() {
	d.pending.Wait()
}

func (d *AsyncDispatcher) deliver(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		d.deliverOne(ctx, handler, event)
	}
}

func (d *AsyncDispatcher) deliverOne(ctx context.Context, handler EventHandler, event Event) {
	backoff := d.opts.BaseBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return
		}
		if attempt >= d.opts.MaxAttempts {
			d.logger.Error("event delivery abandoned",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}
		d.logger.Warn("event delivery failed; retrying",
			zap.String("event_id", event.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			// shutting down: keep retrying without waiting
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}
