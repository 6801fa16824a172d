// Package dispatcher routes inbound widget events to their handlers.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownEvent is returned by Dispatch for event types without a handler.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is a message sent back by a map widget.
type Event struct {
	Type      string
	ViewID    string
	Payload   json.RawMessage
	Timestamp time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Event
	closed   bool
	wg       sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of widget events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for typ, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("event", typ)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total widget events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total widget events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event type with optional configuration.
// Registering a type again replaces its handler.
func (d *Dispatcher) Register(eventType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(eventType, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(eventType, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[eventType] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Type]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("dispatcher closed: %s", e.Type)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Type)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the event type.
func (d *Dispatcher) HasHandler(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[eventType]
	return ok
}

// Close stops accepting events and waits for buffered handlers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(eventType string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[eventType] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("event", eventType))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			_, _ = h(e)
			d.processed.Add(context.Background(), 1, attrs)
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, fmt.Errorf("dispatcher closed: %s", eventType)
			}
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("dispatcher closed: %s", eventType)
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s", eventType)
		}
	}
}

func (d *Dispatcher) withLogging(eventType string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling widget event", "event", eventType, "view", e.ViewID, "payload", len(e.Payload))

		result, err := h(e)

		if err != nil {
			d.logger.Error("widget event failed", "event", eventType, "view", e.ViewID, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("widget event complete", "event", eventType, "duration", time.Since(start))
		}

		return result, err
	}
}
