package eventbus

import (
	"sync"
	"time"
)

// DefaultTTL is the subscription lifetime applied when Config.TTL is zero.
// Long enough for any real screen session, short enough that a leaked
// subscription surfaces the same day it is introduced.
const DefaultTTL = 10 * time.Minute

// Kind identifies an event type on the bus.
//
// Kinds are declared by the packages that publish them (see the camera
// package for the full set).
type Kind string

// Event is implemented by every payload published on the bus.
type Event interface {
	EventKind() Kind
}

// Handler is the callback signature for subscribers.
//
// Handlers run synchronously on the publisher's goroutine, in registration
// order. They must not block.
type Handler func(Event)

// Logger is the minimal logging surface the bus needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config contains event bus settings.
type Config struct {
	// TTL is how long a subscription lives before automatic expiry.
	// Zero means DefaultTTL.
	TTL time.Duration

	// Logger receives leak warnings and handler panic reports. Optional.
	Logger Logger
}

// Subscription is the handle returned by Subscribe.
//
// Callers must Cancel the subscription when they are done with it. A
// subscription that outlives its TTL is cancelled automatically with a
// warning logged against the subscriber name.
type Subscription struct {
	bus        *Bus
	id         uint64
	kind       Kind
	subscriber string
	handler    Handler
	timer      *time.Timer

	once sync.Once
}

// Cancel removes the subscription from the bus and stops the expiry timer.
// Safe to call multiple times and safe to call from within a handler.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.bus.remove(s.kind, s.id)
	})
}

// Bus is a synchronous in-process event bus.
//
// Publish delivers to subscribers of the event's kind in the order they
// subscribed. Delivery happens on the caller's goroutine; the bus never
// spawns goroutines for handlers.
//
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   map[Kind][]*Subscription
	nextID uint64

	ttl    time.Duration
	logger Logger
}

// New creates an event bus with the given configuration.
func New(cfg Config) *Bus {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bus{
		subs:   make(map[Kind][]*Subscription),
		ttl:    ttl,
		logger: logger,
	}
}

// Subscribe registers a handler for events of the given kind.
//
// The subscriber name identifies the caller in leak warnings; use the screen
// or component name, not something generated.
//
// The returned Subscription must be cancelled when no longer needed.
func (b *Bus) Subscribe(subscriber string, kind Kind, handler Handler) *Subscription {
	b.mu.Lock()
	b.nextID++
	sub := &Subscription{
		bus:        b,
		id:         b.nextID,
		kind:       kind,
		subscriber: subscriber,
		handler:    handler,
	}
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	sub.timer = time.AfterFunc(b.ttl, func() {
		b.expire(sub)
	})

	return sub
}

// SubscribePinned registers a handler that never expires.
//
// For long-lived infrastructure consumers (event mirrors, hubs); anything
// screen-scoped uses Subscribe so a leak still surfaces.
func (b *Bus) SubscribePinned(subscriber string, kind Kind, handler Handler) *Subscription {
	b.mu.Lock()
	b.nextID++
	sub := &Subscription{
		bus:        b,
		id:         b.nextID,
		kind:       kind,
		subscriber: subscriber,
		handler:    handler,
	}
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	return sub
}

// Publish delivers the event to every subscriber of its kind, in
// registration order, on the calling goroutine.
//
// A handler panic is recovered and logged; remaining handlers still run.
func (b *Bus) Publish(event Event) {
	kind := event.EventKind()

	// Snapshot under lock so handlers can subscribe or cancel freely.
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs[kind]))
	copy(subs, b.subs[kind])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

// SubscriberCount returns the number of active subscriptions for a kind.
// Useful for tests and diagnostics.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}

// deliver invokes a single handler with panic recovery.
func (b *Bus) deliver(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic recovered",
				"subscriber", sub.subscriber,
				"kind", string(sub.kind),
				"panic", r,
			)
		}
	}()

	sub.handler(event)
}

// expire cancels a subscription that outlived its TTL and logs the leak.
func (b *Bus) expire(sub *Subscription) {
	sub.once.Do(func() {
		b.remove(sub.kind, sub.id)
		b.logger.Warn("event subscription expired, subscriber likely leaked it",
			"subscriber", sub.subscriber,
			"kind", string(sub.kind),
			"ttl", b.ttl.String(),
		)
	})
}

// remove deletes a subscription from the registration list.
func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			b.subs[kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
