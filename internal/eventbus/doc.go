// Package eventbus provides the in-process event bus for camera lifecycle
// events.
//
// Screens and background services subscribe to typed events (mode changes,
// activation, permission changes, resets) and receive them synchronously in
// registration order. Handlers run on the publisher's goroutine, so they must
// be quick; anything slow belongs behind a channel.
//
// # Leak Defence
//
// Subscriptions carry a TTL. A subscription that is never cancelled expires
// automatically and logs a warning naming the subscriber, which surfaces
// screens that forgot to clean up after themselves. Cancel is idempotent and
// stops the timer.
//
// # Usage
//
//	bus := eventbus.New(eventbus.Config{TTL: 10 * time.Minute, Logger: log})
//
//	sub := bus.Subscribe("ScannerScreen", camera.KindModeChanged, func(e eventbus.Event) {
//	    evt := e.(camera.ModeChangedEvent)
//	    // react to evt.To
//	})
//	defer sub.Cancel()
//
//	bus.Publish(camera.ModeChangedEvent{From: camera.ModeInactive, To: camera.ModeScanner})
//
// A panicking handler is recovered and logged; it never breaks delivery to
// the remaining subscribers.
package eventbus
