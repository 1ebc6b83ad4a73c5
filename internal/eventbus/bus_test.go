package eventbus

import (
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	kind Kind
	n    int
}

func (e testEvent) EventKind() Kind { return e.kind }

// recordingLogger captures warnings for TTL expiry assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := New(Config{})

	var got []int
	sub := bus.Subscribe("TestScreen", "test", func(e Event) {
		got = append(got, e.(testEvent).n)
	})
	defer sub.Cancel()

	bus.Publish(testEvent{kind: "test", n: 1})
	bus.Publish(testEvent{kind: "test", n: 2})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("received %v, want [1 2]", got)
	}
}

func TestPublishKindIsolation(t *testing.T) {
	bus := New(Config{})

	var calls int
	sub := bus.Subscribe("TestScreen", "wanted", func(Event) { calls++ })
	defer sub.Cancel()

	bus.Publish(testEvent{kind: "other", n: 1})

	if calls != 0 {
		t.Errorf("handler called %d times for unrelated kind, want 0", calls)
	}
}

func TestPublishRegistrationOrder(t *testing.T) {
	bus := New(Config{})

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		sub := bus.Subscribe(name, "test", func(Event) {
			order = append(order, name)
		})
		defer sub.Cancel()
	}

	bus.Publish(testEvent{kind: "test"})

	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery order %v, want %v", order, want)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := New(Config{})

	var calls int
	sub := bus.Subscribe("TestScreen", "test", func(Event) { calls++ })

	bus.Publish(testEvent{kind: "test"})
	sub.Cancel()
	bus.Publish(testEvent{kind: "test"})

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestCancelIdempotent(t *testing.T) {
	bus := New(Config{})

	sub := bus.Subscribe("TestScreen", "test", func(Event) {})
	sub.Cancel()
	sub.Cancel()

	if count := bus.SubscriberCount("test"); count != 0 {
		t.Errorf("SubscriberCount() = %d after double cancel, want 0", count)
	}
}

func TestHandlerPanicDoesNotBreakDelivery(t *testing.T) {
	logger := &recordingLogger{}
	bus := New(Config{Logger: logger})

	var reached bool
	s1 := bus.Subscribe("Panicky", "test", func(Event) { panic("boom") })
	defer s1.Cancel()
	s2 := bus.Subscribe("Steady", "test", func(Event) { reached = true })
	defer s2.Cancel()

	bus.Publish(testEvent{kind: "test"})

	if !reached {
		t.Error("second handler not reached after first panicked")
	}
	if logger.count() == 0 {
		t.Error("panic was not logged")
	}
}

func TestSubscriptionExpiry(t *testing.T) {
	logger := &recordingLogger{}
	bus := New(Config{TTL: 20 * time.Millisecond, Logger: logger})

	bus.Subscribe("LeakyScreen", "test", func(Event) {})

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount("test") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if logger.count() == 0 {
		t.Error("expiry warning not logged")
	}
}

func TestPinnedSubscriptionOutlivesTTL(t *testing.T) {
	logger := &recordingLogger{}
	bus := New(Config{TTL: 20 * time.Millisecond, Logger: logger})

	sub := bus.SubscribePinned("mqtt-mirror", "test", func(Event) {})

	time.Sleep(60 * time.Millisecond)

	if bus.SubscriberCount("test") != 1 {
		t.Error("pinned subscription expired")
	}
	if logger.count() != 0 {
		t.Errorf("got %d leak warnings for a pinned subscription, want 0", logger.count())
	}

	sub.Cancel()
	if bus.SubscriberCount("test") != 0 {
		t.Error("Cancel() did not remove the pinned subscription")
	}
}

func TestCancelBeforeExpiryNoWarning(t *testing.T) {
	logger := &recordingLogger{}
	bus := New(Config{TTL: 20 * time.Millisecond, Logger: logger})

	sub := bus.Subscribe("TidyScreen", "test", func(Event) {})
	sub.Cancel()

	time.Sleep(50 * time.Millisecond)

	if logger.count() != 0 {
		t.Errorf("got %d warnings after clean cancel, want 0", logger.count())
	}
}

func TestSubscribeDuringPublish(t *testing.T) {
	bus := New(Config{})

	var nested *Subscription
	sub := bus.Subscribe("Outer", "test", func(Event) {
		if nested == nil {
			nested = bus.Subscribe("Inner", "test", func(Event) {})
		}
	})
	defer sub.Cancel()

	// Must not deadlock.
	bus.Publish(testEvent{kind: "test"})

	if nested == nil {
		t.Fatal("nested subscribe did not run")
	}
	nested.Cancel()
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	bus := New(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("Concurrent", "test", func(Event) {})
			sub.Cancel()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(testEvent{kind: "test"})
		}()
	}
	wg.Wait()
}
