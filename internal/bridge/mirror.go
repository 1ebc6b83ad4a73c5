package bridge

import (
	"encoding/json"
	"time"

	"github.com/veganlens/veganlens-core/internal/camera"
	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/mqtt"
)

// mirroredKinds are the bus events re-published onto MQTT.
var mirroredKinds = []eventbus.Kind{
	camera.KindModeChanged,
	camera.KindActivated,
	camera.KindDeactivated,
	camera.KindPermissionChanged,
	camera.KindCapturingStateChanged,
	camera.KindConfigUpdated,
	camera.KindError,
	camera.KindCameraReset,
}

// MirroredEvent is the wire form of one re-published bus event.
type MirroredEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// EventMirror re-publishes the core's event-bus traffic onto the MQTT
// namespace so device UIs and diagnostics tooling can follow along.
//
// Activation and deactivation additionally refresh the retained state topic,
// so late subscribers see the current mode immediately.
type EventMirror struct {
	bus    *eventbus.Bus
	client MQTTClient
	logger Logger
	topics mqtt.Topics

	subs []*eventbus.Subscription
}

// NewEventMirror creates a mirror. Call Start to begin re-publishing.
func NewEventMirror(bus *eventbus.Bus, client MQTTClient, logger Logger) *EventMirror {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventMirror{bus: bus, client: client, logger: logger}
}

// Start subscribes to every mirrored event kind. The subscriptions are
// pinned: the mirror lives for the process lifetime.
func (m *EventMirror) Start() {
	for _, kind := range mirroredKinds {
		m.subs = append(m.subs, m.bus.SubscribePinned("mqtt-mirror", kind, m.handle))
	}
	m.logger.Info("event mirror started", "kinds", len(m.subs))
}

// Stop cancels all subscriptions.
func (m *EventMirror) Stop() {
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
}

// handle re-publishes one bus event.
func (m *EventMirror) handle(event eventbus.Event) {
	if !m.client.IsConnected() {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		m.logger.Warn("failed to marshal mirrored event", "kind", string(event.EventKind()), "error", err)
		return
	}

	payload, err := json.Marshal(MirroredEvent{
		Type:      string(event.EventKind()),
		Timestamp: time.Now().UTC(),
		Event:     raw,
	})
	if err != nil {
		m.logger.Warn("failed to marshal mirrored event", "kind", string(event.EventKind()), "error", err)
		return
	}

	topic := m.topics.CameraEvent(string(event.EventKind()))
	if err := m.client.Publish(topic, payload, commandQoS, false); err != nil {
		m.logger.Warn("failed to publish mirrored event", "topic", topic, "error", err)
	}

	// Keep the retained state topic current on lifecycle changes.
	switch e := event.(type) {
	case camera.ActivatedEvent:
		m.publishState(e.State)
	case camera.DeactivatedEvent:
		m.publishState(e.State)
	}
}

// publishState publishes the retained canonical state snapshot.
func (m *EventMirror) publishState(state camera.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		m.logger.Warn("failed to marshal state snapshot", "error", err)
		return
	}
	if err := m.client.Publish(m.topics.CameraState(), payload, commandQoS, true); err != nil {
		m.logger.Warn("failed to publish state snapshot", "error", err)
	}
}
