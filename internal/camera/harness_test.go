package camera

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// mockSurface is a scripted capture surface recording every declarative
// command the coordinator issues.
type mockSurface struct {
	mu sync.Mutex

	activations   int
	deactivations int
	applied       []SurfaceConfig
	captures      int

	permissionGranted bool
	permissionErr     error
	activateErr       error
	deactivateErr     error
	applyErr          error
	captureErr        error
	captureURI        string
}

func newMockSurface() *mockSurface {
	return &mockSurface{permissionGranted: true, captureURI: "file:///tmp/photo.jpg"}
}

func (m *mockSurface) RequestPermission(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permissionGranted, m.permissionErr
}

func (m *mockSurface) Activate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activations++
	return nil
}

func (m *mockSurface) Deactivate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivations++
	return nil
}

func (m *mockSurface) ApplyConfig(_ context.Context, cfg SurfaceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, cfg)
	return nil
}

func (m *mockSurface) Capture(context.Context, CaptureOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captureErr != nil {
		return "", m.captureErr
	}
	m.captures++
	return m.captureURI, nil
}

func (m *mockSurface) activationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations
}

func (m *mockSurface) deactivationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deactivations
}

func (m *mockSurface) appliedConfigs() []SurfaceConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SurfaceConfig, len(m.applied))
	copy(out, m.applied)
	return out
}

func (m *mockSurface) setErr(set func(*mockSurface)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set(m)
}

// eventRecorder captures published events per kind.
type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
	subs   []*eventbus.Subscription
}

func recordEvents(t *testing.T, bus *eventbus.Bus, kinds ...eventbus.Kind) *eventRecorder {
	t.Helper()

	r := &eventRecorder{}
	for _, kind := range kinds {
		sub := bus.Subscribe("test-recorder", kind, func(e eventbus.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
		r.subs = append(r.subs, sub)
	}
	t.Cleanup(func() {
		for _, s := range r.subs {
			s.Cancel()
		}
	})
	return r
}

func (r *eventRecorder) all() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]eventbus.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) ofKind(kind eventbus.Kind) []eventbus.Event {
	var out []eventbus.Event
	for _, e := range r.all() {
		if e.EventKind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// testCameraConfig mirrors the shipped defaults. Tests mutate the copy when
// they need shorter windows.
func testCameraConfig() config.CameraConfig {
	return config.CameraConfig{
		TakeoverGraceMS:    1000,
		StaleLeaseMS:       5000,
		EscalationWindowMS: 10000,
		WarmupMS:           500,
		SlowTransitionMS:   1000,
		ListenerTTLMinutes: 10,
		Degradation: config.DegradationConfig{
			WindowMS:        30000,
			MinScans:        3,
			CheckIntervalMS: 5000,
		},
		PhotoWorkflowOwners: []string{"ProductPhotoScreen", "IngredientsPhotoScreen"},
		Modes: config.ModesConfig{
			Scanner: config.ModeDefaults{
				Facing:         "back",
				EnableBarcode:  true,
				BarcodeTypes:   []string{"ean13", "ean8", "upc_a", "upc_e", "code128", "qr"},
				CaptureQuality: 0.7,
				Autofocus:      "on",
				TouchFocus:     true,
			},
			ProductPhoto: config.ModeDefaults{
				Facing:             "back",
				EnablePhotoCapture: true,
				CaptureQuality:     0.85,
				Autofocus:          "on",
				TouchFocus:         true,
			},
			IngredientsPhoto: config.ModeDefaults{
				Facing:             "back",
				EnablePhotoCapture: true,
				CaptureQuality:     0.9,
				Autofocus:          "on",
				TouchFocus:         true,
			},
		},
	}
}

// newTestCoordinator wires a coordinator over a mock surface and fake
// clock. mutate adjusts the config before construction; pass nil for the
// defaults.
func newTestCoordinator(t *testing.T, clock *fakeClock, mutate func(*config.CameraConfig)) (*Coordinator, *mockSurface, *eventbus.Bus) {
	t.Helper()

	cfg := testCameraConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	surface := newMockSurface()
	bus := eventbus.New(eventbus.Config{TTL: time.Minute})

	coord, err := New(Deps{
		Config:  cfg,
		Surface: surface,
		Bus:     bus,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		coord.Close()
	})

	return coord, surface, bus
}
