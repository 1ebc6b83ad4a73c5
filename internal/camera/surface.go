package camera

import "context"

// FocusPoint is a synthesized touch-focus tap in normalized screen
// coordinates (0..1 on both axes).
type FocusPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SurfaceConfig is the full declarative payload pushed to the capture
// surface. The surface reconciles itself against it; the core never issues
// imperative focus/zoom calls.
type SurfaceConfig struct {
	Config Config `json:"config"`

	// ResetGeneration is an opaque counter. The surface fully reinitializes
	// whenever the value changes.
	ResetGeneration uint64 `json:"reset_generation"`

	// SettingsRefresh forces the surface to re-read every setting rather
	// than diffing against its cached copy. Set during tier-2 recovery.
	SettingsRefresh bool `json:"settings_refresh,omitempty"`

	// FocusPoint, when non-nil, synthesizes a touch-focus tap at the given
	// coordinates. Nil clears any synthesized point.
	FocusPoint *FocusPoint `json:"focus_point,omitempty"`
}

// CaptureSurface is the external camera collaborator: the device-side
// permission API, frame pipeline and JPEG encoder. The core only issues
// declarative commands; rendering and decoding live on the other side.
//
// Implementations: bridge.Surface (MQTT) and bridge.Loopback (broker-less).
type CaptureSurface interface {
	// RequestPermission resolves the camera permission prompt.
	RequestPermission(ctx context.Context) (bool, error)

	// Activate starts the frame pipeline. Must be a no-op if already active.
	Activate(ctx context.Context) error

	// Deactivate stops the frame pipeline and releases the hardware.
	Deactivate(ctx context.Context) error

	// ApplyConfig pushes the declarative configuration to the surface.
	ApplyConfig(ctx context.Context, cfg SurfaceConfig) error

	// Capture takes a photo and returns the image URI.
	Capture(ctx context.Context, opts CaptureOptions) (string, error)
}
