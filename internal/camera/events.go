package camera

import "github.com/veganlens/veganlens-core/internal/eventbus"

// Event kinds published by the coordinator. The set is closed; consumers
// subscribe per kind and type-assert the payload.
const (
	KindModeChanged           eventbus.Kind = "modeChanged"
	KindActivated             eventbus.Kind = "activated"
	KindDeactivated           eventbus.Kind = "deactivated"
	KindPermissionChanged     eventbus.Kind = "permissionChanged"
	KindCapturingStateChanged eventbus.Kind = "capturingStateChanged"
	KindConfigUpdated         eventbus.Kind = "configUpdated"
	KindError                 eventbus.Kind = "error"
	KindCameraReset           eventbus.Kind = "cameraReset"
)

// ModeChangedEvent is published on every granted mode switch, before the
// capture surface is touched.
type ModeChangedEvent struct {
	Previous   Mode   `json:"previous_mode"`
	Current    Mode   `json:"current_mode"`
	Config     Config `json:"config"`
	NeedsReset bool   `json:"needs_camera_reset"`
}

func (ModeChangedEvent) EventKind() eventbus.Kind { return KindModeChanged }

// ActivatedEvent is published after the capture surface activates.
type ActivatedEvent struct {
	State State `json:"state"`
}

func (ActivatedEvent) EventKind() eventbus.Kind { return KindActivated }

// DeactivatedEvent is published after the capture surface deactivates.
type DeactivatedEvent struct {
	State State `json:"state"`
}

func (DeactivatedEvent) EventKind() eventbus.Kind { return KindDeactivated }

// PermissionChangedEvent is published when the permission prompt resolves.
type PermissionChangedEvent struct {
	Granted bool `json:"granted"`
}

func (PermissionChangedEvent) EventKind() eventbus.Kind { return KindPermissionChanged }

// CapturingStateChangedEvent brackets a photo capture.
type CapturingStateChangedEvent struct {
	Capturing bool `json:"capturing"`
}

func (CapturingStateChangedEvent) EventKind() eventbus.Kind { return KindCapturingStateChanged }

// ConfigUpdatedEvent is published when a runtime config update touches the
// currently active mode.
type ConfigUpdatedEvent struct {
	Config Config `json:"config"`
}

func (ConfigUpdatedEvent) EventKind() eventbus.Kind { return KindConfigUpdated }

// ErrorEvent carries a failure funnelled into state per the never-throws
// contract of the mode switch surface.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventKind() eventbus.Kind { return KindError }

// CameraResetEvent is published once per accepted recovery trigger.
// The payload is ephemeral and never persisted by the core.
type CameraResetEvent struct {
	FromMode Mode   `json:"from_mode"`
	ToMode   Mode   `json:"to_mode"`
	Reason   string `json:"reason"`
}

func (CameraResetEvent) EventKind() eventbus.Kind { return KindCameraReset }
