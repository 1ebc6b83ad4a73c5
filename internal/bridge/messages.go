package bridge

import (
	"time"

	"github.com/google/uuid"

	"github.com/veganlens/veganlens-core/internal/camera"
)

// Commands the core sends to the capture surface.
const (
	CommandPermission = "permission"
	CommandActivate   = "activate"
	CommandDeactivate = "deactivate"
	CommandConfigure  = "configure"
	CommandCapture    = "capture"
)

// Event types the capture surface sends to the core.
const (
	EventBarcodeDetected = "barcode_detected"
	EventSurfaceError    = "error"
)

// CommandMessage is one declarative command published to the surface.
// Exactly one of Config and Capture is set, depending on the command.
type CommandMessage struct {
	ID        string                 `json:"id"`
	Command   string                 `json:"command"`
	Timestamp time.Time              `json:"timestamp"`
	Config    *camera.SurfaceConfig  `json:"config,omitempty"`
	Capture   *camera.CaptureOptions `json:"capture,omitempty"`
}

// NewCommandMessage creates a command with a fresh correlation ID.
func NewCommandMessage(command string) CommandMessage {
	return CommandMessage{
		ID:        uuid.NewString(),
		Command:   command,
		Timestamp: time.Now().UTC(),
	}
}

// ResponseMessage is the surface's answer to a command, published on the
// response topic keyed by the command's ID.
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError carries a machine-readable failure from the surface.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventMessage is an unsolicited event from the capture surface.
type EventMessage struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
