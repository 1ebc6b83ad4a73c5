package mqtt

import "fmt"

// Topic prefixes for the VeganLens MQTT namespace.
//
// Camera topics use the flat scheme: veganlens/camera/{category}/{id}
// This matches the device-side capture surface runtime.
const (
	// TopicPrefixCamera is the base for all capture-surface topics.
	TopicPrefixCamera = "veganlens/camera"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "veganlens/system"
)

// Topics provides builders for VeganLens MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.CameraCommand("activate")
//	// Returns: "veganlens/camera/command/activate"
type Topics struct{}

// CameraCommand returns the topic for commands to the capture surface.
//
// Commands: activate, deactivate, configure, capture, focus, tap, reset.
//
// Example: veganlens/camera/command/activate
func (Topics) CameraCommand(command string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixCamera, command)
}

// CameraAck returns the topic for command acknowledgements from the surface.
//
// Example: veganlens/camera/ack/req-abc123
func (Topics) CameraAck(requestID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefixCamera, requestID)
}

// CameraResponse returns the topic for request responses from the surface.
// Capture results come back here keyed by request ID.
//
// Example: veganlens/camera/response/req-abc123
func (Topics) CameraResponse(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefixCamera, requestID)
}

// CameraEvent returns the topic for events from the capture surface.
//
// Events: barcode_detected, capturing_state, permission_changed, error.
//
// Example: veganlens/camera/event/barcode_detected
func (Topics) CameraEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCamera, eventType)
}

// CameraState returns the canonical camera state topic published by Core.
// Retained so late subscribers see the current mode immediately.
//
// Example: veganlens/camera/state
func (Topics) CameraState() string {
	return fmt.Sprintf("%s/state", TopicPrefixCamera)
}

// CameraHealth returns the topic for capture surface health status.
//
// Example: veganlens/camera/health
func (Topics) CameraHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixCamera)
}

// SystemStatus returns the system status topic used for LWT.
//
// Example: veganlens/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCameraEvents returns a pattern matching all capture surface events.
//
// Pattern: veganlens/camera/event/+
func (Topics) AllCameraEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCamera)
}

// AllCameraResponses returns a pattern matching all request responses.
//
// Pattern: veganlens/camera/response/+
func (Topics) AllCameraResponses() string {
	return fmt.Sprintf("%s/response/+", TopicPrefixCamera)
}

// AllCameraAcks returns a pattern matching all command acknowledgements.
//
// Pattern: veganlens/camera/ack/+
func (Topics) AllCameraAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefixCamera)
}

// AllTopics returns a pattern matching all VeganLens topics.
// Use with caution, this receives all traffic.
//
// Pattern: veganlens/#
func (Topics) AllTopics() string {
	return "veganlens/#"
}
