package camera

import "errors"

// Sentinel errors for camera operations.
//
// SwitchToMode never returns these; its contract is a bare boolean. They
// surface from the capture-path operations (RequestPermission, CapturePhoto)
// and can be checked with errors.Is().
var (
	// ErrNotReady indicates the camera is not ready for the requested operation
	// (inactive, no permission, or the mode lacks the capability).
	ErrNotReady = errors.New("camera: not ready for operation")

	// ErrCaptureBlocked indicates a recovery sequence is holding captures.
	ErrCaptureBlocked = errors.New("camera: capture blocked during focus recovery")

	// ErrCaptureFailed indicates the external capture call failed.
	ErrCaptureFailed = errors.New("camera: capture failed")

	// ErrClosed indicates the coordinator has been shut down.
	ErrClosed = errors.New("camera: coordinator closed")
)
