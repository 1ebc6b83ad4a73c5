package bridge

import "errors"

var (
	// ErrNotConnected indicates the MQTT client has no broker connection.
	ErrNotConnected = errors.New("bridge: not connected to broker")

	// ErrTimeout indicates the capture surface did not answer in time.
	ErrTimeout = errors.New("bridge: command timed out")

	// ErrCommandFailed indicates the capture surface reported a failure.
	ErrCommandFailed = errors.New("bridge: command failed")

	// ErrInactive indicates a capture was attempted on an inactive surface.
	ErrInactive = errors.New("bridge: surface not active")
)
