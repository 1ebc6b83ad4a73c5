// Package bridge connects the camera coordinator to the device-side capture
// surface over MQTT.
//
// # Architecture
//
// The coordinator only speaks camera.CaptureSurface. This package provides
// two implementations:
//
//   - Surface: publishes declarative commands on the veganlens/camera MQTT
//     namespace and correlates responses by request ID. Barcode-detection
//     events from the device feed the coordinator's degradation heuristic.
//   - Loopback: an in-process surface for broker-less operation (development,
//     tests, CI).
//
// # Message flow
//
//	Core → surface:  veganlens/camera/command/{command}   CommandMessage
//	Surface → core:  veganlens/camera/response/{id}       ResponseMessage
//	Surface → core:  veganlens/camera/event/{type}        EventMessage
//
// Commands carry a UUID; the device answers on the response topic keyed by
// that ID. Config pushes are fire-and-forget: the surface reconciles itself
// against the latest payload, so there is nothing to wait for.
//
// EventMirror is the reverse direction for observers: it re-publishes the
// core's event-bus traffic onto MQTT so device UIs and diagnostics tooling
// can follow mode changes without a direct process link.
package bridge
