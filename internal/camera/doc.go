// Package camera coordinates exclusive access to the device's single
// physical camera across a barcode scanner view and two photo-capture
// workflows.
//
// The Coordinator is the public surface. It owns the one mutable camera
// state snapshot, arbitrates mode takeover through the ownership registry,
// applies per-mode hardware configuration, and drives the two-tier focus
// recovery sequences that heal autofocus lock-up after photo-mode use.
//
// # Components
//
//   - OwnershipRegistry: single time-stamped lease, takeover arbitration
//   - ModeConfigStore: per-mode hardware defaults, runtime mutable
//   - Coordinator: mode-switch state machine, never returns errors to callers
//   - RecoveryCoordinator: tier-1/tier-2 cancellable reset sequences and the
//     scan-rate degradation heuristic
//   - PerformanceMonitor: transition ring buffer and trailing-window metrics
//   - Journal: optional SQLite diagnostics history
//
// # Contract
//
// SwitchToMode never fails loudly: arbitration refusal returns false with no
// state change, and every other failure is recorded on the state snapshot
// and emitted as an error event. Callers observe state, they do not catch.
//
// All state reads return value copies. Nothing in this package survives a
// process restart; the journal and telemetry sinks are diagnostics only.
//
// # Construction
//
// Exactly one Coordinator exists per process, by construction discipline at
// the composition root rather than a package-level singleton:
//
//	coord, err := camera.New(camera.Deps{
//	    Config:  cfg.Camera,
//	    Surface: surface,
//	    Bus:     bus,
//	    Clock:   nil, // system clock
//	    Logger:  log,
//	})
package camera
