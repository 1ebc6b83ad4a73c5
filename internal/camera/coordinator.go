package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// TelemetrySink receives transition and reset telemetry. Implemented by
// influxdb.Client; optional, nil disables telemetry.
type TelemetrySink interface {
	WriteTransition(fromMode, toMode, owner string, durationMS int64, needsReset bool)
	WriteReset(fromMode, reason string, tier int, durationMS int64)
	WriteScanRate(scans int, windowSeconds int)
}

// Deps carries the coordinator's dependencies. Surface and Bus are
// required; the rest default sensibly.
type Deps struct {
	Config  config.CameraConfig
	Surface CaptureSurface
	Bus     *eventbus.Bus

	// Clock defaults to the system clock. Tests inject a fake.
	Clock Clock

	// Logger defaults to a no-op logger.
	Logger Logger

	// Telemetry and Journal are optional diagnostics sinks.
	Telemetry TelemetrySink
	Journal   *Journal
}

// Coordinator is the camera mode-switch state machine and the package's
// public surface. Exactly one exists per process, owned by the composition
// root.
//
// The arbitration-and-mutation step of SwitchToMode runs atomically under
// the coordinator's lock before the capture surface is touched, so two
// concurrent calls can never interleave their decision phase. Events are
// delivered synchronously, after the lock is released and before any
// surface call suspends.
type Coordinator struct {
	mu    sync.Mutex
	state State

	registry *OwnershipRegistry
	configs  *ModeConfigStore
	monitor  *PerformanceMonitor
	recovery *RecoveryCoordinator

	surface   CaptureSurface
	bus       *eventbus.Bus
	clock     Clock
	logger    Logger
	telemetry TelemetrySink
	journal   *Journal

	cfg config.CameraConfig

	closed    bool
	closeOnce sync.Once
}

// New constructs the coordinator and its internal components.
func New(deps Deps) (*Coordinator, error) {
	if deps.Surface == nil {
		return nil, errors.New("camera: capture surface is required")
	}
	if deps.Bus == nil {
		return nil, errors.New("camera: event bus is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Coordinator{
		state: State{
			Mode:       ModeInactive,
			Permission: PermissionUnknown,
		},
		registry: NewOwnershipRegistry(
			deps.Config.TakeoverGrace(),
			deps.Config.StaleLease(),
			deps.Config.PhotoWorkflowOwners,
			clock,
		),
		configs:   NewModeConfigStore(deps.Config.Modes),
		monitor:   NewPerformanceMonitor(deps.Config.SlowTransition(), clock, logger),
		surface:   deps.Surface,
		bus:       deps.Bus,
		clock:     clock,
		logger:    logger,
		telemetry: deps.Telemetry,
		journal:   deps.Journal,
		cfg:       deps.Config,
	}

	c.recovery = newRecoveryCoordinator(c, deps.Bus, deps.Config, clock, logger, deps.Telemetry, deps.Journal)

	return c, nil
}

// SwitchToMode moves the camera to the target mode on behalf of owner.
//
// Never fails loudly: arbitration refusal returns false with no state
// change and no error event ("resource busy, try again"); every other
// failure is recorded on state, emitted as an error event, and also
// returns false. A panic anywhere inside is converted to the same outcome.
//
// Returning to scanner from a photo mode flags a camera reset; the call
// then waits out the configured warm-up before returning so the caller
// sees a usable scanner.
func (c *Coordinator) SwitchToMode(ctx context.Context, target Mode, overrides *ConfigPatch, owner string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			c.failTransition(fmt.Sprintf("panic during mode switch: %v", rec))
			ok = false
		}
	}()

	if !target.Valid() {
		c.failTransition(fmt.Sprintf("invalid mode %q", string(target)))
		return false
	}

	// Synchronous prefix: arbitration and state mutation happen atomically,
	// before the capture surface is touched.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !c.registry.RequestTransition(owner, target) {
		c.mu.Unlock()
		c.logger.Debug("mode switch denied by arbitration",
			"owner", owner,
			"target", string(target),
		)
		return false
	}

	previous := c.state.Mode
	effective := c.configs.Get(target)
	overrides.apply(&effective)
	needsReset := previous.IsPhoto() && target == ModeScanner

	if target == ModeInactive {
		c.registry.ReleaseForInactive(owner)
	} else {
		c.registry.Grant(owner, target)
	}

	c.state.Mode = target
	c.state.Config = effective
	c.state.Error = ""
	start := c.clock.Now()
	c.mu.Unlock()

	// Leaving scanner mode supersedes any recovery sequence still working
	// on it; the sequence must not hold captures over the new mode.
	if previous == ModeScanner && target != ModeScanner {
		c.recovery.Supersede()
	}

	c.bus.Publish(ModeChangedEvent{
		Previous:   previous,
		Current:    target,
		Config:     effective.clone(),
		NeedsReset: needsReset,
	})

	if target == ModeInactive {
		if err := c.surface.Deactivate(ctx); err != nil {
			return c.failTransition(fmt.Sprintf("deactivation failed: %v", err))
		}

		c.mu.Lock()
		c.state.IsActive = false
		c.state.IsCapturing = false
		snap := c.state.clone()
		c.mu.Unlock()

		c.recovery.SetScannerActive(false)
		c.bus.Publish(DeactivatedEvent{State: snap})
	} else {
		if err := c.pushSurfaceConfig(ctx, effective, nil); err != nil {
			return c.failTransition(fmt.Sprintf("config push failed: %v", err))
		}

		c.mu.Lock()
		wasActive := c.state.IsActive
		c.mu.Unlock()

		if !wasActive {
			if err := c.surface.Activate(ctx); err != nil {
				return c.failTransition(fmt.Sprintf("activation failed: %v", err))
			}
		}

		c.mu.Lock()
		c.state.IsActive = true
		snap := c.state.clone()
		c.mu.Unlock()

		c.recovery.SetScannerActive(target == ModeScanner)
		c.bus.Publish(ActivatedEvent{State: snap})

		if needsReset {
			c.recovery.TriggerReset(previous, target, ResetReasonPhotoWorkflowComplete, owner)
			sleep(ctx, c.clock, c.cfg.Warmup())
		}
	}

	duration := c.clock.Now().Sub(start)
	sample := TransitionSample{From: previous, To: target, Timestamp: start, Duration: duration}
	c.monitor.Record(sample)

	if c.telemetry != nil {
		c.telemetry.WriteTransition(string(previous), string(target), owner, duration.Milliseconds(), needsReset)
	}
	if c.journal != nil {
		c.journal.RecordTransition(ctx, sample, owner, needsReset)
	}

	return true
}

// RequestPermission resolves the camera permission prompt and records the
// tri-state result. The boolean reports whether permission is granted; the
// error covers only prompt failures, not denial.
func (c *Coordinator) RequestPermission(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.mu.Unlock()

	granted, err := c.surface.RequestPermission(ctx)
	if err != nil {
		c.failTransition(fmt.Sprintf("permission request failed: %v", err))
		return false, fmt.Errorf("requesting camera permission: %w", err)
	}

	perm := PermissionDenied
	if granted {
		perm = PermissionGranted
	}

	c.mu.Lock()
	c.state.Permission = perm
	c.mu.Unlock()

	c.bus.Publish(PermissionChangedEvent{Granted: granted})
	return granted, nil
}

// CapturePhoto takes a photo in the current mode and returns the image URI.
//
// Captures are refused while a recovery sequence holds the camera and when
// the mode is not photo-ready. The capturing flag brackets the external
// call with capturingStateChanged events.
func (c *Coordinator) CapturePhoto(ctx context.Context, opts CaptureOptions) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.mu.Unlock()

	if c.recovery.CaptureBlocked() {
		return "", ErrCaptureBlocked
	}
	if !c.IsReadyFor(OperationPhoto) {
		return "", ErrNotReady
	}

	c.mu.Lock()
	if c.state.IsCapturing {
		c.mu.Unlock()
		return "", ErrNotReady
	}
	c.state.IsCapturing = true
	if opts.Quality <= 0 {
		opts.Quality = c.state.Config.CaptureQuality
	}
	c.mu.Unlock()

	c.bus.Publish(CapturingStateChangedEvent{Capturing: true})

	uri, err := c.surface.Capture(ctx, opts)

	c.mu.Lock()
	c.state.IsCapturing = false
	c.mu.Unlock()

	c.bus.Publish(CapturingStateChangedEvent{Capturing: false})

	if err != nil {
		c.failTransition(fmt.Sprintf("capture failed: %v", err))
		return "", fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	return uri, nil
}

// State returns a copy of the current camera state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// CurrentOwner returns a copy of the active lease, or nil when unowned.
func (c *Coordinator) CurrentOwner() *Lease {
	return c.registry.Current()
}

// UpdateModeConfig merges a partial config into the stored default for
// mode. When mode is currently active the live state config is updated
// too, the surface is reconciled, and configUpdated is emitted.
func (c *Coordinator) UpdateModeConfig(ctx context.Context, mode Mode, patch *ConfigPatch) {
	merged := c.configs.Update(mode, patch)

	c.mu.Lock()
	live := c.state.Mode == mode && mode != ModeInactive
	if live {
		patch.apply(&c.state.Config)
		merged = c.state.Config.clone()
	}
	c.mu.Unlock()

	if !live {
		return
	}

	if err := c.pushSurfaceConfig(ctx, merged, nil); err != nil {
		c.logger.Warn("live config push failed", "mode", string(mode), "error", err)
	}

	c.bus.Publish(ConfigUpdatedEvent{Config: merged})
}

// ModeConfig returns a copy of the stored default for mode.
func (c *Coordinator) ModeConfig(mode Mode) Config {
	return c.configs.Get(mode)
}

// IsReadyFor reports whether the camera can perform the operation right
// now: active, permission granted, and the mode carries the capability.
func (c *Coordinator) IsReadyFor(op Operation) bool {
	c.mu.Lock()
	s := c.state.clone()
	c.mu.Unlock()

	if !s.IsActive || s.Permission != PermissionGranted {
		return false
	}

	switch op {
	case OperationBarcode:
		return s.Config.EnableBarcode
	case OperationPhoto:
		return s.Config.EnablePhotoCapture && !s.IsCapturing
	}
	return false
}

// RecordBarcodeDetection feeds one successful barcode detection into the
// degradation heuristic. Detections outside scanner mode are ignored.
func (c *Coordinator) RecordBarcodeDetection() {
	c.mu.Lock()
	inScanner := c.state.Mode == ModeScanner
	c.mu.Unlock()

	if inScanner {
		c.recovery.RecordScan()
	}
}

// PerformanceMetrics returns transition statistics over the trailing window.
func (c *Coordinator) PerformanceMetrics() Metrics {
	return c.monitor.Metrics()
}

// TransitionHistory returns the retained transition samples, oldest first.
func (c *Coordinator) TransitionHistory() []TransitionSample {
	return c.monitor.History()
}

// RecoveryStatus returns a diagnostics snapshot of the recovery coordinator.
func (c *Coordinator) RecoveryStatus() RecoveryStatus {
	return c.recovery.Status()
}

// LogHealthDiagnostics writes a state/metrics summary to the log.
// Diagnostics only; no behavioural effect.
func (c *Coordinator) LogHealthDiagnostics() {
	state := c.State()
	metrics := c.PerformanceMetrics()
	recovery := c.RecoveryStatus()

	owner := "none"
	if lease := c.CurrentOwner(); lease != nil {
		owner = lease.Owner
	}

	c.logger.Info("camera health diagnostics",
		"mode", string(state.Mode),
		"active", state.IsActive,
		"capturing", state.IsCapturing,
		"permission", string(state.Permission),
		"owner", owner,
		"recent_transitions", metrics.RecentTransitions,
		"slow_transitions", metrics.SlowTransitions,
		"avg_duration_ms", metrics.AverageDuration.Milliseconds(),
		"resets_run", recovery.ResetsRun,
		"reset_in_flight", recovery.InFlight,
	)
}

// Close shuts the coordinator down: cancels any recovery sequence and
// deactivates the surface if it is still active.
func (c *Coordinator) Close() error {
	var deactivate bool

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		deactivate = c.state.IsActive
		c.state.IsActive = false
		c.state.IsCapturing = false
		c.state.Mode = ModeInactive
		c.mu.Unlock()

		c.recovery.Close()
	})

	if deactivate {
		if err := c.surface.Deactivate(context.Background()); err != nil {
			return fmt.Errorf("deactivating capture surface: %w", err)
		}
	}
	return nil
}

// pushSurfaceConfig sends the declarative payload to the capture surface,
// stamped with the current reset generation and refresh flag.
func (c *Coordinator) pushSurfaceConfig(ctx context.Context, cfg Config, focus *FocusPoint) error {
	sc := SurfaceConfig{
		Config:          cfg.clone(),
		ResetGeneration: c.recovery.Generation(),
		SettingsRefresh: c.recovery.settingsRefreshActive(),
		FocusPoint:      focus,
	}
	return c.surface.ApplyConfig(ctx, sc)
}

// failTransition funnels a failure into state and the error event stream.
// Always returns false so callers can tail-call it.
func (c *Coordinator) failTransition(msg string) bool {
	c.mu.Lock()
	c.state.Error = msg
	c.mu.Unlock()

	c.logger.Error("camera operation failed", "error", msg)
	c.bus.Publish(ErrorEvent{Message: msg})
	return false
}

// Bus exposes the event bus for consumers that attach through the
// coordinator handle.
func (c *Coordinator) Bus() *eventbus.Bus {
	return c.bus
}
