package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// Recovery sequence timings. Tuned on real hardware alongside the config
// thresholds; changing them is a product decision.
const (
	tier1StageBDelay   = 300 * time.Millisecond
	tier1CycleInterval = 200 * time.Millisecond
	tier1Cycles        = 3
	tier1SettleDelay   = 300 * time.Millisecond

	tier2DeactivateSettle = 800 * time.Millisecond
	tier2RefreshSettle    = 500 * time.Millisecond
	tier2ReactivateSettle = 600 * time.Millisecond
	tier2Cycles           = 5
	tier2TapHold          = 200 * time.Millisecond
	tier2TapGap           = 100 * time.Millisecond
	tier2FinalSettle      = 500 * time.Millisecond

	// tier2GenerationBump is deliberately large so the capture surface sees
	// an unmistakable remount signal rather than a prop tweak.
	tier2GenerationBump = 1000
)

// tier2FocusPoints are the four quadrant points plus center used by the
// hardware-reset perturbation pass.
var tier2FocusPoints = [tier2Cycles]FocusPoint{
	{X: 0.25, Y: 0.25},
	{X: 0.75, Y: 0.25},
	{X: 0.25, Y: 0.75},
	{X: 0.75, Y: 0.75},
	{X: 0.5, Y: 0.5},
}

// optimalScannerConfig is passed verbatim during tier-2 reactivation so a
// corrupted stored default cannot survive the hardware reset.
var optimalScannerConfig = Config{
	Facing:             "back",
	EnableBarcode:      true,
	BarcodeTypes:       []string{"ean13", "ean8", "upc_a", "upc_e", "code128", "qr"},
	EnablePhotoCapture: false,
	CaptureQuality:     0.7,
	Autofocus:          "on",
	TouchFocus:         true,
}

// resetHost is the slice of the coordinator the recovery sequences drive.
type resetHost interface {
	SwitchToMode(ctx context.Context, target Mode, overrides *ConfigPatch, owner string) bool
	State() State
	CurrentOwner() *Lease
	pushSurfaceConfig(ctx context.Context, cfg Config, focus *FocusPoint) error
}

// RecoveryStatus is a diagnostics snapshot of the recovery coordinator.
type RecoveryStatus struct {
	InFlight       bool      `json:"in_flight"`
	LastTrigger    time.Time `json:"last_trigger,omitempty"`
	Generation     uint64    `json:"reset_generation"`
	CaptureBlocked bool      `json:"capture_blocked"`
	ResetsRun      int       `json:"resets_run"`
}

// RecoveryCoordinator drives the two-tier focus recovery sequences.
//
// Triggers come from the coordinator on photo-to-scanner returns, and from
// the scan-rate degradation heuristic while in scanner mode. At most one
// sequence is in flight; a trigger arriving while one is active is ignored
// and logged, never queued.
//
// Tier selection: a trigger recurring within the escalation window of the
// previous one escalates to the tier-2 hardware reset; otherwise the tier-1
// standard reset runs. A tier-2 failure mid-sequence falls back to tier 1
// instead of propagating.
type RecoveryCoordinator struct {
	host   resetHost
	bus    *eventbus.Bus
	clock  Clock
	logger Logger

	escalation  time.Duration
	degradation config.DegradationConfig

	telemetry TelemetrySink
	journal   *Journal

	mu              sync.Mutex
	inFlight        bool
	seq             uint64
	lastTrigger     time.Time
	generation      uint64
	captureBlocked  bool
	settingsRefresh bool
	resetsRun       int

	// switching marks the sequence's own tier-2 mode switches so the
	// coordinator's supersede hook ignores them.
	switching bool

	// Degradation heuristic state. scannerSince is zero outside scanner mode.
	scanTimes    []time.Time
	scannerSince time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newRecoveryCoordinator wires the recovery coordinator to its host and
// starts the degradation checker. Owned by camera.New.
func newRecoveryCoordinator(host resetHost, bus *eventbus.Bus, cfg config.CameraConfig, clock Clock, logger Logger, telemetry TelemetrySink, journal *Journal) *RecoveryCoordinator {
	ctx, cancel := context.WithCancel(context.Background())

	r := &RecoveryCoordinator{
		host:        host,
		bus:         bus,
		clock:       clock,
		logger:      logger,
		escalation:  cfg.EscalationWindow(),
		degradation: cfg.Degradation,
		telemetry:   telemetry,
		journal:     journal,
		ctx:         ctx,
		cancel:      cancel,
	}

	r.wg.Add(1)
	go r.degradationLoop()

	return r
}

// TriggerReset requests a recovery sequence. Reports whether the trigger
// was accepted; a trigger while a sequence is in flight is dropped.
//
// The owner identity is carried through so tier-2's deactivate/reactivate
// switches pass arbitration as the screen that owns the camera.
func (r *RecoveryCoordinator) TriggerReset(fromMode, toMode Mode, reason, owner string) bool {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		r.logger.Warn("camera reset trigger ignored, recovery already in flight",
			"from", string(fromMode),
			"reason", reason,
		)
		return false
	}

	now := r.clock.Now()
	tier := 1
	if !r.lastTrigger.IsZero() && now.Sub(r.lastTrigger) <= r.escalation {
		tier = 2
	}
	r.lastTrigger = now
	r.inFlight = true
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	r.logger.Info("camera reset triggered",
		"from", string(fromMode),
		"to", string(toMode),
		"reason", reason,
		"tier", tier,
	)

	r.bus.Publish(CameraResetEvent{FromMode: fromMode, ToMode: toMode, Reason: reason})

	r.wg.Add(1)
	go r.run(seq, tier, fromMode, reason, owner)

	return true
}

// run executes one recovery sequence and clears the in-flight state.
func (r *RecoveryCoordinator) run(seq uint64, tier int, fromMode Mode, reason, owner string) {
	defer r.wg.Done()

	start := r.clock.Now()

	if tier == 2 {
		if err := r.runTier2(seq, owner); err != nil {
			if !r.alive(seq) {
				return
			}
			r.logger.Warn("hardware reset failed, falling back to standard reset",
				"error", err,
			)
			r.runTier1(seq)
		}
	} else {
		r.runTier1(seq)
	}

	duration := r.clock.Now().Sub(start)

	r.mu.Lock()
	if r.seq != seq {
		// Superseded mid-sequence; the holds are already released and a
		// newer sequence may own the state.
		r.mu.Unlock()
		return
	}
	r.inFlight = false
	r.captureBlocked = false
	r.settingsRefresh = false
	r.resetsRun++
	r.scanTimes = nil
	if !r.scannerSince.IsZero() {
		// Restart the degradation observation window from scratch.
		r.scannerSince = r.clock.Now()
	}
	r.mu.Unlock()

	r.logger.Info("camera reset complete",
		"tier", tier,
		"reason", reason,
		"duration_ms", duration.Milliseconds(),
	)

	if r.telemetry != nil {
		r.telemetry.WriteReset(string(fromMode), reason, tier, duration.Milliseconds())
	}
	if r.journal != nil {
		r.journal.RecordReset(r.ctx, fromMode, ModeScanner, reason, tier, duration)
	}
}

// runTier1 executes the standard reset: focus perturbation without touching
// the camera session. Push failures are logged and the sequence carries on;
// a partial perturbation still beats none.
func (r *RecoveryCoordinator) runTier1(seq uint64) {
	if !r.alive(seq) {
		return
	}

	// Stage A: drop focus control, force a remount, hold captures.
	cfg := r.host.State().Config
	cfg.Autofocus = "off"
	restoreTouch := cfg.TouchFocus
	cfg.TouchFocus = false

	r.mu.Lock()
	r.generation++
	r.captureBlocked = true
	r.mu.Unlock()

	if err := r.host.pushSurfaceConfig(r.ctx, cfg, nil); err != nil {
		r.logger.Warn("reset stage A push failed", "error", err)
	}

	if !r.pause(seq, tier1StageBDelay) {
		return
	}

	// Stage B: alternate autofocus off/on, tapping center on even cycles.
	center := FocusPoint{X: 0.5, Y: 0.5}
	for cycle := 0; cycle < tier1Cycles; cycle++ {
		if !r.alive(seq) {
			return
		}

		cfg.Autofocus = "off"
		if cycle%2 == 1 {
			cfg.Autofocus = "on"
		}
		var focus *FocusPoint
		if cycle%2 == 0 {
			focus = &center
		}

		if err := r.host.pushSurfaceConfig(r.ctx, cfg, focus); err != nil {
			r.logger.Warn("reset perturbation push failed", "cycle", cycle, "error", err)
		}

		if !r.pause(seq, tier1CycleInterval) {
			return
		}
	}

	// Stage C: restore focus control, release captures, settle.
	cfg.Autofocus = "on"
	cfg.TouchFocus = restoreTouch
	if err := r.host.pushSurfaceConfig(r.ctx, cfg, nil); err != nil {
		r.logger.Warn("reset stage C push failed", "error", err)
	}

	r.mu.Lock()
	r.captureBlocked = false
	r.mu.Unlock()

	r.pause(seq, tier1SettleDelay)
}

// runTier2 executes the hardware reset: full deactivation, forced remount
// with a settings refresh, explicit reactivation, and a wide perturbation
// pass. Any failure aborts the sequence so the caller can fall back.
func (r *RecoveryCoordinator) runTier2(seq uint64, owner string) error {
	// 1. Tear the session down completely.
	if !r.switchMode(ModeInactive, nil, owner) {
		return fmt.Errorf("deactivation refused for owner %q", owner)
	}
	if !r.pause(seq, tier2DeactivateSettle) {
		return fmt.Errorf("sequence superseded during deactivation settle")
	}

	// 2. Signal a full remount, not a prop tweak.
	r.mu.Lock()
	r.generation += tier2GenerationBump
	r.settingsRefresh = true
	r.mu.Unlock()

	if !r.pause(seq, tier2RefreshSettle) {
		return fmt.Errorf("sequence superseded during refresh settle")
	}

	// 3. Reactivate with every optimal setting spelled out.
	patch := fullPatch(optimalScannerConfig)
	if !r.switchMode(ModeScanner, patch, owner) {
		return fmt.Errorf("scanner reactivation refused for owner %q", owner)
	}
	if !r.pause(seq, tier2ReactivateSettle) {
		return fmt.Errorf("sequence superseded during reactivation settle")
	}

	// 4. Wide perturbation pass across the frame.
	r.mu.Lock()
	r.settingsRefresh = false
	r.mu.Unlock()

	cfg := r.host.State().Config
	for cycle := 0; cycle < tier2Cycles; cycle++ {
		if !r.alive(seq) {
			return fmt.Errorf("sequence superseded during perturbation")
		}

		point := tier2FocusPoints[cycle]
		if err := r.host.pushSurfaceConfig(r.ctx, cfg, &point); err != nil {
			return fmt.Errorf("perturbation tap %d: %w", cycle, err)
		}
		if !r.pause(seq, tier2TapHold) {
			return fmt.Errorf("sequence superseded during perturbation")
		}
		if err := r.host.pushSurfaceConfig(r.ctx, cfg, nil); err != nil {
			return fmt.Errorf("perturbation clear %d: %w", cycle, err)
		}
		if !r.pause(seq, tier2TapGap) {
			return fmt.Errorf("sequence superseded during perturbation")
		}
	}

	// 5. Final settle.
	if !r.pause(seq, tier2FinalSettle) {
		return fmt.Errorf("sequence superseded during final settle")
	}

	return nil
}

// switchMode performs a sequence-owned mode switch without tripping the
// supersede hook.
func (r *RecoveryCoordinator) switchMode(target Mode, patch *ConfigPatch, owner string) bool {
	r.mu.Lock()
	r.switching = true
	r.mu.Unlock()

	ok := r.host.SwitchToMode(r.ctx, target, patch, owner)

	r.mu.Lock()
	r.switching = false
	r.mu.Unlock()
	return ok
}

// Supersede cancels an in-flight sequence because the camera left the mode
// it was recovering. The capture hold and refresh flag are released
// immediately; the sequence goroutine notices the bumped sequence number at
// its next checkpoint and stops pushing. The sequence's own tier-2 mode
// switches do not supersede themselves.
func (r *RecoveryCoordinator) Supersede() {
	r.mu.Lock()
	if !r.inFlight || r.switching {
		r.mu.Unlock()
		return
	}
	r.seq++
	r.inFlight = false
	r.captureBlocked = false
	r.settingsRefresh = false
	r.mu.Unlock()

	r.logger.Info("camera reset superseded by mode change")
}

// RecordScan feeds one successful barcode detection into the degradation
// heuristic.
func (r *RecoveryCoordinator) RecordScan() {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanTimes = append(r.scanTimes, now)
	r.pruneScansLocked(now)
}

// SetScannerActive tells the heuristic whether the camera is in scanner
// mode. Entering scanner mode restarts the observation window.
func (r *RecoveryCoordinator) SetScannerActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if active {
		r.scannerSince = r.clock.Now()
		r.scanTimes = nil
	} else {
		r.scannerSince = time.Time{}
	}
}

// CaptureBlocked reports whether a recovery sequence is holding captures.
func (r *RecoveryCoordinator) CaptureBlocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captureBlocked
}

// Generation returns the current reset-generation token.
func (r *RecoveryCoordinator) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// settingsRefreshActive reports whether the tier-2 settings refresh flag is set.
func (r *RecoveryCoordinator) settingsRefreshActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settingsRefresh
}

// Status returns a diagnostics snapshot.
func (r *RecoveryCoordinator) Status() RecoveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecoveryStatus{
		InFlight:       r.inFlight,
		LastTrigger:    r.lastTrigger,
		Generation:     r.generation,
		CaptureBlocked: r.captureBlocked,
		ResetsRun:      r.resetsRun,
	}
}

// Close cancels any in-flight sequence and stops the degradation checker.
func (r *RecoveryCoordinator) Close() {
	r.cancel()
	r.wg.Wait()
}

// degradationLoop periodically evaluates the scan-rate heuristic.
func (r *RecoveryCoordinator) degradationLoop() {
	defer r.wg.Done()

	interval := r.degradation.CheckInterval()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.clock.After(interval):
		}
		r.checkDegradation()
	}
}

// checkDegradation triggers a proactive recovery when scanner throughput
// collapses: fewer than the configured minimum of successful detections
// across a full trailing window.
func (r *RecoveryCoordinator) checkDegradation() {
	now := r.clock.Now()

	r.mu.Lock()
	if r.inFlight || r.scannerSince.IsZero() {
		r.mu.Unlock()
		return
	}
	if now.Sub(r.scannerSince) < r.degradation.Window() {
		// Not enough observation time in scanner mode yet.
		r.mu.Unlock()
		return
	}
	r.pruneScansLocked(now)
	scans := len(r.scanTimes)
	r.mu.Unlock()

	if r.telemetry != nil {
		r.telemetry.WriteScanRate(scans, int(r.degradation.Window().Seconds()))
	}

	if scans >= r.degradation.MinScans {
		return
	}

	lease := r.host.CurrentOwner()
	if lease == nil || lease.Mode != ModeScanner {
		return
	}

	r.logger.Warn("scanner throughput degraded, triggering proactive recovery",
		"scans", scans,
		"window_s", int(r.degradation.Window().Seconds()),
	)
	r.TriggerReset(ModeScanner, ModeScanner, ResetReasonDegradedScanning, lease.Owner)
}

// pruneScansLocked drops detections older than the trailing window.
// Caller holds the lock.
func (r *RecoveryCoordinator) pruneScansLocked(now time.Time) {
	cutoff := now.Add(-r.degradation.Window())
	i := 0
	for ; i < len(r.scanTimes); i++ {
		if r.scanTimes[i].After(cutoff) {
			break
		}
	}
	r.scanTimes = r.scanTimes[i:]
}

// pause sleeps on the clock, returning false if the sequence was superseded
// or the coordinator closed.
func (r *RecoveryCoordinator) pause(seq uint64, d time.Duration) bool {
	if !sleep(r.ctx, r.clock, d) {
		return false
	}
	return r.alive(seq)
}

// alive reports whether the sequence is still current.
func (r *RecoveryCoordinator) alive(seq uint64) bool {
	if r.ctx.Err() != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq == seq
}

// fullPatch builds a patch setting every field from cfg.
func fullPatch(cfg Config) *ConfigPatch {
	return &ConfigPatch{
		Facing:             &cfg.Facing,
		EnableBarcode:      &cfg.EnableBarcode,
		BarcodeTypes:       append([]string(nil), cfg.BarcodeTypes...),
		EnablePhotoCapture: &cfg.EnablePhotoCapture,
		CaptureQuality:     &cfg.CaptureQuality,
		Autofocus:          &cfg.Autofocus,
		FocusDepth:         &cfg.FocusDepth,
		Zoom:               &cfg.Zoom,
		TouchFocus:         &cfg.TouchFocus,
	}
}
