package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// instantWarmup removes the post-reset warmup wait so switches return
// without clock pumping.
func instantWarmup(cfg *config.CameraConfig) {
	quietDegradation(cfg)
	cfg.WarmupMS = 0
}

// recoveryPushes filters the surface log to pushes stamped with the given
// reset generation.
func recoveryPushes(surface *mockSurface, generation uint64) []SurfaceConfig {
	var out []SurfaceConfig
	for _, cfg := range surface.appliedConfigs() {
		if cfg.ResetGeneration == generation {
			out = append(out, cfg)
		}
	}
	return out
}

func TestRecovery_Tier1Sequence(t *testing.T) {
	clock := newFakeClock()
	coord, surface, bus := newTestCoordinator(t, clock, instantWarmup)

	resets := recordEvents(t, bus, KindCameraReset)
	ctx := context.Background()

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")

	// The sequence holds captures while it perturbs focus.
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().CaptureBlocked
	}, "capture hold during recovery")

	if _, err := coord.CapturePhoto(ctx, CaptureOptions{}); !errors.Is(err, ErrCaptureBlocked) {
		t.Errorf("CapturePhoto() during recovery error = %v, want ErrCaptureBlocked", err)
	}

	stop := autoAdvance(t, clock)
	defer stop()
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 1
	}, "recovery completion")

	status := coord.RecoveryStatus()
	if status.CaptureBlocked {
		t.Error("capture hold must release after recovery")
	}
	if status.Generation != 1 {
		t.Errorf("generation = %d, want 1 (standard reset bumps by one)", status.Generation)
	}
	if surface.deactivationCount() != 0 {
		t.Error("standard reset must not tear the session down")
	}
	if len(resets.all()) != 1 {
		t.Fatalf("got %d cameraReset events, want 1", len(resets.all()))
	}

	pushes := recoveryPushes(surface, 1)
	if len(pushes) != 5 {
		t.Fatalf("got %d recovery pushes, want 5", len(pushes))
	}

	// Opening push drops focus control entirely.
	if pushes[0].Config.Autofocus != "off" || pushes[0].Config.TouchFocus || pushes[0].FocusPoint != nil {
		t.Errorf("opening push = %+v, want autofocus off, touch off, no tap", pushes[0])
	}

	// Perturbation cycles alternate autofocus off/on, tapping center on the
	// off cycles.
	center := FocusPoint{X: 0.5, Y: 0.5}
	for i, want := range []struct {
		autofocus string
		tap       bool
	}{
		{"off", true},
		{"on", false},
		{"off", true},
	} {
		push := pushes[1+i]
		if push.Config.Autofocus != want.autofocus {
			t.Errorf("cycle %d autofocus = %q, want %q", i, push.Config.Autofocus, want.autofocus)
		}
		if want.tap {
			if push.FocusPoint == nil || *push.FocusPoint != center {
				t.Errorf("cycle %d tap = %v, want center", i, push.FocusPoint)
			}
		} else if push.FocusPoint != nil {
			t.Errorf("cycle %d tap = %v, want none", i, push.FocusPoint)
		}
	}

	// Closing push restores focus control.
	last := pushes[4]
	if last.Config.Autofocus != "on" || !last.Config.TouchFocus || last.FocusPoint != nil {
		t.Errorf("closing push = %+v, want autofocus on, touch restored, no tap", last)
	}
}

func TestRecovery_EscalatesToTier2(t *testing.T) {
	clock := newFakeClock()
	coord, surface, bus := newTestCoordinator(t, clock, func(cfg *config.CameraConfig) {
		quietDegradation(cfg)
		cfg.EscalationWindowMS = 3600000
	})
	stop := autoAdvance(t, clock)
	defer stop()

	resets := recordEvents(t, bus, KindCameraReset)
	ctx := context.Background()

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 1
	}, "first recovery")

	// A second photo return inside the escalation window escalates to the
	// hardware reset.
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 5*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 2
	}, "second recovery")

	status := coord.RecoveryStatus()
	if status.Generation != 1+tier2GenerationBump {
		t.Errorf("generation = %d, want %d", status.Generation, 1+tier2GenerationBump)
	}
	if surface.deactivationCount() != 1 {
		t.Errorf("deactivations = %d, want 1 (hardware reset tears the session down)", surface.deactivationCount())
	}
	if surface.activationCount() != 2 {
		t.Errorf("activations = %d, want 2 (initial plus reactivation)", surface.activationCount())
	}
	if len(resets.all()) != 2 {
		t.Errorf("got %d cameraReset events, want 2", len(resets.all()))
	}

	pushes := recoveryPushes(surface, 1+tier2GenerationBump)

	// Reactivation carries the settings-refresh marker and the full optimal
	// scanner config, not the stored defaults.
	var refresh []SurfaceConfig
	for _, p := range pushes {
		if p.SettingsRefresh {
			refresh = append(refresh, p)
		}
	}
	if len(refresh) != 1 {
		t.Fatalf("got %d settings-refresh pushes, want 1", len(refresh))
	}
	if !refresh[0].Config.EnableBarcode || refresh[0].Config.CaptureQuality != 0.7 || refresh[0].Config.Autofocus != "on" {
		t.Errorf("reactivation config = %+v, want the optimal scanner config", refresh[0].Config)
	}

	// Perturbation taps walk the four quadrants then center.
	var taps []FocusPoint
	for _, p := range pushes {
		if p.FocusPoint != nil {
			taps = append(taps, *p.FocusPoint)
		}
	}
	if len(taps) != tier2Cycles {
		t.Fatalf("got %d perturbation taps, want %d", len(taps), tier2Cycles)
	}
	for i, want := range tier2FocusPoints {
		if taps[i] != want {
			t.Errorf("tap %d = %v, want %v", i, taps[i], want)
		}
	}
}

func TestRecovery_InFlightTriggerDropped(t *testing.T) {
	clock := newFakeClock()
	coord, _, bus := newTestCoordinator(t, clock, instantWarmup)

	resets := recordEvents(t, bus, KindCameraReset)
	ctx := context.Background()

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().InFlight
	}, "first recovery in flight")

	// The clock is frozen, so the first sequence is still running; a
	// degradation trigger arriving now must be dropped, not queued.
	if coord.recovery.TriggerReset(ModeScanner, ModeScanner, ResetReasonDegradedScanning, "ScreenX") {
		t.Fatal("trigger during an in-flight sequence must be dropped")
	}

	if len(resets.all()) != 1 {
		t.Errorf("got %d cameraReset events, want 1 (dropped trigger emits nothing)", len(resets.all()))
	}

	stop := autoAdvance(t, clock)
	defer stop()
	waitFor(t, 2*time.Second, func() bool {
		return !coord.RecoveryStatus().InFlight
	}, "recovery drain")

	if got := coord.RecoveryStatus().ResetsRun; got != 1 {
		t.Errorf("resets run = %d, want 1", got)
	}
}

func TestRecovery_Tier2FailureFallsBackToTier1(t *testing.T) {
	clock := newFakeClock()
	coord, surface, _ := newTestCoordinator(t, clock, func(cfg *config.CameraConfig) {
		instantWarmup(cfg)
		cfg.EscalationWindowMS = 3600000
	})
	stop := autoAdvance(t, clock)
	defer stop()

	ctx := context.Background()

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 1
	}, "first recovery")

	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	// Break config pushes once the trigger is in flight; the reactivation
	// step fails and the sequence must fall back.
	surface.setErr(func(m *mockSurface) { m.applyErr = errors.New("surface wedged") })

	waitFor(t, 5*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 2
	}, "fallback recovery")

	// The hardware reset bumped the generation before failing; the fallback
	// standard reset adds its own bump.
	want := uint64(1 + tier2GenerationBump + 1)
	if got := coord.RecoveryStatus().Generation; got != want {
		t.Errorf("generation = %d, want %d", got, want)
	}
	if surface.deactivationCount() != 1 {
		t.Errorf("deactivations = %d, want 1", surface.deactivationCount())
	}
	if coord.RecoveryStatus().CaptureBlocked {
		t.Error("capture hold must release after the fallback completes")
	}
}

func TestRecovery_SupersededByModeChange(t *testing.T) {
	clock := newFakeClock()
	coord, surface, _ := newTestCoordinator(t, clock, instantWarmup)
	ctx := context.Background()

	if _, err := coord.RequestPermission(ctx); err != nil {
		t.Fatalf("RequestPermission() error = %v", err)
	}

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().CaptureBlocked
	}, "capture hold during recovery")

	// The user opens a photo screen before the sequence finishes. The
	// stale scanner recovery must not hold captures over the new mode.
	if !coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX") {
		t.Fatal("photo switch during recovery was refused")
	}

	status := coord.RecoveryStatus()
	if status.InFlight {
		t.Error("in-flight flag must clear when the camera leaves scanner mode")
	}
	if status.CaptureBlocked {
		t.Error("capture hold must release when the camera leaves scanner mode")
	}

	if _, err := coord.CapturePhoto(ctx, CaptureOptions{}); err != nil {
		t.Fatalf("CapturePhoto() in the new mode error = %v", err)
	}

	// Drain the superseded goroutine: it must stop perturbing and must not
	// count as a completed reset.
	before := len(recoveryPushes(surface, 1))
	stop := autoAdvance(t, clock)
	defer stop()
	time.Sleep(100 * time.Millisecond)

	if got := len(recoveryPushes(surface, 1)); got != before {
		t.Errorf("superseded sequence kept pushing: %d pushes, had %d", got, before)
	}
	if got := coord.RecoveryStatus().ResetsRun; got != 0 {
		t.Errorf("resets run = %d, want 0 (superseded sequence never completed)", got)
	}

	// A fresh photo return starts a fresh sequence as usual.
	if !coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX") {
		t.Fatal("return to scanner was refused")
	}
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().ResetsRun == 1
	}, "fresh recovery after supersede")
}

func TestRecovery_DegradationHeuristic(t *testing.T) {
	// The checker loop is parked on a huge interval; tests invoke the check
	// directly for determinism.
	shortWindow := func(cfg *config.CameraConfig) {
		quietDegradation(cfg)
		cfg.WarmupMS = 0
		cfg.Degradation.WindowMS = 1000
		cfg.Degradation.MinScans = 3
	}

	t.Run("triggers on low scan rate", func(t *testing.T) {
		clock := newFakeClock()
		coord, _, bus := newTestCoordinator(t, clock, shortWindow)
		resets := recordEvents(t, bus, KindCameraReset)

		coord.SwitchToMode(context.Background(), ModeScanner, nil, "ScannerScreen")
		clock.Advance(1500 * time.Millisecond)
		coord.RecordBarcodeDetection()
		coord.RecordBarcodeDetection()

		coord.recovery.checkDegradation()

		events := resets.all()
		if len(events) != 1 {
			t.Fatalf("got %d cameraReset events, want 1", len(events))
		}
		reset := events[0].(CameraResetEvent)
		if reset.Reason != ResetReasonDegradedScanning {
			t.Errorf("reason = %q, want %q", reset.Reason, ResetReasonDegradedScanning)
		}
		if reset.FromMode != ModeScanner || reset.ToMode != ModeScanner {
			t.Errorf("reset = %+v, want scanner to scanner", reset)
		}
		if !coord.RecoveryStatus().InFlight {
			t.Error("degradation trigger must start a recovery sequence")
		}
	})

	t.Run("healthy scan rate stays quiet", func(t *testing.T) {
		clock := newFakeClock()
		coord, _, bus := newTestCoordinator(t, clock, shortWindow)
		resets := recordEvents(t, bus, KindCameraReset)

		coord.SwitchToMode(context.Background(), ModeScanner, nil, "ScannerScreen")
		clock.Advance(1500 * time.Millisecond)
		for i := 0; i < 3; i++ {
			coord.RecordBarcodeDetection()
		}

		coord.recovery.checkDegradation()

		if len(resets.all()) != 0 {
			t.Error("healthy scan rate must not trigger recovery")
		}
	})

	t.Run("waits out a full observation window", func(t *testing.T) {
		clock := newFakeClock()
		coord, _, bus := newTestCoordinator(t, clock, shortWindow)
		resets := recordEvents(t, bus, KindCameraReset)

		coord.SwitchToMode(context.Background(), ModeScanner, nil, "ScannerScreen")
		clock.Advance(500 * time.Millisecond)

		coord.recovery.checkDegradation()

		if len(resets.all()) != 0 {
			t.Error("check before the window elapses must not trigger recovery")
		}
	})

	t.Run("ignored outside scanner mode", func(t *testing.T) {
		clock := newFakeClock()
		coord, _, bus := newTestCoordinator(t, clock, shortWindow)
		resets := recordEvents(t, bus, KindCameraReset)

		coord.SwitchToMode(context.Background(), ModeProductPhoto, nil, "ProductPhotoScreen")
		clock.Advance(1500 * time.Millisecond)

		coord.recovery.checkDegradation()

		if len(resets.all()) != 0 {
			t.Error("photo mode must not trigger degradation recovery")
		}
	})

	t.Run("stale detections age out", func(t *testing.T) {
		clock := newFakeClock()
		coord, _, bus := newTestCoordinator(t, clock, shortWindow)
		resets := recordEvents(t, bus, KindCameraReset)

		coord.SwitchToMode(context.Background(), ModeScanner, nil, "ScannerScreen")
		for i := 0; i < 3; i++ {
			coord.RecordBarcodeDetection()
		}
		clock.Advance(1500 * time.Millisecond)

		coord.recovery.checkDegradation()

		if len(resets.all()) != 1 {
			t.Error("detections older than the window must not count")
		}
	})
}

func TestRecovery_CloseCancelsSequence(t *testing.T) {
	clock := newFakeClock()
	coord, _, _ := newTestCoordinator(t, clock, instantWarmup)
	ctx := context.Background()

	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeProductPhoto, nil, "ScreenX")
	coord.SwitchToMode(ctx, ModeScanner, nil, "ScreenX")
	waitFor(t, 2*time.Second, func() bool {
		return coord.RecoveryStatus().InFlight
	}, "recovery in flight")

	// The clock is frozen mid-sequence; Close must still return promptly.
	done := make(chan struct{})
	go func() {
		coord.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not cancel the in-flight recovery")
	}

	if coord.RecoveryStatus().InFlight {
		t.Error("in-flight flag must clear on shutdown")
	}
}
