package camera

import (
	"testing"
	"time"
)

func sampleAt(clock *fakeClock, from, to Mode, d time.Duration) TransitionSample {
	return TransitionSample{From: from, To: to, Timestamp: clock.Now(), Duration: d}
}

func TestMonitor_RingCap(t *testing.T) {
	clock := newFakeClock()
	m := NewPerformanceMonitor(time.Second, clock, nil)

	for i := 0; i < sampleRingSize+10; i++ {
		m.Record(sampleAt(clock, ModeInactive, ModeScanner, 10*time.Millisecond))
	}

	if got := len(m.History()); got != sampleRingSize {
		t.Errorf("History() length = %d, want %d", got, sampleRingSize)
	}
	if m.Metrics().TotalTransitions != sampleRingSize {
		t.Errorf("TotalTransitions = %d, want %d", m.Metrics().TotalTransitions, sampleRingSize)
	}
}

func TestMonitor_Metrics(t *testing.T) {
	clock := newFakeClock()
	m := NewPerformanceMonitor(time.Second, clock, nil)

	m.Record(sampleAt(clock, ModeScanner, ModeProductPhoto, 100*time.Millisecond))
	m.Record(sampleAt(clock, ModeProductPhoto, ModeScanner, 300*time.Millisecond))
	m.Record(sampleAt(clock, ModeProductPhoto, ModeScanner, 500*time.Millisecond))
	m.Record(sampleAt(clock, ModeScanner, ModeInactive, 1500*time.Millisecond))

	got := m.Metrics()

	if got.RecentTransitions != 4 {
		t.Errorf("RecentTransitions = %d, want 4", got.RecentTransitions)
	}
	if got.ScannerToPhoto != 1 {
		t.Errorf("ScannerToPhoto = %d, want 1", got.ScannerToPhoto)
	}
	if got.PhotoToScanner != 2 {
		t.Errorf("PhotoToScanner = %d, want 2", got.PhotoToScanner)
	}
	if got.PhotoToScannerAvg != 400*time.Millisecond {
		t.Errorf("PhotoToScannerAvg = %v, want 400ms", got.PhotoToScannerAvg)
	}
	if got.SlowTransitions != 1 {
		t.Errorf("SlowTransitions = %d, want 1", got.SlowTransitions)
	}
	if got.AverageDuration != 600*time.Millisecond {
		t.Errorf("AverageDuration = %v, want 600ms", got.AverageDuration)
	}
}

func TestMonitor_WindowExcludesOldSamples(t *testing.T) {
	clock := newFakeClock()
	m := NewPerformanceMonitor(time.Second, clock, nil)

	m.Record(sampleAt(clock, ModeInactive, ModeScanner, 10*time.Millisecond))
	clock.Advance(6 * time.Minute)
	m.Record(sampleAt(clock, ModeScanner, ModeInactive, 10*time.Millisecond))

	got := m.Metrics()
	if got.TotalTransitions != 2 {
		t.Errorf("TotalTransitions = %d, want 2", got.TotalTransitions)
	}
	if got.RecentTransitions != 1 {
		t.Errorf("RecentTransitions = %d, want 1 (old sample outside window)", got.RecentTransitions)
	}
}

func TestMonitor_HistoryOldestFirst(t *testing.T) {
	clock := newFakeClock()
	m := NewPerformanceMonitor(time.Second, clock, nil)

	for i := 0; i < sampleRingSize+5; i++ {
		m.Record(TransitionSample{
			From:      ModeInactive,
			To:        ModeScanner,
			Timestamp: clock.Now(),
			Duration:  time.Duration(i) * time.Millisecond,
		})
	}

	history := m.History()
	for i := 1; i < len(history); i++ {
		if history[i].Duration < history[i-1].Duration {
			t.Fatal("history not ordered oldest first after wraparound")
		}
	}
	if history[0].Duration != 5*time.Millisecond {
		t.Errorf("oldest retained duration = %v, want 5ms", history[0].Duration)
	}
}
