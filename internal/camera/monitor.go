package camera

import (
	"sync"
	"time"
)

// Ring buffer and metrics window sizing.
const (
	// sampleRingSize caps the transition history kept in memory.
	sampleRingSize = 50

	// metricsWindow is the trailing window Metrics() computes over.
	metricsWindow = 5 * time.Minute
)

// Metrics summarizes transition behaviour over the trailing window.
//
// The photo-to-scanner figures get their own tally because that path
// drives the recovery decisions.
type Metrics struct {
	TotalTransitions  int           `json:"total_transitions"`
	RecentTransitions int           `json:"recent_transitions"`
	AverageDuration   time.Duration `json:"average_duration_ms"`
	SlowTransitions   int           `json:"slow_transitions"`
	ScannerToPhoto    int           `json:"scanner_to_photo"`
	PhotoToScanner    int           `json:"photo_to_scanner"`
	PhotoToScannerAvg time.Duration `json:"photo_to_scanner_avg_ms"`
	SlowThreshold     time.Duration `json:"slow_threshold_ms"`
}

// PerformanceMonitor observes every transition for timing diagnostics.
// It keeps a fixed-size ring of samples and warns on slow transitions.
//
// All methods are safe for concurrent use.
type PerformanceMonitor struct {
	mu      sync.RWMutex
	samples [sampleRingSize]TransitionSample
	next    int
	count   int

	slowThreshold time.Duration
	clock         Clock
	logger        Logger
}

// NewPerformanceMonitor creates a monitor with the given slow-transition
// threshold.
func NewPerformanceMonitor(slowThreshold time.Duration, clock Clock, logger Logger) *PerformanceMonitor {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &PerformanceMonitor{
		slowThreshold: slowThreshold,
		clock:         clock,
		logger:        logger,
	}
}

// Record adds a completed transition to the ring. Transitions above the
// slow threshold are logged as warnings.
func (m *PerformanceMonitor) Record(sample TransitionSample) {
	m.mu.Lock()
	m.samples[m.next] = sample
	m.next = (m.next + 1) % sampleRingSize
	if m.count < sampleRingSize {
		m.count++
	}
	m.mu.Unlock()

	if sample.Duration > m.slowThreshold {
		m.logger.Warn("slow camera transition",
			"from", string(sample.From),
			"to", string(sample.To),
			"duration_ms", sample.Duration.Milliseconds(),
			"threshold_ms", m.slowThreshold.Milliseconds(),
		)
	}
}

// Metrics computes transition statistics over the trailing window.
func (m *PerformanceMonitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.clock.Now().Add(-metricsWindow)
	out := Metrics{
		TotalTransitions: m.count,
		SlowThreshold:    m.slowThreshold,
	}

	var totalDur, photoToScannerDur time.Duration
	for _, s := range m.ordered() {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		out.RecentTransitions++
		totalDur += s.Duration
		if s.Duration > m.slowThreshold {
			out.SlowTransitions++
		}
		if s.From == ModeScanner && s.To.IsPhoto() {
			out.ScannerToPhoto++
		}
		if s.From.IsPhoto() && s.To == ModeScanner {
			out.PhotoToScanner++
			photoToScannerDur += s.Duration
		}
	}

	if out.RecentTransitions > 0 {
		out.AverageDuration = totalDur / time.Duration(out.RecentTransitions)
	}
	if out.PhotoToScanner > 0 {
		out.PhotoToScannerAvg = photoToScannerDur / time.Duration(out.PhotoToScanner)
	}

	return out
}

// History returns the retained samples, oldest first.
func (m *PerformanceMonitor) History() []TransitionSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordered()
}

// ordered returns the ring contents oldest first. Caller holds the lock.
func (m *PerformanceMonitor) ordered() []TransitionSample {
	out := make([]TransitionSample, 0, m.count)
	start := 0
	if m.count == sampleRingSize {
		start = m.next
	}
	for i := 0; i < m.count; i++ {
		out = append(out, m.samples[(start+i)%sampleRingSize])
	}
	return out
}
