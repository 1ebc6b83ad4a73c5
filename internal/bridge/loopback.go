package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veganlens/veganlens-core/internal/camera"
)

// Loopback is an in-process capture surface for broker-less operation.
// Permission is always granted, activation is instant, and captures return
// synthetic URIs. Used in development and wherever no device runtime is
// attached.
type Loopback struct {
	logger Logger

	mu      sync.Mutex
	active  bool
	applied camera.SurfaceConfig
}

var _ camera.CaptureSurface = (*Loopback)(nil)

// NewLoopback creates a loopback surface.
func NewLoopback(logger Logger) *Loopback {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loopback{logger: logger}
}

func (l *Loopback) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

func (l *Loopback) Activate(context.Context) error {
	l.mu.Lock()
	l.active = true
	l.mu.Unlock()

	l.logger.Debug("loopback surface activated")
	return nil
}

func (l *Loopback) Deactivate(context.Context) error {
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()

	l.logger.Debug("loopback surface deactivated")
	return nil
}

func (l *Loopback) ApplyConfig(_ context.Context, cfg camera.SurfaceConfig) error {
	l.mu.Lock()
	l.applied = cfg
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Capture(_ context.Context, _ camera.CaptureOptions) (string, error) {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	if !active {
		return "", ErrInactive
	}
	return fmt.Sprintf("file:///tmp/veganlens-%s.jpg", uuid.NewString()), nil
}

// LastConfig returns the most recently applied surface configuration.
func (l *Loopback) LastConfig() camera.SurfaceConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applied
}
