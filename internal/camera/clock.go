package camera

import (
	"context"
	"time"
)

// Clock abstracts wall-clock access so lease ageing and the recovery
// sequences can be driven in tests without real delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// systemClock is the production Clock backed by the time package.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// sleep waits for d on the clock, returning early if ctx is cancelled.
// Reports whether the full duration elapsed.
func sleep(ctx context.Context, clock Clock, d time.Duration) bool {
	select {
	case <-clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
