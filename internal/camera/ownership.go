package camera

import (
	"sync"
	"time"
)

// OwnershipRegistry tracks the single current camera lease and arbitrates
// takeover requests.
//
// At most one non-nil lease exists at any time. The registry makes pure
// grant/deny decisions; lease mutation happens through Grant and
// ReleaseForInactive under the coordinator's direction.
//
// All methods are safe for concurrent use.
type OwnershipRegistry struct {
	mu    sync.RWMutex
	lease *Lease

	grace       time.Duration
	stale       time.Duration
	photoOwners map[string]bool

	clock Clock
}

// NewOwnershipRegistry creates a registry with the given arbitration
// thresholds and the set of owner identities treated as photo-workflow
// screens.
func NewOwnershipRegistry(grace, stale time.Duration, photoWorkflowOwners []string, clock Clock) *OwnershipRegistry {
	if clock == nil {
		clock = systemClock{}
	}

	owners := make(map[string]bool, len(photoWorkflowOwners))
	for _, o := range photoWorkflowOwners {
		owners[o] = true
	}

	return &OwnershipRegistry{
		grace:       grace,
		stale:       stale,
		photoOwners: owners,
		clock:       clock,
	}
}

// RequestTransition decides whether owner may move the camera to targetMode.
//
// Pure decision: no side effect beyond reading the current lease and clock.
//
// Transitions to inactive are always granted; whether the lease is actually
// cleared is decided separately by ReleaseForInactive. For every other
// target, when a fresh lease is held by someone else the takeover matrix
// applies:
//
//  1. Lease age past the grace period: grant unconditionally (stale takeover).
//  2. Same owner: grant.
//  3. Scanner pre-empted by a photo mode: grant.
//  4. Photo mode to photo mode: grant.
//  5. Both owners are recognized photo-workflow screens and the target is a
//     photo mode: grant.
//
// Everything else is denied.
func (r *OwnershipRegistry) RequestTransition(owner string, targetMode Mode) bool {
	if targetMode == ModeInactive {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lease := r.lease
	if lease == nil || lease.Owner == owner {
		return true
	}

	age := r.clock.Now().Sub(lease.Timestamp)
	if age >= r.grace {
		return true
	}

	if lease.Mode == ModeScanner && targetMode.IsPhoto() {
		return true
	}
	if lease.Mode.IsPhoto() && targetMode.IsPhoto() {
		return true
	}
	if r.photoOwners[lease.Owner] && r.photoOwners[owner] && targetMode.IsPhoto() {
		return true
	}

	return false
}

// Grant installs a new lease for owner at targetMode, superseding any
// existing lease. Call only after RequestTransition granted.
func (r *OwnershipRegistry) Grant(owner string, targetMode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lease = &Lease{
		Owner:     owner,
		Mode:      targetMode,
		Timestamp: r.clock.Now(),
	}
}

// ReleaseForInactive clears the lease on a transition to inactive.
//
// The lease is cleared only when the requester owns it or the lease age
// exceeds the stale threshold; a foreign fresh lease survives so its owner
// does not lose the camera to a late deactivation. Reports whether the
// lease was cleared.
func (r *OwnershipRegistry) ReleaseForInactive(owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lease == nil {
		return true
	}

	if r.lease.Owner == owner || r.clock.Now().Sub(r.lease.Timestamp) > r.stale {
		r.lease = nil
		return true
	}

	return false
}

// Current returns a copy of the active lease, or nil when unowned.
func (r *OwnershipRegistry) Current() *Lease {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lease == nil {
		return nil
	}
	copy := *r.lease
	return &copy
}
