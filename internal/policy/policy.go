// Package policy isolates the seat-capacity and detour rules so they can
// change without touching the request engine.
package policy

// CapacityPolicy decides what happens to the remaining PENDING requests
// of a ride once its seats run out.
type CapacityPolicy interface {
	RejectPendingWhenFull() bool
}

// DetourPolicy caps how much extra distance a request may add to the
// driver's route. A zero maximum means no cap.
type DetourPolicy interface {
	MaxDetourPercent() float64
}

type defaultCapacityPolicy struct{}

func (defaultCapacityPolicy) RejectPendingWhenFull() bool { return true }

// NewDefaultCapacityPolicy auto-rejects leftover PENDING requests when a
// ride fills up.
func NewDefaultCapacityPolicy() CapacityPolicy {
	return defaultCapacityPolicy{}
}

type maxDetourPolicy struct {
	maxPercent float64
}

func (p maxDetourPolicy) MaxDetourPercent() float64 { return p.maxPercent }

// NewMaxDetourPolicy caps detours at maxPercent of the ride's estimated
// distance; 0 disables the cap.
func NewMaxDetourPolicy(maxPercent float64) DetourPolicy {
	return maxDetourPolicy{maxPercent: maxPercent}
}

type capacityPolicyFunc bool

func (f capacityPolicyFunc) RejectPendingWhenFull() bool { return bool(f) }

// NewCapacityPolicy builds a policy from a config flag.
func NewCapacityPolicy(rejectWhenFull bool) CapacityPolicy {
	return capacityPolicyFunc(rejectWhenFull)
}
