// Package neuron implements the Leaky Integrate-and-Fire state machine
// shared by sensor nodes (Sensor) and the gateway's spike aggregator
// (Aggregator).
//
// Both types are small guarded state machines: one membrane potential,
// mutated under a single mutex, advanced one step at a time. There is no
// shared state between instances — one Sensor per node, one Aggregator per
// gateway.
package neuron

import "sync"

// Sensor is a single node's LIF neuron. Created once per node; reset only
// on explicit request.
type Sensor struct {
	mu sync.Mutex

	leak      float64 // membrane leak factor per step, ∈ [0,1]
	thetaBase float64 // baseline firing threshold, > 0
	rho       int     // refractory steps after firing, ≥ 0

	u float64 // membrane potential
	r int     // refractory countdown
}

// NewSensor creates a Sensor with u=0, r=0.
func NewSensor(leak, theta float64, rho int) *Sensor {
	return &Sensor{leak: leak, thetaBase: theta, rho: rho}
}

// Reset zeroes the membrane potential and refractory countdown.
func (s *Sensor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.u = 0
	s.r = 0
}

// Step advances the neuron by one simulation step with input current I and
// inhibition multiplier beta (beta=1.0 means no inhibition in effect).
//
// Returns (spike, suppressed):
//   - spike is true iff the membrane crossed the inhibited threshold this
//     step. The membrane resets to 0 and the refractory countdown is armed.
//   - suppressed is true iff the step would have fired at the un-inhibited
//     threshold but was held below the inhibited one — i.e. inhibition is
//     the reason it did not fire. The membrane potential is retained in
//     this case, not reset.
//
// During the refractory countdown the membrane is not integrated at all;
// both return values are false and r is decremented.
func (s *Sensor) Step(input, beta float64) (spike, suppressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r > 0 {
		s.r--
		return false, false
	}

	uNew := s.leak*s.u + input
	thetaEff := s.thetaBase * beta

	if uNew >= thetaEff {
		s.u = 0
		s.r = s.rho
		return true, false
	}

	if beta > 1.0 && s.thetaBase <= uNew && uNew < thetaEff {
		s.u = uNew
		return false, true
	}

	s.u = uNew
	return false, false
}

// Potential returns the current membrane potential. Exposed for tests and
// diagnostics; not used by the control loop itself.
func (s *Sensor) Potential() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.u
}

// Refractory returns the current refractory countdown.
func (s *Sensor) Refractory() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r
}

// Aggregator is the gateway-side LIF neuron that integrates incoming spikes.
// It has no refractory period and no inhibition (it always evaluates at its
// own baseline theta); firing is the event that triggers inhibition
// broadcast.
type Aggregator struct {
	mu sync.Mutex

	leak  float64
	theta float64
	v     float64
}

// NewAggregator creates an Aggregator with v=0.
func NewAggregator(leak, theta float64) *Aggregator {
	return &Aggregator{leak: leak, theta: theta}
}

// Reset zeroes the membrane potential.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = 0
}

// Step integrates input x and reports whether the aggregator fired.
// On firing the membrane resets to 0.
func (a *Aggregator) Step(x float64) (fired bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = a.leak*a.v + x
	if a.v >= a.theta {
		a.v = 0
		return true
	}
	return false
}

// Theta returns the firing threshold.
func (a *Aggregator) Theta() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.theta
}

// SetTunables updates leak and theta in place, for config hot-reload. The
// membrane potential is left untouched — a reload mid-run should not reset
// accumulated state.
func (a *Aggregator) SetTunables(leak, theta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leak = leak
	a.theta = theta
}

// Potential returns the current membrane potential.
func (a *Aggregator) Potential() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
