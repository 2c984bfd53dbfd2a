package node

import (
	"math"
	"math/rand"
	"time"
)

// SineNoiseDriver is the default physical-value generator: a sinusoid with
// a one-hour period plus Gaussian noise, grounded on the reference node's
// _drive_value (spec's own Non-goal calls this driver "a sine+noise
// driver" without specifying it further, so this reproduces the
// reference's shape as the default, swappable via the Driver interface).
type SineNoiseDriver struct {
	stepSeconds float64
	baseline    float64
	amplitude   float64
	periodSec   float64
	noiseStdDev float64
	rng         *rand.Rand
}

// NewSineNoiseDriver builds a driver whose sample spacing matches
// stepDuration. Uses the reference constants (baseline 50, amplitude 10,
// one-hour period, unit-variance noise). seed decorrelates noise across
// nodes sharing the same step schedule; New passes the node ID plus one.
func NewSineNoiseDriver(stepDuration time.Duration, seed int64) *SineNoiseDriver {
	return &SineNoiseDriver{
		stepSeconds: stepDuration.Seconds(),
		baseline:    50.0,
		amplitude:   10.0,
		periodSec:   3600.0,
		noiseStdDev: 1.0,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Sample returns the driving value at the given step index.
func (d *SineNoiseDriver) Sample(step int) float64 {
	t := float64(step) * d.stepSeconds
	base := d.baseline + d.amplitude*math.Sin(2.0*math.Pi*(t/d.periodSec))
	noise := d.rng.NormFloat64() * d.noiseStdDev
	return base + noise
}
