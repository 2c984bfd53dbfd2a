// Package collision defines the pluggable policy that decides which
// messages count as "on-air transmissions" for collision detection (spec
// §4.4.3). Two policies ship built in ("spikes" and "all"); third parties
// may register their own the same way, following the contrib plugin
// pattern the teacher repo uses for anomaly scorers.
package collision

import "fmt"

// Policy decides whether a given message participates in collision
// detection at all. A message that is not a transmission under the active
// policy never collides; it still occupies a window slot, marked as not
// transmitting, so later messages never overlap with it.
type Policy interface {
	// Name is the stable config key for this policy (e.g. "spikes").
	Name() string

	// IsTransmission reports whether a message with the given spike flag
	// should be treated as occupying airtime for collision purposes.
	IsTransmission(spike bool) bool
}

type spikesOnly struct{}

func (spikesOnly) Name() string                  { return "spikes" }
func (spikesOnly) IsTransmission(spike bool) bool { return spike }

type allMessages struct{}

func (allMessages) Name() string                  { return "all" }
func (allMessages) IsTransmission(bool) bool       { return true }

var registry = map[string]Policy{
	"spikes": spikesOnly{},
	"all":    allMessages{},
}

// Register adds (or replaces) a named collision policy. Intended to be
// called from an init() function by a contrib package, mirroring
// contrib.RegisterScorer.
func Register(p Policy) {
	registry[p.Name()] = p
}

// Lookup resolves a policy by its config name. Returns an error for an
// unknown name rather than silently falling back, so a config typo is
// caught at startup.
func Lookup(name string) (Policy, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("collision: unknown mode %q (known: spikes, all)", name)
	}
	return p, nil
}
