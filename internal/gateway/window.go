package gateway

import (
	"math"

	"github.com/octoreflex/edgelif/internal/protocol"
)

// windowEntry is one in-flight transmission record (spec §4.4.3). Unlike
// gossip.Quorum's background-ticker pruning, this window prunes
// synchronously on every ingest: the spec ties retention directly to the
// message that just arrived, not to wall-clock ticks.
type windowEntry struct {
	Node     int
	StartS   float64
	EndS     float64
	IsTx     bool
	Collided bool
}

// recordCollision runs collision detection for msg against the retained
// window, appends msg's own entry, and prunes expired entries (spec
// §4.4.3). Caller must hold mu.
func (g *Gateway) recordCollision(msg *protocol.Enriched, nowS float64) {
	isTx := g.collisionPolicy.IsTransmission(msg.DidSpike())

	if isTx {
		var overlapped []*windowEntry
		for _, e := range g.window {
			if !e.IsTx || e.Node == msg.Node {
				continue
			}
			if e.EndS <= msg.StartS || e.StartS >= msg.EndS {
				continue
			}
			overlapped = append(overlapped, e)
		}

		k := len(overlapped)
		msg.PairwiseCollisions = k
		self := g.nodeCounters(msg.Node)
		self.PairwiseCollisions += k
		if k > 0 {
			msg.Collided = true
			self.Collisions++
		}
		for _, e := range overlapped {
			other := g.nodeCounters(e.Node)
			other.PairwiseCollisions++
			if !e.Collided {
				e.Collided = true
				other.Collisions++
			}
		}
	}

	// The entry is retained regardless of isTx: a message that the active
	// policy excludes from transmission (e.g. a non-spike under "spikes")
	// still occupies a slot in the window, it just never itself overlaps
	// with anything — matching the reference gateway, which appends every
	// message's window record unconditionally.
	g.window = append(g.window, &windowEntry{
		Node:     msg.Node,
		StartS:   msg.StartS,
		EndS:     msg.EndS,
		IsTx:     isTx,
		Collided: msg.Collided,
	})

	cutoff := nowS - math.Max(g.minRetentionS, msg.AirtimeS*g.retentionMultiplier)
	kept := make([]*windowEntry, 0, len(g.window))
	for _, e := range g.window {
		if e.EndS >= cutoff {
			kept = append(kept, e)
		}
	}
	g.window = kept
}
