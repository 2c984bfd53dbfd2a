// Package gateway implements the single aggregation point spec §4.4
// describes: one consumer of upstream messages that owns the aggregator
// neuron, the in-flight transmission window, and every per-node counter.
// Nodes never touch this state directly; the only object shared for
// mutation between nodes and the gateway is the inhibition.State.
package gateway

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/airtime"
	"github.com/octoreflex/edgelif/internal/collision"
	"github.com/octoreflex/edgelif/internal/inhibition"
	"github.com/octoreflex/edgelif/internal/neuron"
	"github.com/octoreflex/edgelif/internal/protocol"
)

// Broadcaster is implemented by whichever transport is in use. The gateway
// invokes it once per aggregator fire so every connected node can be
// notified out-of-band. Nil is valid — inhibition still activates locally,
// nothing is broadcast.
type Broadcaster interface {
	BroadcastInhibit(cmd protocol.InhibitCommand)
}

// MetricsSink is implemented by internal/observability.Metrics. Kept as a
// narrow structural interface here so this package never imports the
// ambient metrics stack directly. Nil is valid — a Gateway with no sink
// simply doesn't record Prometheus metrics.
type MetricsSink interface {
	RecordIngest(airtimeSeconds, energyJoules float64, fired bool, collided bool, pairwiseOverlaps int)
	SetInhibitionBeta(beta float64)
	SetSuppressedTotal(total int)
	SetWindowDepth(depth int)
}

// Config holds the tunables spec §6 lists for the gateway.
type Config struct {
	AggLeak  float64
	AggTheta float64

	Beta      float64
	TInhSteps int

	TxPowerW     float64
	PayloadBytes int

	CollisionMode string

	RetentionMultiplier float64
	MinRetentionS       float64

	MaxRecent int
}

type nodeCounters struct {
	EnergyTotalJ       float64
	Collisions         int
	PairwiseCollisions int
	SuppressedTotal    int
}

type stats struct {
	Fires           int
	SuppressedTotal int
}

// Gateway is the single consumer of upstream messages (spec §3
// "Ownership"). All mutable state is guarded by mu; the lock is held for
// the duration of one message's processing or one snapshot build, never
// longer.
type Gateway struct {
	mu sync.Mutex

	aggregator      *neuron.Aggregator
	inhibition      *inhibition.State
	collisionPolicy collision.Policy
	broadcaster     Broadcaster
	metrics         MetricsSink
	log             *zap.Logger

	beta      float64
	tInhSteps int

	txPowerW     float64
	payloadBytes int

	retentionMultiplier float64
	minRetentionS       float64
	collisionModeName   string

	recent  *recentQueue
	window  []*windowEntry
	perNode map[int]*nodeCounters
	stats   stats

	now func() time.Time
}

// New constructs a Gateway around a shared inhibition.State. inh must not
// be nil: the gateway is the sole writer of inhibition, and a gateway
// without one to write to is a configuration error.
func New(cfg Config, inh *inhibition.State, log *zap.Logger) (*Gateway, error) {
	policy, err := collision.Lookup(cfg.CollisionMode)
	if err != nil {
		return nil, err
	}
	maxRecent := cfg.MaxRecent
	if maxRecent <= 0 {
		maxRecent = 5000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		aggregator:          neuron.NewAggregator(cfg.AggLeak, cfg.AggTheta),
		inhibition:          inh,
		collisionPolicy:     policy,
		log:                 log,
		beta:                cfg.Beta,
		tInhSteps:           cfg.TInhSteps,
		txPowerW:            cfg.TxPowerW,
		payloadBytes:        cfg.PayloadBytes,
		retentionMultiplier: cfg.RetentionMultiplier,
		minRetentionS:       cfg.MinRetentionS,
		collisionModeName:   policy.Name(),
		recent:              newRecentQueue(maxRecent),
		perNode:             make(map[int]*nodeCounters),
		now:                 time.Now,
	}, nil
}

// SetBroadcaster wires the transport-layer fan-out hook after construction.
// Safe to call at most once before traffic starts flowing; concurrent use
// with Ingest is safe (both take mu) but the broadcaster should be settled
// before a gateway starts serving real nodes.
func (g *Gateway) SetBroadcaster(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcaster = b
}

// SetMetrics wires the ambient Prometheus sink. Optional.
func (g *Gateway) SetMetrics(m MetricsSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics = m
}

// ApplyTunables updates the non-destructive subset of Config in place —
// LIF/aggregator-adjacent and retention knobs a SIGHUP reload is allowed to
// change live. It does not touch the collision policy, since Lookup can
// fail and a hot-reload must never leave the gateway half-reconfigured;
// callers validate the new collision mode with collision.Lookup before
// calling this. Listener/dashboard addresses are intentionally absent:
// those require a process restart (config package doc comment).
func (g *Gateway) ApplyTunables(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.aggregator.SetTunables(cfg.AggLeak, cfg.AggTheta)
	g.beta = cfg.Beta
	g.tInhSteps = cfg.TInhSteps
	g.txPowerW = cfg.TxPowerW
	g.payloadBytes = cfg.PayloadBytes
	g.retentionMultiplier = cfg.RetentionMultiplier
	g.minRetentionS = cfg.MinRetentionS
	if cfg.MaxRecent > 0 {
		g.recent.setMax(cfg.MaxRecent)
	}
}

// Ingest processes one upstream message end to end (spec §4.4.2): attaches
// airtime/energy, steps the aggregator, reconciles the node's suppressed
// counter, appends to the recent queue, accumulates energy, and runs
// collision detection. Returns the enriched form for logging.
//
// inhibition.State has its own mutex, independent of g.mu (spec §5: never
// hold both locks at once). Everything that needs g.mu is done and the lock
// released before Activate/CurrentBeta are called below.
func (g *Gateway) Ingest(msg protocol.Upstream) protocol.Enriched {
	g.mu.Lock()

	nowS := secondsSinceEpoch(g.now())
	at := airtime.Seconds(g.payloadBytes)
	energy := airtime.EnergyJoules(at, g.txPowerW)

	enriched := protocol.Enriched{
		Upstream: msg,
		AirtimeS: at,
		EnergyJ:  energy,
		StartS:   nowS,
		EndS:     nowS + at,
	}

	fired := false
	if enriched.DidSpike() {
		if g.aggregator.Step(1.0) {
			fired = true
			g.stats.Fires++
		}
	}

	g.updateSuppressed(msg.Node, msg.SuppressedTotal)

	nc := g.nodeCounters(msg.Node)
	nc.EnergyTotalJ += energy

	g.recordCollision(&enriched, nowS)
	g.recent.push(enriched)

	beta := g.beta
	tInhSteps := g.tInhSteps
	broadcaster := g.broadcaster
	metrics := g.metrics
	suppressedTotal := g.stats.SuppressedTotal
	windowDepth := len(g.window)

	g.mu.Unlock()

	if fired {
		g.inhibition.Activate(beta, tInhSteps)
		if broadcaster != nil {
			broadcaster.BroadcastInhibit(protocol.NewInhibitCommand(beta, tInhSteps))
		}
		g.log.Debug("aggregator fired, inhibition activated",
			zap.Float64("beta", beta), zap.Int("t_inh_steps", tInhSteps))
	}

	if metrics != nil {
		metrics.RecordIngest(at, energy, fired, enriched.Collided, enriched.PairwiseCollisions)
		metrics.SetInhibitionBeta(g.inhibition.CurrentBeta())
		metrics.SetSuppressedTotal(suppressedTotal)
		metrics.SetWindowDepth(windowDepth)
	}

	return enriched
}

// nodeCounters returns (creating if necessary) the counter bucket for a
// node. Caller must hold mu.
func (g *Gateway) nodeCounters(node int) *nodeCounters {
	nc, ok := g.perNode[node]
	if !ok {
		nc = &nodeCounters{}
		g.perNode[node] = nc
	}
	return nc
}

// updateSuppressed reconciles a node's self-reported suppressed_total and
// recomputes the fleet-wide sum (spec §4.4.2 step 5). Caller must hold mu.
func (g *Gateway) updateSuppressed(node, reported int) {
	nc := g.nodeCounters(node)
	if reported != nc.SuppressedTotal {
		nc.SuppressedTotal = reported
	}
	total := 0
	for _, c := range g.perNode {
		total += c.SuppressedTotal
	}
	g.stats.SuppressedTotal = total
}

func secondsSinceEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
