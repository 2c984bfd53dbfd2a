package gateway

import (
	"testing"
	"time"

	"github.com/octoreflex/edgelif/internal/inhibition"
	"github.com/octoreflex/edgelif/internal/protocol"
)

func newTestGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	if cfg.AggTheta == 0 {
		cfg.AggTheta = 2.0
	}
	if cfg.PayloadBytes == 0 {
		cfg.PayloadBytes = 12
	}
	if cfg.CollisionMode == "" {
		cfg.CollisionMode = "spikes"
	}
	if cfg.RetentionMultiplier == 0 {
		cfg.RetentionMultiplier = 2.0
	}
	if cfg.Beta == 0 {
		cfg.Beta = 2.0
	}
	g, err := New(cfg, inhibition.New(time.Second), nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestApplyTunablesUpdatesLiveAggregatorAndRetention(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, AggTheta: 1000})

	g.ApplyTunables(Config{
		AggLeak:             0.5,
		AggTheta:            3.0,
		Beta:                4.0,
		TInhSteps:           7,
		TxPowerW:            0.2,
		PayloadBytes:        20,
		RetentionMultiplier: 1.0,
		MinRetentionS:       1.0,
		MaxRecent:           2,
	})

	if got := g.aggregator.Theta(); got != 3.0 {
		t.Errorf("aggregator theta after reload = %v, want 3.0", got)
	}
	if g.beta != 4.0 || g.tInhSteps != 7 {
		t.Errorf("beta/tInhSteps after reload = %v/%v, want 4.0/7", g.beta, g.tInhSteps)
	}
	if g.payloadBytes != 20 {
		t.Errorf("payloadBytes after reload = %v, want 20", g.payloadBytes)
	}

	// MaxRecent shrunk to 2: pushing a 3rd message should evict the oldest.
	g.recent.push(protocol.Enriched{Upstream: protocol.Upstream{Node: 1}})
	g.recent.push(protocol.Enriched{Upstream: protocol.Upstream{Node: 2}})
	g.recent.push(protocol.Enriched{Upstream: protocol.Upstream{Node: 3}})
	if got := len(g.recent.all()); got != 2 {
		t.Errorf("recent queue len after reload+pushes = %d, want 2", got)
	}
}

func TestIngestAccumulatesEnergyPerNode(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Value: 10, Spike: 0, SuppressedTotal: 0})
	g.Ingest(protocol.Upstream{Node: 1, Value: 11, Spike: 0, SuppressedTotal: 0})

	nc := g.perNode[1]
	if nc == nil || nc.EnergyTotalJ <= 0 {
		t.Fatalf("expected accumulated energy for node 1, got %+v", nc)
	}
}

func TestIngestFiresAggregatorAndActivatesInhibition(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, AggLeak: 1.0, AggTheta: 2.0, TInhSteps: 5})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 1})
	if g.inhibition.CurrentBeta() != 1.0 {
		t.Fatalf("aggregator should not have fired yet")
	}
	g.Ingest(protocol.Upstream{Node: 2, Spike: 1})
	if g.inhibition.CurrentBeta() != g.beta {
		t.Errorf("expected inhibition activated with beta=%v, got %v", g.beta, g.inhibition.CurrentBeta())
	}
	if g.stats.Fires != 1 {
		t.Errorf("Fires = %d, want 1", g.stats.Fires)
	}
}

func TestIngestBroadcastsOnFire(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, AggLeak: 1.0, AggTheta: 1.0})
	var got protocol.InhibitCommand
	calls := 0
	g.SetBroadcaster(broadcastFunc(func(cmd protocol.InhibitCommand) {
		got = cmd
		calls++
	}))

	g.Ingest(protocol.Upstream{Node: 1, Spike: 1})
	if calls != 1 {
		t.Fatalf("expected 1 broadcast, got %d", calls)
	}
	if got.Cmd != "inhibit" {
		t.Errorf("got %+v", got)
	}
}

func TestIngestCollisionBetweenOverlappingSpikes(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, AggTheta: 1000})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	e1 := g.Ingest(protocol.Upstream{Node: 1, Spike: 1})
	if e1.Collided {
		t.Fatalf("first message cannot collide with nothing")
	}

	e2 := g.Ingest(protocol.Upstream{Node: 2, Spike: 1})
	if !e2.Collided {
		t.Errorf("expected second overlapping spike to collide")
	}
	if e2.PairwiseCollisions != 1 {
		t.Errorf("PairwiseCollisions = %d, want 1", e2.PairwiseCollisions)
	}
	if g.perNode[1].Collisions != 1 {
		t.Errorf("node 1 retroactive collision count = %d, want 1", g.perNode[1].Collisions)
	}
}

func TestIngestNonSpikeNeverCollidesUnderSpikesMode(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, CollisionMode: "spikes"})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 0})
	e2 := g.Ingest(protocol.Upstream{Node: 2, Spike: 0})
	if e2.Collided {
		t.Errorf("non-spike messages must not collide under spikes mode")
	}
}

func TestIngestCollisionUnderAllMode(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, CollisionMode: "all"})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 0})
	e2 := g.Ingest(protocol.Upstream{Node: 2, Spike: 0})
	if !e2.Collided {
		t.Errorf("every message is a transmission under all mode, expected collision")
	}
}

func TestIngestSuppressedTotalAggregatesAcrossNodes(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	g.Ingest(protocol.Upstream{Node: 1, SuppressedTotal: 3})
	g.Ingest(protocol.Upstream{Node: 2, SuppressedTotal: 5})
	if g.stats.SuppressedTotal != 8 {
		t.Errorf("SuppressedTotal = %d, want 8", g.stats.SuppressedTotal)
	}
}

func TestNewRejectsUnknownCollisionMode(t *testing.T) {
	_, err := New(Config{CollisionMode: "bogus", PayloadBytes: 12}, inhibition.New(time.Second), nil)
	if err == nil {
		t.Error("expected error for unknown collision mode")
	}
}

type broadcastFunc func(protocol.InhibitCommand)

func (f broadcastFunc) BroadcastInhibit(cmd protocol.InhibitCommand) { f(cmd) }

type fakeMetricsSink struct {
	ingestCalls     int
	lastBeta        float64
	lastSuppressed  int
	lastWindowDepth int
}

func (f *fakeMetricsSink) RecordIngest(airtimeSeconds, energyJoules float64, fired, collided bool, pairwiseOverlaps int) {
	f.ingestCalls++
}
func (f *fakeMetricsSink) SetInhibitionBeta(beta float64) { f.lastBeta = beta }
func (f *fakeMetricsSink) SetSuppressedTotal(total int)   { f.lastSuppressed = total }
func (f *fakeMetricsSink) SetWindowDepth(depth int)       { f.lastWindowDepth = depth }

func TestIngestReportsToMetricsSink(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	sink := &fakeMetricsSink{}
	g.SetMetrics(sink)

	g.Ingest(protocol.Upstream{Node: 1, SuppressedTotal: 2})
	g.Ingest(protocol.Upstream{Node: 2, SuppressedTotal: 3})

	if sink.ingestCalls != 2 {
		t.Errorf("ingestCalls = %d, want 2", sink.ingestCalls)
	}
	if sink.lastSuppressed != 5 {
		t.Errorf("lastSuppressed = %d, want 5", sink.lastSuppressed)
	}
	if sink.lastBeta != 1.0 {
		t.Errorf("lastBeta = %v, want 1.0 (no aggregator fire)", sink.lastBeta)
	}
}
