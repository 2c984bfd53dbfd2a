package gateway

import (
	"testing"
	"time"

	"github.com/octoreflex/edgelif/internal/protocol"
)

func TestSnapshotMetricsBuildsAlignedSeries(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{TS: "t1", Node: 1, Value: 10})
	clock.t = clock.t.Add(time.Second)
	g.Ingest(protocol.Upstream{TS: "t2", Node: 2, Value: 20})

	snap := g.SnapshotMetrics()
	if len(snap.Timestamps) != 2 {
		t.Fatalf("Timestamps = %v, want len 2", snap.Timestamps)
	}

	node1 := snap.Nodes["1"]
	if node1.Values[0] == nil || *node1.Values[0] != 10 {
		t.Errorf("node 1 at t1 = %v, want 10", node1.Values[0])
	}
	if node1.Values[1] != nil {
		t.Errorf("node 1 at t2 = %v, want nil (no message from node 1 at t2)", *node1.Values[1])
	}

	if snap.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", snap.TotalMessages)
	}
	if snap.LastUpdatedISO == nil || *snap.LastUpdatedISO != "t2" {
		t.Errorf("LastUpdatedISO = %v, want t2", snap.LastUpdatedISO)
	}
}

func TestSnapshotMetricsEmptyGateway(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	snap := g.SnapshotMetrics()
	if snap.TotalMessages != 0 || snap.LastUpdatedISO != nil {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if snap.Inhibition.Beta != 1.0 {
		t.Errorf("Inhibition.Beta = %v, want 1.0 baseline", snap.Inhibition.Beta)
	}
}

func TestSnapshotMetricsMsgsPerSecUsesCurrentTimeNotLastMessage(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	for i := 0; i < 120; i++ {
		g.Ingest(protocol.Upstream{Node: 1, Value: float64(i)})
		clock.t = clock.t.Add(time.Second)
	}

	// 61 more seconds pass with no further traffic; "now" has moved on and
	// the last retained message (sent at t=1119) is 62s stale.
	clock.t = clock.t.Add(61 * time.Second)

	snap := g.SnapshotMetrics()
	if snap.MsgsPerSec != 0 {
		t.Errorf("MsgsPerSec = %v, want 0 (all messages are older than the trailing 60s window)", snap.MsgsPerSec)
	}
}

func TestSnapshotMetricsCollisionTotalsMatchPerNodeSums(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, AggTheta: 1000})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 1})
	g.Ingest(protocol.Upstream{Node: 2, Spike: 1})

	snap := g.SnapshotMetrics()
	if snap.TotalCollidedMessages != 2 {
		t.Errorf("TotalCollidedMessages = %d, want 2 (both node 1's retroactive flip and node 2's own message)", snap.TotalCollidedMessages)
	}
	if snap.TotalPairwiseOverlaps != 2 {
		t.Errorf("TotalPairwiseOverlaps = %d, want 2", snap.TotalPairwiseOverlaps)
	}
}
