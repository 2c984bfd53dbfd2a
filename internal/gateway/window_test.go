package gateway

import (
	"testing"
	"time"

	"github.com/octoreflex/edgelif/internal/protocol"
)

func TestRecordCollisionPrunesExpiredEntries(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, MinRetentionS: 0.01, RetentionMultiplier: 1.0})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 1})
	if len(g.window) != 1 {
		t.Fatalf("expected 1 window entry, got %d", len(g.window))
	}

	clock.t = clock.t.Add(10 * time.Second)
	g.Ingest(protocol.Upstream{Node: 2, Spike: 1})

	if len(g.window) != 1 {
		t.Fatalf("expected stale entry pruned, window = %v", g.window)
	}
	if g.window[0].Node != 2 {
		t.Errorf("expected only node 2's fresh entry retained, got %+v", g.window[0])
	}
}

func TestRecordCollisionRetainsNonTxEntryWithoutOverlap(t *testing.T) {
	g := newTestGateway(t, Config{TxPowerW: 0.1, CollisionMode: "spikes"})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	g.now = clock.now

	g.Ingest(protocol.Upstream{Node: 1, Spike: 0})
	if len(g.window) != 1 {
		t.Fatalf("non-tx message must still occupy a window slot, got %d entries", len(g.window))
	}
	if g.window[0].IsTx {
		t.Errorf("expected IsTx=false for a non-spike message under spikes mode")
	}
}
