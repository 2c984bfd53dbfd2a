package gateway

import "strconv"

// NodeSeries is one node's value series, parallel to Snapshot.Timestamps.
// A nil entry means this node has no recorded value at that timestamp.
type NodeSeries struct {
	Values []*float64 `json:"values"`
}

// NodeSummary is the per-node rollup (spec §4.4.4).
type NodeSummary struct {
	Count              int     `json:"count"`
	EnergyTotal        float64 `json:"energy_total"`
	Collisions         int     `json:"collisions"`
	PairwiseCollisions int     `json:"pairwise_collisions"`
}

// AggregatorSnapshot mirrors the aggregator neuron's externally visible
// state.
type AggregatorSnapshot struct {
	Fires           int     `json:"fires"`
	Theta           float64 `json:"theta"`
	SuppressedTotal int     `json:"suppressed_total"`
}

// InhibitionSnapshot mirrors inhibition.Snapshot in wire form.
type InhibitionSnapshot struct {
	Beta     float64 `json:"beta"`
	ExpiryTS float64 `json:"expiry_ts"`
}

// Snapshot is the full JSON body served at GET /metrics (spec §4.4.4/§7).
type Snapshot struct {
	Nodes      map[string]NodeSeries `json:"nodes"`
	Timestamps []string              `json:"timestamps"`

	Summary map[string]NodeSummary `json:"summary"`

	MsgsPerSec float64            `json:"msgs_per_sec"`
	Aggregator AggregatorSnapshot `json:"aggregator"`

	TotalMessages         int `json:"total_messages"`
	TotalCollidedMessages int `json:"total_collided_messages"`
	TotalPairwiseOverlaps int `json:"total_pairwise_overlaps"`

	CollisionMode string             `json:"collision_mode"`
	Inhibition    InhibitionSnapshot `json:"inhibition"`

	LastUpdatedISO *string `json:"last_updated_iso"`
}

// SnapshotMetrics builds the dashboard/metrics payload from the current
// recent queue and per-node counters (spec §4.4.4). Distinct from the
// ambient Prometheus registry in internal/observability: this is the
// domain-mandated JSON view, not a scrape target.
//
// g.mu is released before inhibitionSnapshot is built: inhibition.State has
// its own mutex, independent of g.mu, and spec §5 forbids holding both at
// once.
func (g *Gateway) SnapshotMetrics() Snapshot {
	g.mu.Lock()

	data := g.recent.all()

	timestamps := make([]string, len(data))
	for i, d := range data {
		timestamps[i] = d.TS
	}

	perNodeSeries := map[string]map[string]float64{}
	counts := map[string]int{}
	for _, d := range data {
		key := strconv.Itoa(d.Node)
		if perNodeSeries[key] == nil {
			perNodeSeries[key] = map[string]float64{}
		}
		perNodeSeries[key][d.TS] = d.Value
		counts[key]++
	}

	nodes := make(map[string]NodeSeries, len(perNodeSeries))
	for key, series := range perNodeSeries {
		values := make([]*float64, len(timestamps))
		for i, ts := range timestamps {
			if v, ok := series[ts]; ok {
				v := v
				values[i] = &v
			}
		}
		nodes[key] = NodeSeries{Values: values}
	}

	summary := make(map[string]NodeSummary, len(g.perNode))
	var totalCollided, totalPairwise int
	for node, nc := range g.perNode {
		key := strconv.Itoa(node)
		summary[key] = NodeSummary{
			Count:              counts[key],
			EnergyTotal:        nc.EnergyTotalJ,
			Collisions:         nc.Collisions,
			PairwiseCollisions: nc.PairwiseCollisions,
		}
		totalCollided += nc.Collisions
		totalPairwise += nc.PairwiseCollisions
	}

	var msgsInLastMinute int
	cutoff := secondsSinceEpoch(g.now()) - 60
	for i := len(data) - 1; i >= 0; i-- {
		if data[i].StartS < cutoff {
			break
		}
		msgsInLastMinute++
	}

	var lastUpdated *string
	if len(data) > 0 {
		ts := data[len(data)-1].TS
		lastUpdated = &ts
	}

	aggSnapshot := AggregatorSnapshot{
		Fires:           g.stats.Fires,
		Theta:           g.aggregator.Theta(),
		SuppressedTotal: g.stats.SuppressedTotal,
	}
	collisionModeName := g.collisionModeName

	g.mu.Unlock()

	return Snapshot{
		Nodes:      nodes,
		Timestamps: timestamps,
		Summary:    summary,
		MsgsPerSec: float64(msgsInLastMinute) / 60.0,
		Aggregator: aggSnapshot,

		TotalMessages:         len(data),
		TotalCollidedMessages: totalCollided,
		TotalPairwiseOverlaps: totalPairwise,

		CollisionMode:         collisionModeName,
		Inhibition:            g.inhibitionSnapshot(),
		LastUpdatedISO:        lastUpdated,
	}
}

func (g *Gateway) inhibitionSnapshot() InhibitionSnapshot {
	snap := g.inhibition.Snapshot()
	expiry := 0.0
	if !snap.Expiry.IsZero() {
		expiry = secondsSinceEpoch(snap.Expiry)
	}
	return InhibitionSnapshot{Beta: snap.Beta, ExpiryTS: expiry}
}
