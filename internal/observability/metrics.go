// Package observability — metrics.go
//
// Ambient Prometheus metrics for the edgelif gateway.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable), loopback only.
// This is a distinct concern from internal/httpapi's GET /metrics: that
// one serves the domain-mandated JSON snapshot a dashboard polls (spec
// §4.4.4); this one serves Prometheus text exposition format for a scrape
// target. Same path name, different servers, different ports — exactly
// the split the teacher's agent/operator split models for unrelated
// concerns sharing a process.
//
// Metric naming convention: edgelif_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metric descriptors for the gateway process.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Message pipeline ─────────────────────────────────────────────────

	// MessagesProcessedTotal counts upstream messages ingested.
	MessagesProcessedTotal prometheus.Counter

	// MessagesDroppedTotal counts messages dropped for a missing/invalid
	// node field, or a malformed line on the wire.
	// Labels: reason (missing_node, malformed)
	MessagesDroppedTotal *prometheus.CounterVec

	// AirtimeSecondsHistogram records per-message computed airtime.
	AirtimeSecondsHistogram prometheus.Histogram

	// EnergyTotalJoules is the fleet-wide cumulative transmit energy.
	EnergyTotalJoules prometheus.Gauge

	// ─── Aggregator / inhibition ──────────────────────────────────────────

	// AggregatorFiresTotal counts aggregator LIF fires.
	AggregatorFiresTotal prometheus.Counter

	// InhibitionActiveBeta is the current effective beta (1.0 = inactive).
	InhibitionActiveBeta prometheus.Gauge

	// SuppressedTotal is the fleet-wide sum of node-reported suppression
	// near-misses.
	SuppressedTotal prometheus.Gauge

	// ─── Collisions ────────────────────────────────────────────────────────

	// CollidedMessagesTotal counts ingested messages that overlapped at least
	// one earlier transmission. An earlier message that is marked collided
	// later, by a newer overlapping message, is not counted here, so this
	// is lower than the JSON snapshot's total_collided_messages.
	CollidedMessagesTotal prometheus.Counter

	// PairwiseOverlapsTotal counts each overlap pair once, adding the new
	// message's overlap count at ingest. This is half of the per-node
	// pairwise sum in the JSON snapshot, which counts both endpoints.
	PairwiseOverlapsTotal prometheus.Counter

	// WindowDepth is the current number of retained in-flight entries.
	WindowDepth prometheus.Gauge

	// ─── Connected fleet ────────────────────────────────────────────────────

	// ConnectedNodes is the number of live TCP connections.
	ConnectedNodes prometheus.Gauge

	// BroadcastFailuresTotal counts broadcast write failures that dropped a
	// connection.
	BroadcastFailuresTotal prometheus.Counter

	// ─── Process ───────────────────────────────────────────────────────────

	// GatewayUptimeSeconds is the number of seconds since the gateway
	// started.
	GatewayUptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers all edgelif Prometheus metrics on a
// fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		MessagesProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "gateway",
			Name:      "messages_processed_total",
			Help:      "Total upstream messages successfully ingested.",
		}),

		MessagesDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "gateway",
			Name:      "messages_dropped_total",
			Help:      "Total upstream messages dropped before accounting, by reason.",
		}, []string{"reason"}),

		AirtimeSecondsHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgelif",
			Subsystem: "gateway",
			Name:      "airtime_seconds",
			Help:      "Distribution of computed LoRa-style airtime per message.",
			Buckets:   []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
		}),

		EnergyTotalJoules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "gateway",
			Name:      "energy_total_joules",
			Help:      "Fleet-wide cumulative transmit energy in joules.",
		}),

		AggregatorFiresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "aggregator",
			Name:      "fires_total",
			Help:      "Total times the aggregator LIF neuron fired.",
		}),

		InhibitionActiveBeta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "inhibition",
			Name:      "active_beta",
			Help:      "Current effective inhibition beta multiplier (1.0 = inactive).",
		}),

		SuppressedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "aggregator",
			Name:      "suppressed_total",
			Help:      "Fleet-wide sum of node-reported suppression near-misses.",
		}),

		CollidedMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "collision",
			Name:      "collided_messages_total",
			Help:      "Total ingested messages that overlapped an earlier transmission.",
		}),

		PairwiseOverlapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "collision",
			Name:      "pairwise_overlaps_total",
			Help:      "Total overlap pairs recorded, each pair counted once.",
		}),

		WindowDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "collision",
			Name:      "window_depth",
			Help:      "Current number of retained in-flight transmission entries.",
		}),

		ConnectedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "transport",
			Name:      "connected_nodes",
			Help:      "Current number of live node TCP connections.",
		}),

		BroadcastFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgelif",
			Subsystem: "transport",
			Name:      "broadcast_failures_total",
			Help:      "Total inhibit-broadcast write failures that dropped a connection.",
		}),

		GatewayUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "edgelif",
			Subsystem: "gateway",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the gateway process started.",
		}),
	}

	reg.MustRegister(
		m.MessagesProcessedTotal,
		m.MessagesDroppedTotal,
		m.AirtimeSecondsHistogram,
		m.EnergyTotalJoules,
		m.AggregatorFiresTotal,
		m.InhibitionActiveBeta,
		m.SuppressedTotal,
		m.CollidedMessagesTotal,
		m.PairwiseOverlapsTotal,
		m.WindowDepth,
		m.ConnectedNodes,
		m.BroadcastFailuresTotal,
		m.GatewayUptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.GatewayUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}

// RecordIngest updates the pipeline metrics for one successfully processed
// message. internal/gateway calls it through its MetricsSink interface, so
// the domain package has no observability import.
func (m *Metrics) RecordIngest(airtimeSeconds, energyJoules float64, fired bool, collided bool, pairwiseOverlaps int) {
	m.MessagesProcessedTotal.Inc()
	m.AirtimeSecondsHistogram.Observe(airtimeSeconds)
	m.EnergyTotalJoules.Add(energyJoules)
	if fired {
		m.AggregatorFiresTotal.Inc()
	}
	if collided {
		m.CollidedMessagesTotal.Inc()
	}
	m.PairwiseOverlapsTotal.Add(float64(pairwiseOverlaps))
}

// RecordDropped increments the drop counter for the given reason
// ("missing_node" or "malformed").
func (m *Metrics) RecordDropped(reason string) {
	m.MessagesDroppedTotal.WithLabelValues(reason).Inc()
}

// SetInhibitionBeta updates the current effective inhibition multiplier
// gauge.
func (m *Metrics) SetInhibitionBeta(beta float64) {
	m.InhibitionActiveBeta.Set(beta)
}

// SetSuppressedTotal updates the fleet-wide suppression-count gauge.
func (m *Metrics) SetSuppressedTotal(total int) {
	m.SuppressedTotal.Set(float64(total))
}

// SetWindowDepth updates the in-flight transmission window's current size.
func (m *Metrics) SetWindowDepth(depth int) {
	m.WindowDepth.Set(float64(depth))
}

// SetConnectedNodes updates the live TCP connection count.
func (m *Metrics) SetConnectedNodes(n int) {
	m.ConnectedNodes.Set(float64(n))
}

// IncBroadcastFailures increments the broadcast-write-failure counter.
func (m *Metrics) IncBroadcastFailures() {
	m.BroadcastFailuresTotal.Inc()
}
