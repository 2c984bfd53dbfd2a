// Package main — cmd/simulate/main.go
//
// edgelif in-process simulator: wires N node.Node instances to a single
// gateway.Gateway over transport.Bus, sharing the inhibition.State object
// directly in-process rather than over a TCP round trip (spec §4.3: "or
// share the inhibition object directly ... when node and gateway run in
// the same process").
//
// Usage:
//
//	edgelif-simulate -config /etc/edgelif/config.yaml -duration 10m
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/buildinfo"
	"github.com/octoreflex/edgelif/internal/config"
	"github.com/octoreflex/edgelif/internal/gateway"
	"github.com/octoreflex/edgelif/internal/httpapi"
	"github.com/octoreflex/edgelif/internal/inhibition"
	"github.com/octoreflex/edgelif/internal/node"
	"github.com/octoreflex/edgelif/internal/observability"
	"github.com/octoreflex/edgelif/internal/transport"
)

func main() {
	configPath := flag.String("config", "/etc/edgelif/config.yaml", "Path to config.yaml")
	duration := flag.Duration("duration", 0, "Run for this long then exit (0 = run until signaled)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgelif-simulate %s (commit=%s built=%s)\n",
			buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("edgelif simulator starting",
		zap.Int("nodes", cfg.Nodes.Count),
		zap.Float64("accelerate", cfg.Nodes.Accelerate),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inh := inhibition.New(cfg.StepDuration())

	gw, err := gateway.New(gateway.Config{
		AggLeak:             cfg.Aggregator.Leak,
		AggTheta:            cfg.Aggregator.Theta,
		Beta:                cfg.Inhibition.Beta,
		TInhSteps:           cfg.Inhibition.TInhSteps,
		TxPowerW:            cfg.Energy.TxPowerW,
		PayloadBytes:        cfg.Energy.PayloadBytes,
		CollisionMode:       cfg.Collision.Mode,
		RetentionMultiplier: cfg.Collision.RetentionMultiplier,
		MinRetentionS:       cfg.Collision.MinRetentionS,
		MaxRecent:           cfg.MaxRecent,
	}, inh, log)
	if err != nil {
		log.Fatal("gateway construction failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	gw.SetMetrics(metrics)
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("prometheus metrics server error", zap.Error(err))
		}
	}()

	bus := transport.NewBus(cfg.Nodes.Count * 4)
	gw.SetBroadcaster(bus)
	go func() {
		for msg := range bus.Messages() {
			gw.Ingest(msg)
		}
	}()

	httpServer := httpapi.NewServer(cfg.Transport.DashboardAddr, gw, log)
	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Fatal("http api server error", zap.Error(err))
		}
	}()

	nodes := make([]*node.Node, cfg.Nodes.Count)
	for i := 0; i < cfg.Nodes.Count; i++ {
		id := i + 1
		n := node.New(node.Config{
			ID:               id,
			Name:             fmt.Sprintf("node-%d", id),
			IP:               fmt.Sprintf("10.0.0.%d", 10+id),
			StepDuration:     cfg.StepDuration(),
			Accelerate:       cfg.Nodes.Accelerate,
			LIFLeak:          cfg.LIF.Leak,
			LIFTheta:         cfg.LIF.Theta,
			LIFRho:           cfg.LIF.Refractory,
			LIFScale:         cfg.LIF.Scale,
			BaselineInterval: cfg.BaselineInterval,
		}, inh, bus, nil, log)
		nodes[i] = n
	}

	runCtx := ctx
	if *duration > 0 {
		var durCancel context.CancelFunc
		runCtx, durCancel = context.WithTimeout(ctx, *duration)
		defer durCancel()
	}

	for _, n := range nodes {
		go func(n *node.Node) {
			if err := n.Run(runCtx); err != nil {
				log.Warn("node loop terminated", zap.Error(err))
			}
		}(n)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-runCtx.Done():
		log.Info("simulation duration elapsed")
	}

	cancel()
	bus.Close()
	time.Sleep(500 * time.Millisecond)
	log.Info("edgelif simulator shutdown complete")
}
