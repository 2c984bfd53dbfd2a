// Package main — cmd/node/main.go
//
// edgelif standalone node entrypoint: dials a gateway over TCP, runs one
// sensor's step loop, and applies inhibit broadcasts locally (spec §4.3:
// "storing β/countdown locally ... when the node is a separate process
// receiving commands only over its TCP return channel").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/buildinfo"
	"github.com/octoreflex/edgelif/internal/config"
	"github.com/octoreflex/edgelif/internal/node"
	"github.com/octoreflex/edgelif/internal/transport"
)

func main() {
	configPath := flag.String("config", "/etc/edgelif/config.yaml", "Path to config.yaml")
	gatewayAddr := flag.String("gateway", "", "Gateway TCP address (overrides config transport.listen_addr)")
	nodeID := flag.Int("id", 1, "Node ID")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgelif-node %s (commit=%s built=%s)\n",
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

	addr := *gatewayAddr
	if addr == "" {
		addr = cfg.Transport.ListenAddr
	}

	client, err := transport.Dial(addr)
	if err != nil {
		log.Fatal("dial gateway failed", zap.String("addr", addr), zap.Error(err))
	}
	defer client.Close()

	local := node.NewLocalInhibition()
	go node.Listen(client, local)

	n := node.New(node.Config{
		ID:               *nodeID,
		Name:             fmt.Sprintf("node-%d", *nodeID),
		IP:               fmt.Sprintf("10.0.0.%d", 10+*nodeID),
		StepDuration:     cfg.StepDuration(),
		Accelerate:       cfg.Nodes.Accelerate,
		LIFLeak:          cfg.LIF.Leak,
		LIFTheta:         cfg.LIF.Theta,
		LIFRho:           cfg.LIF.Refractory,
		LIFScale:         cfg.LIF.Scale,
		BaselineInterval: cfg.BaselineInterval,
	}, local, client, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := n.Run(ctx); err != nil {
		log.Error("node loop terminated", zap.Error(err))
		os.Exit(1)
	}
	log.Info("edgelif node shutdown complete", zap.Int("node_id", *nodeID))
}
