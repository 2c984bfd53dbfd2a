// Package main — cmd/gateway/main.go
//
// edgelif gateway entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/edgelif/config.yaml.
//  2. Initialise structured logger (zap; JSON unless log_format is console).
//  3. Construct the shared inhibition state.
//  4. Construct the Gateway (aggregator, collision policy, counters).
//  5. Start the ambient Prometheus metrics server (loopback only).
//  6. Start the TCP transport listener, wired to Gateway.Ingest.
//  7. Start the domain HTTP API (dashboard + JSON /metrics snapshot).
//  8. Register SIGHUP handler for config hot-reload.
//  9. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (propagates to all goroutines).
//  2. Allow a 0.5s cooperative drain bound (spec §5).
//  3. Flush logger.
//  4. Exit 0.
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
	"go.uber.org/zap/zapcore"

	"github.com/octoreflex/edgelif/internal/buildinfo"
	"github.com/octoreflex/edgelif/internal/collision"
	"github.com/octoreflex/edgelif/internal/config"
	"github.com/octoreflex/edgelif/internal/gateway"
	"github.com/octoreflex/edgelif/internal/httpapi"
	"github.com/octoreflex/edgelif/internal/inhibition"
	"github.com/octoreflex/edgelif/internal/observability"
	"github.com/octoreflex/edgelif/internal/protocol"
	"github.com/octoreflex/edgelif/internal/transport"
)

func main() {
	configPath := flag.String("config", "/etc/edgelif/config.yaml", "Path to config.yaml")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgelif-gateway %s (commit=%s built=%s)\n",
			buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("edgelif gateway starting",
		zap.String("version", buildinfo.Version),
		zap.String("commit", buildinfo.GitCommit),
		zap.String("config", *configPath),
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
	log.Info("prometheus metrics listening", zap.String("addr", cfg.Observability.MetricsAddr))

	onMessage := func(msg protocol.Upstream) { gw.Ingest(msg) }
	tcpServer := transport.NewServer(cfg.Transport.ListenAddr, cfg.Transport.MaxConnections, onMessage, log)
	tcpServer.SetMetrics(metrics)
	gw.SetBroadcaster(tcpServer)
	go func() {
		if err := tcpServer.ListenAndServe(ctx); err != nil {
			log.Fatal("transport server error", zap.Error(err))
		}
	}()

	httpServer := httpapi.NewServer(cfg.Transport.DashboardAddr, gw, log)
	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Fatal("http api server error", zap.Error(err))
		}
	}()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			if _, err := collision.Lookup(newCfg.Collision.Mode); err != nil {
				log.Error("config hot-reload failed — collision.mode requires a restart to change, retaining old config", zap.Error(err))
				continue
			}
			gw.ApplyTunables(gateway.Config{
				AggLeak:             newCfg.Aggregator.Leak,
				AggTheta:            newCfg.Aggregator.Theta,
				Beta:                newCfg.Inhibition.Beta,
				TInhSteps:           newCfg.Inhibition.TInhSteps,
				TxPowerW:            newCfg.Energy.TxPowerW,
				PayloadBytes:        newCfg.Energy.PayloadBytes,
				RetentionMultiplier: newCfg.Collision.RetentionMultiplier,
				MinRetentionS:       newCfg.Collision.MinRetentionS,
				MaxRecent:           newCfg.MaxRecent,
			})
			log.Info("config hot-reload successful (listener/dashboard addresses and collision.mode require a restart to apply)")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(500 * time.Millisecond)
	log.Info("edgelif gateway shutdown complete")
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}
