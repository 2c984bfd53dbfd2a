// Package config provides configuration loading, validation, and hot-reload
// for the edgelif gateway and node supervisor.
//
// Configuration file: /etc/edgelif/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - The gateway listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml.
//   - Apply non-destructive changes only: aggregator, inhibition, energy
//     and retention knobs, and max_recent. Log level and format are not
//     reloaded; the sensor LIF and node settings belong to the node
//     processes and are not applied by the gateway.
//   - Destructive changes (listener addr, dashboard addr, collision mode)
//     require restart.
//   - If the new config is invalid, the old config remains active and an
//     error is logged. The gateway does NOT crash on invalid hot-reload
//     config.
//
// Validation:
//   - Numeric ranges enforced (leak in [0,1], positive thresholds).
//   - Invalid config on startup: refuse to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure (spec §6 "recognised
// options").
type Config struct {
	SchemaVersion string `yaml:"schema_version"`

	Nodes NodesConfig `yaml:"nodes"`
	LIF   LIFConfig   `yaml:"lif"`

	Aggregator AggregatorConfig `yaml:"aggregator"`
	Inhibition InhibitionConfig `yaml:"inhibition"`
	Energy     EnergyConfig     `yaml:"energy"`
	Collision  CollisionConfig  `yaml:"collision"`

	BaselineInterval int `yaml:"baseline_interval"`
	MaxRecent        int `yaml:"max_recent"`

	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// NodesConfig controls the simulated fleet's size and timing.
type NodesConfig struct {
	// Count is the number of simulated nodes.
	Count int `yaml:"count"`

	// StepS is the simulated duration of one node step, in seconds.
	StepS float64 `yaml:"step_s"`

	// Accelerate compresses wall-clock sleep relative to StepS; 60 means a
	// 300s step sleeps for 5s of real time.
	Accelerate float64 `yaml:"accelerate"`
}

// LIFConfig holds the per-sensor LIF neuron parameters.
type LIFConfig struct {
	Leak       float64 `yaml:"leak"`
	Theta      float64 `yaml:"theta"`
	Refractory int     `yaml:"refractory"`
	Scale      float64 `yaml:"scale"`
}

// AggregatorConfig holds the gateway-side aggregator LIF parameters.
type AggregatorConfig struct {
	Leak  float64 `yaml:"leak"`
	Theta float64 `yaml:"theta"`
}

// InhibitionConfig controls the inhibition signal raised on aggregator
// fire.
type InhibitionConfig struct {
	Beta      float64 `yaml:"beta"`
	TInhSteps int     `yaml:"t_inh_steps"`
}

// EnergyConfig holds the LoRa-style airtime/energy model inputs.
type EnergyConfig struct {
	TxPowerW     float64 `yaml:"tx_power_w"`
	PayloadBytes int     `yaml:"payload_bytes"`
}

// CollisionConfig controls collision detection.
type CollisionConfig struct {
	// Mode selects a registered collision.Policy ("spikes" or "all").
	Mode string `yaml:"mode"`

	RetentionMultiplier float64 `yaml:"retention_multiplier"`
	MinRetentionS       float64 `yaml:"min_retention_s"`
}

// TransportConfig holds listener/dashboard network addresses.
type TransportConfig struct {
	// ListenAddr is the gateway's node-facing TCP listener, e.g. ":7700".
	ListenAddr string `yaml:"listen_addr"`

	// DashboardAddr serves the domain JSON /metrics and dashboard stub,
	// e.g. ":8080".
	DashboardAddr string `yaml:"dashboard_addr"`

	// MaxConnections bounds concurrent node connections; <= 0 means
	// unbounded.
	MaxConnections int `yaml:"max_connections"`
}

// ObservabilityConfig controls the ambient Prometheus registry and
// logging, distinct from the domain dashboard endpoint.
type ObservabilityConfig struct {
	// MetricsAddr serves the Prometheus /metrics and /healthz endpoints,
	// loopback only, e.g. "127.0.0.1:9091".
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config with every field set to its documented
// default (spec §6).
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		Nodes: NodesConfig{
			Count:      10,
			StepS:      300.0,
			Accelerate: 60.0,
		},
		LIF: LIFConfig{
			Leak:       0.99,
			Theta:      50.0,
			Refractory: 0,
			Scale:      1.0,
		},
		Aggregator: AggregatorConfig{
			Leak:  0.9,
			Theta: 5.0,
		},
		Inhibition: InhibitionConfig{
			Beta:      2.0,
			TInhSteps: 3,
		},
		Energy: EnergyConfig{
			TxPowerW:     0.396,
			PayloadBytes: 12,
		},
		Collision: CollisionConfig{
			Mode:                "spikes",
			RetentionMultiplier: 10.0,
			MinRetentionS:       2.0,
		},
		BaselineInterval: 0,
		MaxRecent:        5000,
		Transport: TransportConfig{
			ListenAddr:     ":7700",
			DashboardAddr:  ":8080",
			MaxConnections: 0,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads, parses, and validates a YAML config file. Unset fields keep
// their Defaults() values since cfg is pre-populated with defaults before
// unmarshaling over it.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks range and consistency constraints, accumulating every
// violation before returning (an operator fixing a config file wants the
// whole list, not one error at a time).
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.Nodes.Count < 1 {
		errs = append(errs, fmt.Sprintf("nodes.count must be >= 1, got %d", cfg.Nodes.Count))
	}
	if cfg.Nodes.StepS <= 0 {
		errs = append(errs, fmt.Sprintf("nodes.step_s must be > 0, got %f", cfg.Nodes.StepS))
	}
	if cfg.Nodes.Accelerate <= 0 {
		errs = append(errs, fmt.Sprintf("nodes.accelerate must be > 0, got %f", cfg.Nodes.Accelerate))
	}
	if cfg.LIF.Leak < 0.0 || cfg.LIF.Leak > 1.0 {
		errs = append(errs, fmt.Sprintf("lif.leak must be in [0.0, 1.0], got %f", cfg.LIF.Leak))
	}
	if cfg.LIF.Theta <= 0 {
		errs = append(errs, fmt.Sprintf("lif.theta must be > 0, got %f", cfg.LIF.Theta))
	}
	if cfg.LIF.Refractory < 0 {
		errs = append(errs, fmt.Sprintf("lif.refractory must be >= 0, got %d", cfg.LIF.Refractory))
	}
	if cfg.Aggregator.Leak < 0.0 || cfg.Aggregator.Leak > 1.0 {
		errs = append(errs, fmt.Sprintf("aggregator.leak must be in [0.0, 1.0], got %f", cfg.Aggregator.Leak))
	}
	if cfg.Aggregator.Theta <= 0 {
		errs = append(errs, fmt.Sprintf("aggregator.theta must be > 0, got %f", cfg.Aggregator.Theta))
	}
	if cfg.Inhibition.Beta < 1.0 {
		errs = append(errs, fmt.Sprintf("inhibition.beta must be >= 1.0, got %f", cfg.Inhibition.Beta))
	}
	if cfg.Inhibition.TInhSteps < 0 {
		errs = append(errs, fmt.Sprintf("inhibition.t_inh_steps must be >= 0, got %d", cfg.Inhibition.TInhSteps))
	}
	if cfg.Energy.TxPowerW <= 0 {
		errs = append(errs, fmt.Sprintf("energy.tx_power_w must be > 0, got %f", cfg.Energy.TxPowerW))
	}
	if cfg.Energy.PayloadBytes < 1 {
		errs = append(errs, fmt.Sprintf("energy.payload_bytes must be >= 1, got %d", cfg.Energy.PayloadBytes))
	}
	if cfg.Collision.Mode != "spikes" && cfg.Collision.Mode != "all" {
		errs = append(errs, fmt.Sprintf("collision.mode must be \"spikes\" or \"all\", got %q", cfg.Collision.Mode))
	}
	if cfg.Collision.RetentionMultiplier <= 0 {
		errs = append(errs, fmt.Sprintf("collision.retention_multiplier must be > 0, got %f", cfg.Collision.RetentionMultiplier))
	}
	if cfg.Collision.MinRetentionS < 0 {
		errs = append(errs, fmt.Sprintf("collision.min_retention_s must be >= 0, got %f", cfg.Collision.MinRetentionS))
	}
	if cfg.BaselineInterval < 0 {
		errs = append(errs, fmt.Sprintf("baseline_interval must be >= 0, got %d", cfg.BaselineInterval))
	}
	if cfg.MaxRecent < 1 {
		errs = append(errs, fmt.Sprintf("max_recent must be >= 1, got %d", cfg.MaxRecent))
	}
	if cfg.Transport.ListenAddr == "" {
		errs = append(errs, "transport.listen_addr must not be empty")
	}
	if cfg.Transport.DashboardAddr == "" {
		errs = append(errs, "transport.dashboard_addr must not be empty")
	}

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "; " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// StepDuration returns Nodes.StepS as a time.Duration.
func (c Config) StepDuration() time.Duration {
	return time.Duration(c.Nodes.StepS * float64(time.Second))
}
