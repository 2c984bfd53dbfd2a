// Package node implements the concurrent sensor-node producer (spec §4.3):
// each Node owns one LIF sensor, reads the inhibition signal, and emits
// upstream messages on spike or on its baseline interval. Nodes never
// coordinate with each other.
//
// Style is grounded on the teacher's simulator loop
// (cmd/octoreflex-sim's Simulator.Run): a plain for-loop stepping a small
// state machine, sleeping between iterations, checking a cancellation
// signal each time round rather than forcing cancellation mid-step.
package node

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/neuron"
	"github.com/octoreflex/edgelif/internal/protocol"
)

// InhibitionSource is the one piece of mutable state a Node reads but
// never writes. Satisfied directly by *inhibition.State in in-process
// wiring, and by *LocalInhibition when the node only has a TCP return
// channel to learn about inhibition from.
type InhibitionSource interface {
	CurrentBeta() float64
}

// ticker is implemented by inhibition sources that need to be advanced
// once per node step (LocalInhibition's countdown is in step units, not
// wall-clock time). *inhibition.State does not implement this: its expiry
// is wall-clock based and needs no per-step nudge.
type ticker interface {
	Tick()
}

// Sender delivers one encoded upstream message. Implemented by
// *transport.Client (TCP) and *transport.Bus (in-process).
type Sender interface {
	Send(protocol.Upstream) error
}

// Driver supplies the physical value a node samples at each step. Spec
// treats the driver as an external collaborator specified only by this
// interface; SineNoiseDriver below is the default implementation nodes use
// unless a caller swaps in another.
type Driver interface {
	Sample(step int) float64
}

// Config holds the per-node tunables spec §6 names.
type Config struct {
	ID   int
	Name string
	IP   string

	StepDuration time.Duration
	Accelerate   float64

	LIFLeak  float64
	LIFTheta float64
	LIFRho   int
	LIFScale float64

	BaselineInterval int
}

// Node is one independent execution context in the fleet (spec §5
// "Concurrency"): it owns its sensor, reads InhibitionSource, and writes
// to Sender. Nothing about a Node is shared with any other Node.
type Node struct {
	cfg Config

	sensor     *neuron.Sensor
	inhibition InhibitionSource
	sender     Sender
	driver     Driver
	log        *zap.Logger
	clock      func() time.Time

	step            int
	totalSpikes     int
	suppressedTotal int
}

// New constructs a Node. driver may be nil, in which case a
// SineNoiseDriver is used (spec's out-of-scope default collaborator).
func New(cfg Config, inh InhibitionSource, sender Sender, driver Driver, log *zap.Logger) *Node {
	if driver == nil {
		driver = NewSineNoiseDriver(cfg.StepDuration, int64(cfg.ID)+1)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		cfg:        cfg,
		sensor:     neuron.NewSensor(cfg.LIFLeak, cfg.LIFTheta, cfg.LIFRho),
		inhibition: inh,
		sender:     sender,
		driver:     driver,
		log:        log,
		clock:      time.Now,
	}
}

// Run drives the node's step loop until ctx is cancelled or a send fails
// (spec §7: "on send failure ... terminate that node's loop; no retry, no
// buffering"). Returns the send error, or nil on clean cancellation.
func (n *Node) Run(ctx context.Context) error {
	sleep := n.cfg.StepDuration
	if n.cfg.Accelerate > 0 {
		sleep = time.Duration(float64(sleep) / math.Max(1.0, n.cfg.Accelerate))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := n.stepOnce(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

// stepOnce samples the driver, advances the LIF sensor, and sends the
// resulting message when the send policy says to (spec §4.3).
func (n *Node) stepOnce() error {
	value := n.driver.Sample(n.step)
	beta := n.inhibition.CurrentBeta()
	input := value * n.cfg.LIFScale

	spike, suppressed := n.sensor.Step(input, beta)
	if t, ok := n.inhibition.(ticker); ok {
		t.Tick()
	}

	spikeFlag := 0
	if spike {
		spikeFlag = 1
		n.totalSpikes++
	}
	if suppressed {
		n.suppressedTotal++
	}

	isBaseline := n.cfg.BaselineInterval > 0 && n.step%n.cfg.BaselineInterval == 0
	shouldSend := spike || isBaseline

	msg := protocol.Upstream{
		TS:              n.clock().UTC().Format(time.RFC3339Nano),
		Node:            n.cfg.ID,
		Name:            n.cfg.Name,
		IP:              n.cfg.IP,
		Value:           value,
		Spike:           spikeFlag,
		SuppressedTotal: n.suppressedTotal,
	}
	if isBaseline {
		msg.Baseline = 1
	}

	n.step++

	if !shouldSend {
		return nil
	}
	if err := n.sender.Send(msg); err != nil {
		n.log.Warn("node: send failed, terminating loop", zap.Int("node", n.cfg.ID), zap.Error(err))
		return err
	}
	return nil
}

// TotalSpikes returns this node's own fired-step count. Local to the node
// per spec §5 "Isolation"; never read by the gateway.
func (n *Node) TotalSpikes() int { return n.totalSpikes }

// SuppressedTotal returns this node's monotonically non-decreasing
// near-miss count, the same value reported on the wire.
func (n *Node) SuppressedTotal() int { return n.suppressedTotal }
