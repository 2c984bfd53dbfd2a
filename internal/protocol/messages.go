// Package protocol defines the wire shapes exchanged between nodes and the
// gateway (spec §6) and the line-delimited JSON codec used by both the TCP
// and in-process transports.
//
// Every JSON struct here accepts unknown fields silently — json.Unmarshal
// already does this by default, which is what spec §9's "forward
// compatible dynamic dict" requirement reduces to in a statically typed
// language: no extra work needed, just don't use a decoder that rejects
// unknown keys (e.g. never call dec.DisallowUnknownFields()).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingNode is returned by DecodeUpstream when the "node" key is
// absent from an otherwise well-formed JSON object. Distinct from a JSON
// syntax error: the line parsed, but identifies no node.
var ErrMissingNode = errors.New("protocol: message missing \"node\" field")

// Upstream is a node -> gateway message (spec §3).
type Upstream struct {
	TS              string   `json:"ts"`
	Node            int      `json:"node"`
	Value           float64  `json:"value"`
	Spike           int      `json:"spike"`
	SuppressedTotal int      `json:"suppressed_total"`
	Name            string   `json:"name,omitempty"`
	IP              string   `json:"ip,omitempty"`
	Baseline        int      `json:"baseline,omitempty"`
}

// DidSpike reports whether this message represents a firing step.
func (u Upstream) DidSpike() bool { return u.Spike == 1 }

// Enriched extends Upstream with the gateway-side fields attached during
// per-message processing (spec §3/§4.4.2).
type Enriched struct {
	Upstream

	AirtimeS float64 `json:"airtime_s"`
	EnergyJ  float64 `json:"energy_j"`
	StartS   float64 `json:"start_s"`
	EndS     float64 `json:"end_s"`

	Collided           bool `json:"collided"`
	PairwiseCollisions int  `json:"pairwise_collisions"`
}

// InhibitCommand is a gateway -> node downstream message (spec §3/§6).
type InhibitCommand struct {
	Cmd  string  `json:"cmd"`
	Beta float64 `json:"beta"`
	TInh int     `json:"t_inh"`
}

// NewInhibitCommand builds a well-formed inhibit command.
func NewInhibitCommand(beta float64, tInhSteps int) InhibitCommand {
	return InhibitCommand{Cmd: "inhibit", Beta: beta, TInh: tInhSteps}
}

// wireUpstream mirrors Upstream but uses a pointer for Node so we can tell
// "field absent" apart from "field present and zero".
type wireUpstream struct {
	TS              string   `json:"ts"`
	Node            *int     `json:"node"`
	Value           float64  `json:"value"`
	Spike           int      `json:"spike"`
	SuppressedTotal int      `json:"suppressed_total"`
	Name            string   `json:"name,omitempty"`
	IP              string   `json:"ip,omitempty"`
	Baseline        int      `json:"baseline,omitempty"`
}

// DecodeUpstream parses one upstream message line. Returns ErrMissingNode
// if the JSON is well-formed but has no "node" key (spec §7: "missing
// node field ... do not crash"); the caller decides how to treat it
// (spec has the gateway drop such messages from accounting). Any other
// decode error indicates malformed JSON; the caller's transport layer
// should simply skip the line.
func DecodeUpstream(line []byte) (Upstream, error) {
	var w wireUpstream
	if err := json.Unmarshal(line, &w); err != nil {
		return Upstream{}, fmt.Errorf("protocol: decode upstream message: %w", err)
	}
	if w.Node == nil {
		return Upstream{}, ErrMissingNode
	}
	return Upstream{
		TS:              w.TS,
		Node:            *w.Node,
		Value:           w.Value,
		Spike:           w.Spike,
		SuppressedTotal: w.SuppressedTotal,
		Name:            w.Name,
		IP:              w.IP,
		Baseline:        w.Baseline,
	}, nil
}

// DecodeInhibitCommand parses one downstream command line.
func DecodeInhibitCommand(line []byte) (InhibitCommand, error) {
	var cmd InhibitCommand
	if err := json.Unmarshal(line, &cmd); err != nil {
		return InhibitCommand{}, fmt.Errorf("protocol: decode inhibit command: %w", err)
	}
	return cmd, nil
}

// EncodeLine marshals v and appends the line-protocol newline terminator.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode line: %w", err)
	}
	return append(data, '\n'), nil
}
