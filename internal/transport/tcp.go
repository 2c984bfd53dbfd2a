// Package transport carries upstream node messages and downstream inhibit
// commands between nodes and the gateway (spec §6). Two implementations
// share the same Sender/Gateway-facing shapes: Server (line-delimited JSON
// over TCP, one goroutine per connection) and the in-process bus in
// inproc.go. Both satisfy gateway.Broadcaster.
//
// The TCP framing and connection-bookkeeping style is grounded on
// operator.Server: a bounded-concurrency accept loop, per-connection
// goroutines, and a semaphore guarding a configurable connection cap —
// generalized here from a 4-connection operator control socket to a
// fleet-sized node population.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/protocol"
)

// Handler is invoked once per successfully decoded upstream message. It is
// the gateway's Ingest method in production wiring.
type Handler func(protocol.Upstream)

// ConnMetricsSink receives the transport's connection-lifecycle and
// malformed-input observations. Nil is valid — a Server with no sink
// simply doesn't record them.
type ConnMetricsSink interface {
	SetConnectedNodes(n int)
	IncBroadcastFailures()
	RecordDropped(reason string)
}

// Server is the gateway-side TCP listener: nodes dial in, send
// line-delimited Upstream JSON, and receive line-delimited InhibitCommand
// JSON broadcast back whenever the aggregator fires.
type Server struct {
	addr      string
	maxConns  int
	onMessage Handler
	log       *zap.Logger
	metrics   ConnMetricsSink

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	sem   chan struct{}
}

// NewServer creates a Server. maxConns > 0 caps concurrent connections with
// a semaphore of that size; maxConns <= 0 means unbounded (no semaphore).
func NewServer(addr string, maxConns int, onMessage Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	var sem chan struct{}
	if maxConns > 0 {
		sem = make(chan struct{}, maxConns)
	}
	return &Server{
		addr:      addr,
		maxConns:  maxConns,
		onMessage: onMessage,
		log:       log,
		conns:     make(map[net.Conn]struct{}),
		sem:       sem,
	}
}

// SetMetrics wires the ambient Prometheus sink. Optional.
func (s *Server) SetMetrics(m ConnMetricsSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// ListenAndServe accepts connections until ctx is cancelled. Blocks.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: listen %q: %w", s.addr, err)
	}
	defer lis.Close()

	s.log.Info("gateway transport listening", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn("transport: accept error", zap.Error(err))
				continue
			}
		}

		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
			default:
				s.log.Warn("transport: max connections reached, rejecting", zap.String("remote", conn.RemoteAddr().String()))
				_ = conn.Close()
				continue
			}
		}

		s.track(conn)
		go func(c net.Conn) {
			defer s.untrack(c)
			if s.sem != nil {
				defer func() { <-s.sem }()
			}
			s.handleConn(c)
		}(conn)
	}
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
	s.reportConnectedLocked()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
	s.reportConnectedLocked()
	_ = c.Close()
}

// reportConnectedLocked pushes the current connection count to the metrics
// sink. Caller must hold mu.
func (s *Server) reportConnectedLocked() {
	if s.metrics != nil {
		s.metrics.SetConnectedNodes(len(s.conns))
	}
}

// handleConn reads one upstream message per line until the peer closes the
// connection or the read fails. A decode error (including a
// missing "node" field) is logged and the line is skipped; it does not
// close the connection — one bad line from a node should not sever the
// whole stream.
func (s *Server) handleConn(conn net.Conn) {
	s.mu.Lock()
	metrics := s.metrics
	s.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		msg, err := protocol.DecodeUpstream(scanner.Bytes())
		if err != nil {
			s.log.Warn("transport: dropping malformed upstream message", zap.Error(err))
			if metrics != nil {
				reason := "malformed"
				if errors.Is(err, protocol.ErrMissingNode) {
					reason = "missing_node"
				}
				metrics.RecordDropped(reason)
			}
			continue
		}
		s.onMessage(msg)
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("transport: connection read ended", zap.Error(err))
	}
}

// BroadcastInhibit fans an InhibitCommand out to every connected node.
// Satisfies gateway.Broadcaster. A write failure on one connection is
// logged and that connection is dropped; it does not block delivery to
// the others.
func (s *Server) BroadcastInhibit(cmd protocol.InhibitCommand) {
	line, err := protocol.EncodeLine(cmd)
	if err != nil {
		s.log.Error("transport: encode inhibit command", zap.Error(err))
		return
	}

	s.mu.Lock()
	targets := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	metrics := s.metrics
	s.mu.Unlock()

	for _, c := range targets {
		if _, err := c.Write(line); err != nil {
			s.log.Warn("transport: broadcast write failed, dropping connection", zap.Error(err))
			if metrics != nil {
				metrics.IncBroadcastFailures()
			}
			s.untrack(c)
		}
	}
}

// Dial opens a node-side connection to a gateway Server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", addr, err)
	}
	return &Client{conn: conn, scanner: bufio.NewScanner(conn)}, nil
}

// Client is the node-side half of the TCP transport: it sends Upstream
// messages and can read InhibitCommand broadcasts pushed back by the
// gateway.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Send encodes and writes one upstream message.
func (c *Client) Send(msg protocol.Upstream) error {
	line, err := protocol.EncodeLine(msg)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(line)
	return err
}

// ReadInhibit blocks for the next inhibit command pushed by the gateway.
// Returns false once the connection is closed. Malformed lines are skipped.
func (c *Client) ReadInhibit() (protocol.InhibitCommand, bool) {
	for c.scanner.Scan() {
		cmd, err := protocol.DecodeInhibitCommand(c.scanner.Bytes())
		if err != nil {
			continue
		}
		return cmd, true
	}
	return protocol.InhibitCommand{}, false
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
