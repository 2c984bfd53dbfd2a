// Package httpapi serves the domain-mandated HTTP surface (spec §4.4.4):
// a JSON metrics snapshot a dashboard polls. The HTML/JS dashboard itself
// is an explicit Non-goal ("external collaborators, specified only by the
// interfaces they consume/expose"); the handler here is the thin
// "request -> snapshot" adapter spec.md calls out, plus a minimal static
// index page so the endpoint is reachable without a separate dashboard
// build.
//
// Grounded on observability.ServeMetrics's mux/http.Server/graceful
// shutdown shape, generalized from Prometheus text exposition to a single
// JSON snapshot endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/edgelif/internal/gateway"
)

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>edgelif</title></head>
<body>
<h1>edgelif gateway</h1>
<p>Live metrics: <a href="/metrics">/metrics</a></p>
</body>
</html>
`

// SnapshotSource is the one method the HTTP layer needs from the gateway.
type SnapshotSource interface {
	SnapshotMetrics() gateway.Snapshot
}

// Server is the domain HTTP surface: GET / (dashboard stub) and GET
// /metrics (JSON snapshot).
type Server struct {
	addr   string
	source SnapshotSource
	log    *zap.Logger
}

// NewServer constructs a Server. source is typically the running
// *gateway.Gateway.
func NewServer(addr string, source SnapshotSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{addr: addr, source: source, log: log}
}

// ListenAndServe blocks until ctx is cancelled, serving the dashboard and
// metrics endpoints with a cooperative 0.5s shutdown bound (spec §5
// "Cancellation and timeouts").
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/metrics", s.handleMetrics)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("http api listening", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve %s: %w", s.addr, err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

// handleMetrics serves snapshot_metrics() as JSON (spec §4.4.4/§6). Guarded
// by a recover so any panic during assembly becomes the 500
// {"error": <message>} response spec §7 mandates rather than taking down
// the whole process — this is the closest Go analogue to "exception during
// /metrics assembly".
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("httpapi: panic assembling snapshot", zap.Any("recover", rec))
			writeError(w, fmt.Sprintf("%v", rec))
		}
	}()

	snap := s.source.SnapshotMetrics()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.log.Warn("httpapi: encode snapshot failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
