// Package monitor exposes the engine's runtime statistics over HTTP: a
// Prometheus /metrics endpoint for the OTel bridge and a /ws WebSocket
// stream that pushes a JSON stats snapshot once per second.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiomesh/audiomesh/internal/render"
)

// defaultInterval is the push interval for WebSocket subscribers.
const defaultInterval = time.Second

// StatsSource provides point-in-time engine statistics. Stats must be safe
// to call from any goroutine.
type StatsSource interface {
	Stats() render.Stats
}

// Server is the monitor HTTP server.
type Server struct {
	addr     string
	src      StatsSource
	interval time.Duration
}

// New creates a monitor server listening on addr.
func New(addr string, src StatsSource) *Server {
	return &Server{addr: addr, src: src, interval: defaultInterval}
}

// Handler returns the monitor's HTTP handler: /metrics for Prometheus
// scrapes and /ws for the live stats stream. Exposed separately from Run so
// tests can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully. A closed
// server is a clean exit, not an error.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("monitor listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serveWS upgrades the connection and pushes stats snapshots until the
// subscriber disconnects or the server shuts down.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("monitor: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "server closing")

	ctx := r.Context()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Push an immediate first snapshot so subscribers see state without
	// waiting out the interval.
	for {
		if err := wsjson.Write(ctx, conn, s.src.Stats()); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
