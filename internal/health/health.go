// Package health provides the operational HTTP endpoints.
//
// Docker and Kubernetes use /healthz and /readyz to monitor the daemon.
// /readyz also reports the number of active calls. Prometheus scrapes
// /metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is a lightweight HTTP server for liveness, readiness and metrics.
type Server struct {
	port     int
	ready    atomic.Bool
	gatherer prometheus.Gatherer
	sessions func() int
	server   *http.Server
}

// New creates a new health check server. gatherer may be nil to omit
// /metrics; sessions may be nil to omit the active call count.
func New(port int, gatherer prometheus.Gatherer, sessions func() int) *Server {
	s := &Server{port: port, gatherer: gatherer, sessions: sessions}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
			return
		}
		body := map[string]any{"status": "ok"}
		if s.sessions != nil {
			body["active_calls"] = s.sessions()
		}
		writeJSON(w, http.StatusOK, body)
	})

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	slog.Info("health server listening", "port", s.port)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Close shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
