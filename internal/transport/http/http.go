// Package http implements the HTTP transport for farmline.
//
// It serves the telephony webhook at the configured path and the Swagger UI
// under /swagger/.
//
// @title       Farmline API
// @version     1.0
// @description Phone helpline webhook for farmers: speech in, synthesized answers out, SMS summary on hang-up.
// @BasePath    /
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/farmline/docs"
	"github.com/nadzzz/farmline/internal/config"
)

// defaultDrainTimeout bounds shutdown when no drain timeout is configured.
const defaultDrainTimeout = 5 * time.Second

// Transport serves the webhook over HTTP.
type Transport struct {
	port    int
	path    string
	webhook http.Handler
	drain   time.Duration
	server  *http.Server
}

// Option customizes a Transport.
type Option func(*Transport)

// WithDrainTimeout sets how long shutdown waits for in-flight requests.
// A hang-up request can run its summary and SMS calls back to back, so the
// drain should cover both.
func WithDrainTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.drain = d
		}
	}
}

// New creates a new HTTP transport that mounts webhook at cfg.Path.
func New(cfg config.HTTPConfig, webhook http.Handler, opts ...Option) *Transport {
	t := &Transport{port: cfg.Port, path: cfg.Path, webhook: webhook, drain: defaultDrainTimeout}
	for _, opt := range opts {
		opt(t)
	}
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// DrainTimeout reports how long shutdown waits for in-flight requests.
func (t *Transport) DrainTimeout() time.Duration { return t.drain }

// Handler returns the routed handler without starting a server.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()

	// The webhook answers GET, POST and OPTIONS itself.
	mux.Handle(t.path, t.webhook)

	// Swagger UI for the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server. It blocks until the context is cancelled
// or Close is called.
func (t *Transport) Listen(ctx context.Context) error {
	slog.Info("http transport listening", "port", t.port, "path", t.path)

	stop := context.AfterFunc(ctx, func() {
		slog.Info("http transport shutting down", "drain", t.drain)
		_ = t.Close()
	})
	defer stop()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server, waiting up to the drain
// timeout for in-flight requests.
func (t *Transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.drain)
	defer cancel()
	return t.server.Shutdown(ctx)
}
