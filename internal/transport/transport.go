// Package transport defines the interface for farmline's network listeners.
//
// The webhook is served over HTTP; a gRPC listener exposes the standard
// health service for orchestrators that probe over gRPC. main starts every
// enabled transport and closes them on shutdown.
package transport

import "context"

// Transport is the interface that every listener must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting connections. It blocks until the context is
	// cancelled or the listener fails.
	Listen(ctx context.Context) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
