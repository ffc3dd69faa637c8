package adapter

import (
	"context"
)

// Adapter is a network listener whose lifecycle is managed by the server.
//
// fseditor runs two adapters: the HTTP adapter hosting the file editor and,
// when enabled, the metrics adapter exposing /metrics on its own port.
//
// Lifecycle:
//  1. Creation: Adapter is created with its own configuration and handlers
//  2. Startup: Serve() opens the listener and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the listener and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for in-flight requests to complete (with timeout)
	//   - Return context.Canceled or nil
	//
	// If Serve returns before context cancellation, the server treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	Stop(ctx context.Context) error

	// Protocol returns the human-readable name used in logs ("HTTP", "metrics").
	// The value is constant for the lifecycle of the adapter.
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	//
	// When configured with port 0, returns 0 until Serve() has bound the
	// listener and the kernel-assigned port afterwards.
	Port() int
}
