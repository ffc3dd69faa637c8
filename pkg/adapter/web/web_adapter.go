package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/internal/ratelimiter"
)

// HTTPConfig holds configuration parameters for the HTTP adapter.
//
// Default values (applied by New if zero):
//   - ReadTimeout: 5m
//   - WriteTimeout: 5m
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//
// Port 0 binds an ephemeral port; Port() reports it once Ready() is closed.
// Uploads stream through a single request, so read and write timeouts must
// cover the slowest expected upload.
type HTTPConfig struct {
	// Enabled controls whether the HTTP adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// ReadTimeout bounds reading a full request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is how long Stop waits for in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// RequestsPerSecond is the sustained request rate allowed per client
	// address. 0 disables rate limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the per-client bucket size. 0 means RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *HTTPConfig) applyDefaults() {
	// Enabled and Port defaults live in pkg/config so that explicit zero
	// values from configuration files survive.
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *HTTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts: must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// HTTPAdapter implements adapter.Adapter on top of net/http.
//
// Every request goes through, in order: request ID tagging, access logging,
// per-client rate limiting, then the Router which picks the first Handler
// whose CanHandle matches.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown closes the listener and idle connections
//  3. In-flight requests run to completion (up to ShutdownTimeout)
//  4. Serve returns once Shutdown has finished
//
// Thread safety:
// All methods are safe for concurrent use. Stop is idempotent.
type HTTPAdapter struct {
	config  HTTPConfig
	router  *Router
	limiter *ratelimiter.KeyedLimiter
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	stopping bool

	port  atomic.Int32
	ready chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

// New creates an HTTPAdapter serving the given handlers in dispatch order.
//
// Panics if config validation fails.
func New(config HTTPConfig, handlers ...Handler) *HTTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid HTTP config: %v", err))
	}

	a := &HTTPAdapter{
		config:  config,
		router:  NewRouter(handlers...),
		limiter: ratelimiter.NewKeyed(config.RequestsPerSecond, config.Burst, 0),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.port.Store(int32(config.Port))

	if a.limiter.Unlimited() {
		logger.Debug("HTTP rate limit: unlimited")
	} else {
		logger.Debug("HTTP rate limit: %d req/s per client (burst %d)",
			config.RequestsPerSecond, config.Burst)
	}

	a.handler = RequestIDMiddleware(
		LoggingMiddleware(
			RateLimitMiddleware(a.limiter)(a.router),
		),
	)
	return a
}

// Register adds a handler after those passed to New.
func (a *HTTPAdapter) Register(h Handler) {
	a.router.Register(h)
}

// Handler returns the full middleware chain. Useful with httptest.
func (a *HTTPAdapter) Handler() http.Handler {
	return a.handler
}

// Ready is closed once the listener is bound.
func (a *HTTPAdapter) Ready() <-chan struct{} {
	return a.ready
}

// Serve binds the listener and serves requests until ctx is cancelled or Stop
// is called.
//
// Returns:
//   - nil when stopped through Stop
//   - context.Canceled (or the ctx error) when stopped through ctx
//   - error if the listener cannot be bound or the server fails
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on port %d: %w", a.config.Port, err)
	}

	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	a.mu.Lock()
	if a.stopping {
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	a.server = srv
	a.mu.Unlock()

	if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
		a.port.Store(int32(tcp.Port))
	}
	close(a.ready)

	logger.Info("HTTP server listening on port %d", a.Port())
	logger.Debug("HTTP config: read_timeout=%v write_timeout=%v idle_timeout=%v handlers=%d",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout, a.router.Len())

	pruneCtx, cancelPrune := context.WithCancel(ctx)
	defer cancelPrune()
	go a.limiter.Run(pruneCtx, time.Minute)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("HTTP shutdown signal received: %v", ctx.Err())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
			defer cancel()
			_ = a.Stop(shutdownCtx)
		case <-a.done:
		}
	}()

	err = srv.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	<-a.done
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return a.shutdownErr
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		a.stopping = true
		srv := a.server
		a.mu.Unlock()

		if srv != nil {
			logger.Debug("HTTP shutdown initiated")
			if err := srv.Shutdown(ctx); err != nil {
				a.shutdownErr = fmt.Errorf("HTTP shutdown error: %w", err)
				logger.Warn("HTTP shutdown did not complete: %v", err)
			} else {
				logger.Info("HTTP server stopped gracefully")
			}
		}
		close(a.done)
	})
	return a.shutdownErr
}

// Protocol returns "HTTP".
func (a *HTTPAdapter) Protocol() string {
	return "HTTP"
}

// Port returns the bound port, or the configured one before Serve.
func (a *HTTPAdapter) Port() int {
	return int(a.port.Load())
}
