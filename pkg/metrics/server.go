package metrics

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes Prometheus metrics over HTTP on its own port.
//
// It implements adapter.Adapter so the server lifecycle starts and stops it
// alongside the editor:
//   - GET /metrics: Prometheus metrics in text or OpenMetrics format
//   - GET /: plain text pointer to /metrics
type Server struct {
	server *http.Server
	port   atomic.Int32
	ready  chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. 0 binds an ephemeral port.
	Port int

	// Gatherer is the registry to expose. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates a metrics server in a stopped state.
func NewServer(config ServerConfig) *Server {
	gatherer := config.Gatherer
	if gatherer == nil && IsEnabled() {
		gatherer = GetRegistry()
	}

	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "fseditor metrics: scrape /metrics\n")
	})

	s := &Server{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.port.Store(int32(config.Port))
	return s
}

// Handler returns the server mux. Useful with httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens on the configured port and blocks until the context is
// cancelled or Stop is called.
//
// Returns:
//   - nil after Stop
//   - the context error after cancellation
//   - error if the listener cannot be bound
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port()))
	if err != nil {
		return fmt.Errorf("failed to create metrics listener on port %d: %w", s.Port(), err)
	}
	if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcp.Port))
	}
	close(s.ready)

	logger.Info("Metrics server listening on port %d", s.Port())
	logger.Debug("Metrics endpoint available at http://localhost:%d/metrics", s.Port())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Metrics server shutdown signal received")
			// The cancelled ctx would abort Shutdown immediately.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Stop(shutdownCtx)
		case <-s.done:
		}
	}()

	if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	<-s.done
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.shutdownErr
}

// Stop gracefully shuts the metrics server down. Safe to call multiple times
// and concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		logger.Debug("Metrics server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
		} else {
			logger.Info("Metrics server stopped gracefully")
		}
		close(s.done)
	})
	return s.shutdownErr
}

// Protocol returns "metrics".
func (s *Server) Protocol() string {
	return "metrics"
}

// Port returns the bound port, or the configured one before Serve.
func (s *Server) Port() int {
	return int(s.port.Load())
}
