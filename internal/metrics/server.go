// Package metrics serves the progress Prometheus registry over HTTP.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics, /healthz and the renderer state endpoints for the
// lifetime of a command.
type Server struct {
	srv    *http.Server
	router chi.Router
	logger *zap.Logger
	done   chan struct{}
}

// NewServer builds a Server for reg listening on addr. Request metrics for the
// server itself are registered on reg. A nil source makes the /renderers
// endpoints answer 503.
func NewServer(addr string, reg *prometheus.Registry, source StateSource, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpMetrics, err := NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			logger.Warn("healthz write failed", zap.Error(err))
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	progressHandler := NewProgressHandler(source, logger)
	r.Route("/renderers", func(r chi.Router) {
		r.Get("/", progressHandler.ListRenderers)
		r.Get("/{renderer_id}", progressHandler.GetRenderer)
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		router: r,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Handler returns the router for use in tests or another http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. The returned
// address is the bound one, which differs from the configured address when
// it used port 0.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		defer close(s.done)
		s.logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown stops the server and waits for the serve goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("metrics server shutdown wait: %w", ctx.Err())
	}
}
