package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/speadcap/internal/log"
)

// Server is the HTTP server for Prometheus metrics.
type Server struct {
	addr   string
	path   string
	server *http.Server
	ln     net.Listener
}

// NewServer creates a new metrics server.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen failed: %w", err)
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.GetLogger().WithField("addr", ln.Addr().String()).WithField("path", s.path).Info("starting metrics server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.GetLogger().WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	log.GetLogger().Info("metrics server stopped")
	return nil
}
