package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haloview/mfa-incident-backend/internal/infrastructure/config"
)

// Server hosts the invocation surface: the ingest endpoint, the manual
// resolution trigger, incident reads, health and metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the HTTP server around the given handlers.
func NewServer(cfg *config.ServerConfig, handlers *Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := Chain(mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(logger),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully
// within the given timeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}
