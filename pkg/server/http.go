package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

// serveHTTP exposes the MCP server over streamable HTTP at /mcp, with
// health and metrics endpoints alongside. JWT validation applies only
// to the MCP endpoint; health and metrics stay open for probes and
// scrapers.
func (s *Server) serveHTTP(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(observability.HTTPMiddleware(s.obs.GetTracer(serverName), s.obs.GetMetrics()))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if s.cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	var mcpHandler http.Handler = mcpserver.NewStreamableHTTPServer(s.mcp)
	if s.validator != nil {
		mcpHandler = s.validator.HTTPMiddleware(mcpHandler)
	}
	r.Mount("/mcp", mcpHandler)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Get().Info("starting MCP server on http",
		"addr", addr,
		"auth_enabled", s.validator != nil,
		"metrics_enabled", s.cfg.Observability.MetricsEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Get().Info("MCP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	}
}
