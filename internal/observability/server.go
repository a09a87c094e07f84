package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkaninda/mlinzi/internal/config"
)

// MetricsServer exposes the Prometheus registry over HTTP.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer builds the exposition server from config.
// Returns nil when metrics are disabled or no collector exists.
func NewMetricsServer(cfg *config.MetricsConfig, metrics *MetricsCollector, logger *slog.Logger) *MetricsServer {
	if cfg == nil || !cfg.Enabled || metrics == nil {
		return nil
	}

	addr := cfg.Addr
	if addr == "" {
		addr = ":9190"
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves metrics in a background goroutine and returns a stop function.
func (s *MetricsServer) Start(ctx context.Context) func() {
	if s == nil {
		return func() {}
	}

	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}
