// Package http serves diagnostics for long or repeated runs: health
// endpoints and Prometheus metrics for the playlist flows.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blendr/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

type Metrics struct {
	FlowsTotal     *prometheus.CounterVec
	FlowDuration   *prometheus.HistogramVec
	PlaylistTracks prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FlowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blendr_flows_total",
				Help: "Total number of playlist flows run",
			},
			[]string{"command", "status"},
		),
		FlowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blendr_flow_duration_seconds",
				Help:    "Time spent running playlist flows",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		PlaylistTracks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blendr_last_playlist_tracks",
				Help: "Track count of the last synthesized playlist",
			},
		),
	}
}

func setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"blendr"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"blendr"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func createHTTPServer(config *core.ServerConfig, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := newMetrics()

	prometheus.MustRegister(
		metrics.FlowsTotal,
		metrics.FlowDuration,
		metrics.PlaylistTracks,
	)

	return &Server{
		config:  config,
		logger:  logger,
		server:  createHTTPServer(config, setupRoutes()),
		metrics: metrics,
	}
}

// Start serves until the context is canceled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Diagnostics server listening", zap.String("addr", s.config.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ObserveFlow records the outcome and duration of one flow run.
func (s *Server) ObserveFlow(command core.Command, status string, elapsed time.Duration) {
	s.metrics.FlowsTotal.WithLabelValues(command.String(), status).Inc()
	s.metrics.FlowDuration.WithLabelValues(command.String()).Observe(elapsed.Seconds())
}

// SetLastPlaylistSize publishes the size of the last built playlist.
func (s *Server) SetLastPlaylistSize(n int) {
	s.metrics.PlaylistTracks.Set(float64(n))
}
