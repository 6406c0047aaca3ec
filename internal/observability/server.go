package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultMetricsAddr is used when MetricsServer is created without an address
const DefaultMetricsAddr = ":9090"

// MetricsServer is a dedicated listener for /metrics and /healthz, kept off
// the public API port.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a metrics listener for the given collectors
func NewMetricsServer(addr string, metrics *Metrics, logger *zap.Logger) (*MetricsServer, error) {
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the listen address
func (s *MetricsServer) Addr() string {
	return s.server.Addr
}

// Handler returns the metrics mux
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving metrics until Shutdown is called
func (s *MetricsServer) Start() error {
	s.logger.Info("metrics server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
