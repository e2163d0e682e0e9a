package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soltrace/soltrace/service/config"
	"github.com/soltrace/soltrace/service/db"
	"github.com/soltrace/soltrace/service/metrics"
	"github.com/soltrace/soltrace/service/temporal"
)

// ScanTrigger starts a one-off wallet scan and waits for its result.
// *temporal.Client satisfies this; tests substitute a mock.
type ScanTrigger interface {
	TriggerWalletScan(ctx context.Context, address string, limit int) (*temporal.ScanWalletResult, error)
}

// Server represents the HTTP server for the wallet service.
type Server struct {
	addr      string
	cfg       *config.Config
	store     *db.Store
	scheduler temporal.Scheduler
	trigger   ScanTrigger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The scheduler is used to create/delete Temporal schedules for wallet scanning.
// The trigger is used for starting one-off scan workflows; if nil, the manual
// scan endpoint returns 503.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, store *db.Store, scheduler temporal.Scheduler, trigger ScanTrigger, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		store:     store,
		scheduler: scheduler,
		trigger:   trigger,
		metrics:   m,
		logger:    logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Wallet registration routes
	mux.Handle("POST /api/v1/wallets", s.withMetrics("/api/v1/wallets",
		handleRegisterWallet(s.store, s.scheduler, s.cfg, s.logger)))
	mux.Handle("DELETE /api/v1/wallets/{address}", s.withMetrics("/api/v1/wallets/{address}",
		handleUnregisterWallet(s.store, s.scheduler, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}", s.withMetrics("/api/v1/wallets/{address}",
		handleGetWallet(s.store, s.logger)))
	mux.Handle("GET /api/v1/wallets", s.withMetrics("/api/v1/wallets",
		handleListWallets(s.store, s.logger)))

	// Scan and reporting routes
	mux.Handle("POST /api/v1/wallets/{address}/scan", s.withMetrics("/api/v1/wallets/{address}/scan",
		handleScanWallet(s.store, s.trigger, s.cfg, s.metrics, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}/transactions", s.withMetrics("/api/v1/wallets/{address}/transactions",
		handleListTransactions(s.store, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}/summary", s.withMetrics("/api/v1/wallets/{address}/summary",
		handleWalletSummary(s.store, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}/export", s.withMetrics("/api/v1/wallets/{address}/export",
		handleExportCSV(s.store, s.logger)))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withMetrics(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
