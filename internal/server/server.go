// Package server exposes the search engine over HTTP and a gRPC health
// endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/siri1404/NeuroRAG/internal/engine"
)

// Config holds the listener addresses and request limits.
type Config struct {
	Host     string
	Port     int
	GRPCPort int
	// RateLimit is requests per second across the HTTP API; zero disables
	// limiting.
	RateLimit float64
	RateBurst int
	// RequestTimeout bounds each HTTP request end to end.
	RequestTimeout time.Duration
}

// Server hosts the HTTP API and the gRPC health service.
type Server struct {
	engine *engine.Engine
	cfg    Config
	logger *zap.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
	healthSrv  *health.Server
	stopCh     chan struct{}
}

// NewServer wires the engine behind the API.
func NewServer(eng *engine.Engine, cfg Config, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine: eng,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Router builds the chi router with middleware and all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	if s.cfg.RateLimit > 0 {
		r.Use(s.rateLimiter())
	}

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/search/batch", s.handleBatchSearch)
	r.Post("/api/v1/vectors", s.handleAddVectors)
	r.Delete("/api/v1/vectors", s.handleRemoveVectors)
	r.Get("/api/v1/vectors/{id}/metadata", s.handleVectorMetadata)
	r.Post("/api/v1/index/compact", s.handleCompact)
	r.Post("/api/v1/index/save", s.handleSave)
	r.Post("/api/v1/index/import", s.handleImport)
	r.Post("/api/v1/index/export", s.handleExport)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves HTTP and gRPC until Stop. It blocks on the HTTP listener.
func (s *Server) Start() error {
	if s.cfg.GRPCPort > 0 {
		if err := s.startGRPC(); err != nil {
			return err
		}
	}
	go s.healthLoop()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) startGRPC() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	s.healthSrv = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthSrv)
	s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	s.logger.Info("grpc health server listening", zap.String("addr", addr))
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("grpc server stopped", zap.Error(err))
		}
	}()
	return nil
}

// healthLoop keeps the gRPC serving status in sync with engine health.
func (s *Server) healthLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.healthSrv == nil {
				continue
			}
			status := healthpb.HealthCheckResponse_SERVING
			if !s.engine.Healthy() {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			s.healthSrv.SetServingStatus("", status)
		}
	}
}

// Stop drains both listeners.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopCh)
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
