package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/diceraja/internal/config"
)

// HealthService exposes grpc.health.v1.Health. It reports NOT_SERVING until
// SetServing(true) is called.
type HealthService struct {
	cfg    config.HealthConfig
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthService creates the gRPC health endpoint.
//
// Precondition: logger must be non-nil.
func NewHealthService(cfg config.HealthConfig, logger *zap.Logger) *HealthService {
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return &HealthService{cfg: cfg, logger: logger, grpc: gs, health: hs}
}

// Start listens and serves until Stop is called.
func (h *HealthService) Start() error {
	start := time.Now()
	lis, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.cfg.Addr(), err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.logger.Info("gRPC health listening",
		zap.String("addr", lis.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)
	return h.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops the server.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

// SetServing flips the overall serving status.
func (h *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.logger.Info("health status changed", zap.String("status", status.String()))
}

// Addr returns the listening address, or "" before Start.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
