package grpc

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const defaultProbeInterval = 10 * time.Second

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 for the storefront. The service named
// in the config turns NOT_SERVING while any probe fails.
type HealthServer struct {
	config *config.ServerConfig
	logger *zap.Logger
	health *health.Server
	srv    *grpc.Server
	probes map[string]Probe
}

func NewHealthServer(cfg *config.ServerConfig, logger *zap.Logger, probes map[string]Probe) *HealthServer {
	hs := &HealthServer{
		config: cfg,
		logger: logger,
		health: health.NewServer(),
		srv:    grpc.NewServer(),
		probes: probes,
	}
	healthpb.RegisterHealthServer(hs.srv, hs.health)
	reflection.Register(hs.srv)
	hs.health.SetServingStatus(cfg.Name, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

func (hs *HealthServer) Addr() string {
	return fmt.Sprintf("%s:%d", hs.config.Host, hs.config.Port)
}

// Start blocks serving gRPC until Stop is called.
func (hs *HealthServer) Start() error {
	lis, err := net.Listen("tcp", hs.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	hs.logger.Info("Health service started", zap.String("address", hs.Addr()))
	return hs.srv.Serve(lis)
}

// Run probes once immediately, then every probe interval until ctx ends.
func (hs *HealthServer) Run(ctx context.Context) {
	interval := hs.config.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hs.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.Check(ctx)
		}
	}
}

// Check runs every probe and publishes the resulting status.
func (hs *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	names := make([]string, 0, len(hs.probes))
	for name := range hs.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := hs.probes[name](pctx)
		cancel()
		if err != nil {
			hs.logger.Warn("Health probe failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.health.SetServingStatus(hs.config.Name, status)
	hs.health.SetServingStatus("", status)
	return status
}

func (hs *HealthServer) Stop() {
	hs.health.Shutdown()
	hs.srv.GracefulStop()
}
