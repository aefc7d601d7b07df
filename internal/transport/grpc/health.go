// Package grpc serves the standard gRPC health protocol for the inventory core.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// InventoryServiceName is the service name reported by the health server besides "".
const InventoryServiceName = "stockroom.inventory.v1.Inventory"

// Pinger reports whether the storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	// Embed the unimplemented server for forward compatibility
	healthpb.UnimplementedHealthServer
	pinger  Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthServer creates a health server that pings storage within timeout on every check.
func NewHealthServer(pinger Pinger, timeout time.Duration, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		pinger:  pinger,
		timeout: timeout,
		logger:  logger.With("component", "grpc-health"),
	}
}

// Check answers SERVING while storage responds and NOT_SERVING otherwise.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", InventoryServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pinger.Ping(pingCtx); err != nil {
		s.logger.WarnContext(ctx, "Storage ping failed", "error", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
