// Package app contains the application setup for the inventory binary.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/stockroom/internal/config"
	"github.com/abgdnv/stockroom/internal/service"
	"github.com/abgdnv/stockroom/internal/store"
	grpcImpl "github.com/abgdnv/stockroom/internal/transport/grpc"
	"github.com/abgdnv/stockroom/internal/transport/rest"
	"github.com/abgdnv/stockroom/pkg/server"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Dependencies struct {
	InventoryService service.InventoryService
	Store            store.InventoryStore
	Logger           *slog.Logger
}

// SetupDependencies builds the store and the service on top of an open, migrated database.
func SetupDependencies(db *sqlx.DB, logger *slog.Logger, opts ...service.Option) *Dependencies {
	inventoryStore := store.NewSQLStore(db)
	return &Dependencies{
		InventoryService: service.NewService(inventoryStore, logger, opts...),
		Store:            inventoryStore,
		Logger:           logger,
	}
}

// SetupHttpHandler initializes the router, middleware and routes of the inventory API.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	rest.NewHandler(deps.InventoryService, deps.Store, deps.Logger).RegisterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	if cfg.Telemetry.Enabled {
		return otelhttp.NewHandler(mux, "inventory-http")
	}
	return mux
}

// SetupHttpServer creates and configures an HTTP server for the inventory API.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps, cfg))
}

// SetupGrpcServer initializes the gRPC server exposing the health protocol.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) *grpc.Server {
	health := grpcImpl.NewHealthServer(deps.Store, cfg.Database.Timeout, deps.Logger)
	return server.NewGRPCServer(deps.Logger, cfg.GRPC.ReflectionEnabled, func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, health)
	})
}
