// Package app wires the products service together.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/products-ms/internal/config"
	"github.com/abgdnv/products-ms/internal/service"
	"github.com/abgdnv/products-ms/internal/store"
	"github.com/abgdnv/products-ms/internal/transport/rest"
	"github.com/abgdnv/products-ms/internal/transport/rpc"
	"github.com/abgdnv/products-ms/pkg/metrics"
	"github.com/abgdnv/products-ms/pkg/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const metricsNamespace = "products"

type Dependencies struct {
	Store          store.ProductStore
	ProductService service.ProductService
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// SetupDependencies builds the store selected by configuration and the service on top of it.
// dbPool is only used for the postgres driver and may be nil otherwise.
func SetupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	var productStore store.ProductStore
	if cfg.Database.UsesMemory() {
		logger.Warn("Using in-memory product store, data will not survive a restart")
		productStore = store.NewInMemoryStore()
	} else {
		if dbPool == nil {
			return nil, fmt.Errorf("database pool is required for driver %q", cfg.Database.Driver)
		}
		productStore = store.NewPgStore(dbPool)
	}

	return &Dependencies{
		Store:          productStore,
		ProductService: service.NewService(productStore),
		Metrics:        metrics.New(metricsNamespace),
		Logger:         logger,
	}, nil
}

// SetupHttpHandler builds the operational router: health checks and metrics.
func SetupHttpHandler(deps *Dependencies, bus rest.Connection) http.Handler {
	mux := web.NewRouter(deps.Logger)
	rest.NewHandler(deps.Store, bus, deps.Metrics.Handler(), deps.Logger).RegisterRoutes(mux)
	return otelhttp.NewHandler(mux, "products-ops",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" }))
}

// SetupHttpServer creates the operational HTTP server.
func SetupHttpServer(deps *Dependencies, bus rest.Connection, cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPServer.Port),
		Handler:           SetupHttpHandler(deps, bus),
		ReadTimeout:       cfg.HTTPServer.Timeout.Read,
		WriteTimeout:      cfg.HTTPServer.Timeout.Write,
		IdleTimeout:       cfg.HTTPServer.Timeout.Idle,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.HTTPServer.MaxHeaderBytes,
	}
}

// SetupRPCServer creates the NATS request/reply server.
func SetupRPCServer(deps *Dependencies, cfg *config.Config) *rpc.Server {
	return rpc.NewServer(deps.ProductService, cfg.RPC, deps.Metrics, deps.Logger)
}

// SetupRPCClient creates a client for the service's own subjects, guarded by the configured circuit breaker.
func SetupRPCClient(nc *nats.Conn, cfg *config.Config) *rpc.Client {
	return rpc.NewClient(nc, cfg.RPC.SubjectPrefix, rpc.WithCircuitBreaker(cfg.CircuitBreaker))
}
