package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/products-ms/internal/config"
	"github.com/abgdnv/products-ms/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type connected bool

func (c connected) IsConnected() bool {
	return bool(c)
}

func testConfig(driver string) *config.Config {
	cfg := &config.Config{}
	cfg.Database.Driver = driver
	cfg.HTTPServer.Port = 8081
	cfg.HTTPServer.Timeout.Read = time.Second
	cfg.RPC.SubjectPrefix = "products"
	cfg.RPC.Queue = "products-ms"
	cfg.RPC.Workers = 1
	cfg.RPC.Buffer = 1
	cfg.RPC.Timeout = time.Second
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetupDependencies_Memory(t *testing.T) {
	deps, err := SetupDependencies(nil, testConfig("memory"), testLogger())

	require.NoError(t, err)
	assert.IsType(t, &store.InMemoryStore{}, deps.Store)
	assert.NotNil(t, deps.ProductService)
	assert.NotNil(t, deps.Metrics)
}

func TestSetupDependencies_PostgresRequiresPool(t *testing.T) {
	_, err := SetupDependencies(nil, testConfig("postgres"), testLogger())

	assert.Error(t, err)
}

func TestSetupHttpServer(t *testing.T) {
	// given
	cfg := testConfig("memory")
	deps, err := SetupDependencies(nil, cfg, testLogger())
	require.NoError(t, err)

	// when
	srv := SetupHttpServer(deps, connected(true), cfg)

	// then
	assert.Equal(t, ":8081", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	for path, code := range map[string]int{"/healthz": http.StatusOK, "/readyz": http.StatusOK, "/metrics": http.StatusOK, "/unknown": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}
}

func TestSetupHttpHandler_NotReadyWithoutNATS(t *testing.T) {
	deps, err := SetupDependencies(nil, testConfig("memory"), testLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SetupHttpHandler(deps, connected(false)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSetupRPCServer(t *testing.T) {
	cfg := testConfig("memory")
	deps, err := SetupDependencies(nil, cfg, testLogger())
	require.NoError(t, err)

	server := SetupRPCServer(deps, cfg)

	reply := server.Handle(t.Context(), "products.find_all_products", nil)
	assert.JSONEq(t, `{"data":{"data":[],"metadata":{"total":0,"page":1,"lastPage":0}}}`, string(reply))
}

func TestSetupRPCClient(t *testing.T) {
	t.Run("breaker from configuration", func(t *testing.T) {
		cfg := testConfig("memory")
		cfg.CircuitBreaker.Enabled = true
		cfg.CircuitBreaker.ConsecutiveFailures = 3
		cfg.CircuitBreaker.OpenTimeout = time.Second

		client := SetupRPCClient(nil, cfg)

		require.NotNil(t, client)
		assert.True(t, client.HasCircuitBreaker())
	})

	t.Run("breaker disabled", func(t *testing.T) {
		client := SetupRPCClient(nil, testConfig("memory"))

		assert.False(t, client.HasCircuitBreaker())
	})
}
