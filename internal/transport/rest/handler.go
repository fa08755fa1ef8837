// Package rest provides the operational HTTP endpoints of the products service.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/abgdnv/products-ms/pkg/web"
	"github.com/go-chi/chi/v5"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether the product store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connection reports the state of the message bus connection. *nats.Conn satisfies it.
type Connection interface {
	IsConnected() bool
}

type Handler struct {
	store   Pinger
	bus     Connection
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil, in which case /metrics is not registered.
func NewHandler(store Pinger, bus Connection, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		bus:     bus,
		metrics: metrics,
		logger:  logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the health check and metrics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadinessCheck)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
}

// HealthCheck is a simple liveness endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadinessCheck reports 503 until both the store and the message bus are usable.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := map[string]string{"store": "ok", "nats": "ok"}
	ready := true
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Store is not ready", "error", err)
		status["store"] = "unavailable"
		ready = false
	}
	if h.bus == nil || !h.bus.IsConnected() {
		h.logger.WarnContext(ctx, "NATS connection is not ready")
		status["nats"] = "unavailable"
		ready = false
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	web.RespondJSON(w, h.logger, code, status)
}
