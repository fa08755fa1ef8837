package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/products-ms/internal/service"
	"github.com/abgdnv/products-ms/pkg/config"
	"github.com/abgdnv/products-ms/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Client calls the product service over NATS. Failures reported by the service are returned as *Error.
type Client struct {
	nc      *nats.Conn
	prefix  string
	breaker *gobreaker.CircuitBreaker[struct{}]
}

type ClientOption func(*Client)

// WithCircuitBreaker makes the client fail fast while the service keeps timing out or failing.
// Rejected and not-found requests do not count as failures.
func WithCircuitBreaker(cfg config.CircuitBreakerConfig) ClientOption {
	return func(c *Client) {
		if cfg.Enabled {
			c.breaker = newBreaker(c.prefix, cfg)
		}
	}
}

// NewClient creates a Client for services listening under subjectPrefix.
func NewClient(nc *nats.Conn, subjectPrefix string, opts ...ClientOption) *Client {
	c := &Client{nc: nc, prefix: subjectPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name + "-cb",
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: isSystemHealthy,
	})
}

// isSystemHealthy reports whether err leaves the remote service looking healthy.
func isSystemHealthy(err error) bool {
	if err == nil {
		return true
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Status < http.StatusInternalServerError
	}
	return false
}

func (c *Client) Create(ctx context.Context, name string, price decimal.Decimal) (*service.ProductDto, error) {
	var out service.ProductDto
	if err := c.call(ctx, CmdCreateProduct, createProductRequest{Name: name, Price: &price}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FindAll(ctx context.Context, page, limit int32) (*service.PagedProducts, error) {
	var out service.PagedProducts
	if err := c.call(ctx, CmdFindAllProducts, paginationRequest{Page: page, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FindOne(ctx context.Context, id int64) (*service.ProductDto, error) {
	var out service.ProductDto
	if err := c.call(ctx, CmdFindOneProduct, idRequest{ID: &id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sends the fields as-is, so callers may include keys the service ignores.
func (c *Client) Update(ctx context.Context, id int64, fields map[string]any) (*service.ProductDto, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["id"] = id
	var out service.ProductDto
	if err := c.call(ctx, CmdUpdateProduct, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Remove(ctx context.Context, id int64) (*service.ProductDto, error) {
	var out service.ProductDto
	if err := c.call(ctx, CmdDeleteProduct, idRequest{ID: &id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Validate(ctx context.Context, ids []int64) ([]service.ProductDto, error) {
	var out []service.ProductDto
	if err := c.call(ctx, CmdValidateProducts, ids, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HasCircuitBreaker reports whether calls go through a circuit breaker.
func (c *Client) HasCircuitBreaker() bool {
	return c.breaker != nil
}

func (c *Client) call(ctx context.Context, cmd string, req, out any) error {
	if c.breaker == nil {
		return c.roundTrip(ctx, cmd, req, out)
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, cmd, req, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, cmd string, req, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", cmd, err)
	}
	msg := nats.NewMsg(Subject(c.prefix, cmd))
	msg.Data = payload
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(RequestIDHeader, reqID)
	}

	resp, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", cmd, err)
	}
	var reply Reply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", cmd, err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", cmd, err)
	}
	return nil
}
