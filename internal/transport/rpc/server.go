// Package rpc exposes the product service over NATS request/reply.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abgdnv/products-ms/internal/service"
	"github.com/abgdnv/products-ms/pkg/config"
	"github.com/abgdnv/products-ms/pkg/logger"
	"github.com/abgdnv/products-ms/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// RequestIDHeader carries the caller's request id in both directions.
const RequestIDHeader = "X-Request-Id"

const tracerName = "github.com/abgdnv/products-ms/internal/transport/rpc"

const drainPollInterval = 10 * time.Millisecond

type handlerFunc func(ctx context.Context, data []byte) (any, error)

// Server dispatches NATS requests to the product service.
type Server struct {
	service  service.ProductService
	cfg      config.RPCConfig
	validate *validator.Validate
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	handlers map[string]handlerFunc
}

// NewServer creates a Server. metrics may be nil.
func NewServer(svc service.ProductService, cfg config.RPCConfig, m *metrics.Metrics, log *slog.Logger) *Server {
	s := &Server{
		service:  svc,
		cfg:      cfg,
		validate: newValidator(),
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		logger:   log.With("component", "rpc"),
	}
	s.handlers = map[string]handlerFunc{
		CmdCreateProduct:    s.createProduct,
		CmdFindAllProducts:  s.findAllProducts,
		CmdFindOneProduct:   s.findOneProduct,
		CmdUpdateProduct:    s.updateProduct,
		CmdDeleteProduct:    s.deleteProduct,
		CmdValidateProducts: s.validateProducts,
	}
	return s
}

// Subject returns the NATS subject of a command.
func Subject(prefix, cmd string) string {
	return prefix + "." + cmd
}

// Run subscribes every command in the configured queue group and processes requests with
// cfg.Workers goroutines until ctx is cancelled. On cancellation the subscriptions are drained
// and every request already accepted gets a reply before Run returns.
func (s *Server) Run(ctx context.Context, nc *nats.Conn) error {
	msgs := make(chan *nats.Msg, s.cfg.Buffer)
	subs := make([]*nats.Subscription, 0, len(s.handlers))
	unsubscribe := func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Warn("failed to unsubscribe", "subject", sub.Subject, "error", err)
			}
		}
	}
	for cmd := range s.handlers {
		subject := Subject(s.cfg.SubjectPrefix, cmd)
		sub, err := nc.ChanQueueSubscribe(subject, s.cfg.Queue, msgs)
		if err != nil {
			unsubscribe()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	if err := nc.Flush(); err != nil {
		unsubscribe()
		return fmt.Errorf("failed to flush subscriptions: %w", err)
	}
	s.logger.Info("RPC server listening", "prefix", s.cfg.SubjectPrefix, "queue", s.cfg.Queue, "workers", s.cfg.Workers)

	var g errgroup.Group
	for range s.cfg.Workers {
		g.Go(func() error {
			for msg := range msgs {
				s.handleMessage(msg)
			}
			return nil
		})
	}
	<-ctx.Done()
	s.logger.Info("RPC server draining", "buffered", len(msgs))
	s.drain(subs)
	close(msgs)
	return g.Wait()
}

// drain stops interest on every subscription and waits until NATS has delivered what it
// already received. Subscriptions still active after cfg.Timeout are unsubscribed.
func (s *Server) drain(subs []*nats.Subscription) {
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			s.logger.Warn("failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	for _, sub := range subs {
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(drainPollInterval)
		}
		if sub.IsValid() {
			s.logger.Warn("subscription not drained in time", "subject", sub.Subject)
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Warn("failed to unsubscribe", "subject", sub.Subject, "error", err)
			}
		}
	}
}

// handleMessage runs one request and sends the reply. The request context is detached from
// the server lifetime so that draining on shutdown still completes accepted requests.
func (s *Server) handleMessage(msg *nats.Msg) {
	reqID := msg.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	ctx = logger.WithRequestID(ctx, reqID)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply := s.Handle(ctx, msg.Subject, msg.Data)
	if msg.Reply == "" {
		s.logger.WarnContext(ctx, "request without reply subject dropped", "subject", msg.Subject)
		return
	}
	resp := nats.NewMsg(msg.Reply)
	resp.Header.Set(RequestIDHeader, reqID)
	resp.Data = reply
	if err := msg.RespondMsg(resp); err != nil {
		s.logger.ErrorContext(ctx, "failed to send reply", "subject", msg.Subject, "error", err)
	}
}

// Handle processes the payload of a request received on subject and returns the encoded Reply.
func (s *Server) Handle(ctx context.Context, subject string, data []byte) (reply []byte) {
	cmd := strings.TrimPrefix(subject, s.cfg.SubjectPrefix+".")
	ctx, span := s.tracer.Start(ctx, subject,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("rpc.method", cmd),
		))
	defer span.End()

	start := time.Now()
	status := http.StatusOK
	if s.metrics != nil {
		s.metrics.InFlight.Inc()
		defer func() {
			s.metrics.InFlight.Dec()
			s.metrics.Observe(cmd, strconv.Itoa(status), time.Since(start))
		}()
	}
	defer func() {
		if rvr := recover(); rvr != nil {
			s.logger.ErrorContext(ctx, "Panic recovered", "command", cmd, "panic", rvr)
			status = http.StatusInternalServerError
			span.SetStatus(otelcodes.Error, "panic")
			reply = s.encodeError(ctx, &Error{Status: status, Message: "Internal server error"})
		}
	}()

	s.logger.DebugContext(ctx, "Received request", "command", cmd, "bytes", len(data))
	result, err := s.dispatch(ctx, cmd, data)
	if err != nil {
		rpcErr := toError(err)
		status = rpcErr.Status
		if status >= http.StatusInternalServerError {
			s.logger.ErrorContext(ctx, "Request failed", "command", cmd, "error", err)
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, rpcErr.Message)
		} else {
			s.logger.WarnContext(ctx, "Request rejected", "command", cmd, "status", status, "error", err)
		}
		span.SetAttributes(attribute.Int("rpc.status", status))
		return s.encodeError(ctx, rpcErr)
	}

	data, err = json.Marshal(result)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error encoding reply", "command", cmd, "error", err)
		status = http.StatusInternalServerError
		return s.encodeError(ctx, &Error{Status: status, Message: "Internal server error"})
	}
	s.logger.DebugContext(ctx, "Request completed", "command", cmd, "duration_ms", float64(time.Since(start).Nanoseconds())/1e6)
	out, _ := json.Marshal(Reply{Data: data})
	return out
}

func (s *Server) encodeError(ctx context.Context, rpcErr *Error) []byte {
	out, err := json.Marshal(Reply{Error: rpcErr})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error encoding error reply", "error", err)
		return []byte(`{"error":{"status":500,"message":"Internal server error"}}`)
	}
	return out
}

func (s *Server) dispatch(ctx context.Context, cmd string, data []byte) (any, error) {
	h, ok := s.handlers[cmd]
	if !ok {
		return nil, badRequest("unknown command %q", cmd)
	}
	return h(ctx, data)
}

func (s *Server) createProduct(ctx context.Context, data []byte) (any, error) {
	var req createProductRequest
	if err := decode(s.validate, data, &req); err != nil {
		return nil, err
	}
	if err := checkPrice(req.Price); err != nil {
		return nil, err
	}
	created, err := s.service.Create(ctx, service.ProductCreateDto{Name: req.Name, Price: *req.Price})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Product created successfully", "ID", created.ID, "Name", created.Name)
	return created, nil
}

func (s *Server) findAllProducts(ctx context.Context, data []byte) (any, error) {
	req := paginationRequest{Page: defaultPage, Limit: defaultLimit}
	if err := decode(s.validate, data, &req); err != nil {
		return nil, err
	}
	return s.service.FindAll(ctx, service.PaginationDto{Page: req.Page, Limit: req.Limit})
}

func (s *Server) findOneProduct(ctx context.Context, data []byte) (any, error) {
	var req idRequest
	if err := decode(s.validate, data, &req); err != nil {
		return nil, err
	}
	return s.service.FindByID(ctx, *req.ID)
}

// updateProduct uses the payload id only to address the row; it never reaches the update itself.
func (s *Server) updateProduct(ctx context.Context, data []byte) (any, error) {
	var req updateProductRequest
	if err := decode(s.validate, data, &req); err != nil {
		return nil, err
	}
	if err := checkPrice(req.Price); err != nil {
		return nil, err
	}
	updated, err := s.service.Update(ctx, *req.ID, service.ProductUpdateDto{Name: req.Name, Price: req.Price})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Product updated successfully", "ID", updated.ID)
	return updated, nil
}

func (s *Server) deleteProduct(ctx context.Context, data []byte) (any, error) {
	var req idRequest
	if err := decode(s.validate, data, &req); err != nil {
		return nil, err
	}
	removed, err := s.service.Remove(ctx, *req.ID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Product removed successfully", "ID", removed.ID)
	return removed, nil
}

func (s *Server) validateProducts(ctx context.Context, data []byte) (any, error) {
	ids, err := decodeIDs(s.validate, data)
	if err != nil {
		return nil, err
	}
	return s.service.ValidateProducts(ctx, ids)
}
