package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextHandler_Handle(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	testCases := []struct {
		name          string
		ctx           context.Context
		expectTrace   bool
		expectRequest bool
	}{
		{name: "empty context", ctx: context.Background()},
		{name: "request id only", ctx: WithRequestID(context.Background(), "abc"), expectRequest: true},
		{
			name:          "trace and request id",
			ctx:           trace.ContextWithSpanContext(WithRequestID(context.Background(), "abc"), spanCtx),
			expectTrace:   true,
			expectRequest: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "test")

			// when
			log.InfoContext(tc.ctx, "hello")

			// then
			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			assert.Equal(t, "test", record["component"])
			if tc.expectTrace {
				assert.Equal(t, traceID.String(), record["trace_id"])
			} else {
				assert.NotContains(t, record, "trace_id")
			}
			if tc.expectRequest {
				assert.Equal(t, "abc", record["request_id"])
			} else {
				assert.NotContains(t, record, "request_id")
			}
		})
	}
}

func TestRequestID_Missing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}
