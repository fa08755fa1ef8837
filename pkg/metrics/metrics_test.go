package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	// given
	m := New("products")

	// when
	m.Observe("find_one_product", "200", 10*time.Millisecond)
	m.Observe("find_one_product", "404", time.Millisecond)
	m.Observe("find_one_product", "404", time.Millisecond)

	// then
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("find_one_product", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("find_one_product", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestMetrics_Handler(t *testing.T) {
	// given
	m := New("products")
	m.Observe("create_product", "200", time.Millisecond)
	rec := httptest.NewRecorder()

	// when
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// then
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `products_rpc_requests_total{command="create_product",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
