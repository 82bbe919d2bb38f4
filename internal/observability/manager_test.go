package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
)

func TestPrometheusMetrics(t *testing.T) {
	var cfg config.Config
	cfg.Observability.ServiceName = "cannadmin-test"
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "prometheus"

	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())

	meter := mgr.MeterProvider().Meter("test")
	hist, err := meter.Float64Histogram("pos.checkout.duration", metric.WithUnit("s"))
	require.NoError(t, err)
	hist.Record(context.Background(), 0.2, metric.WithAttributes(attribute.String("path", "atomic")))

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "pos_checkout_duration")
	assert.Contains(t, string(body), `le="0.25"`)
	assert.Contains(t, string(body), "go_goroutines")

	lc.RequireStart().RequireStop()
}

func TestDisabled(t *testing.T) {
	mgr, err := NewManager(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.Nil(t, mgr.MeterProvider())
}
