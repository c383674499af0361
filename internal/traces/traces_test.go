package traces

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordTo installs a provider built by newProvider that records every ended
// span, restoring the previous globals on cleanup.
func recordTo(t *testing.T, ratio float64) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := newProvider(Config{SampleRatio: ratio}, resource.Empty(), sdktrace.WithSpanProcessor(rec))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func attrs(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestInit_NoEndpointInstallsPropagatorOnly(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	shutdown, err := Init(context.Background(), Config{}, slog.Default())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{Version: "1.2.0", Environment: "staging"})
	require.NoError(t, err)

	got := attrs(res.Attributes())
	assert.Equal(t, "moodguard", got["service.name"].AsString())
	assert.Equal(t, "1.2.0", got["service.version"].AsString())
	assert.Equal(t, "staging", got["deployment.environment"].AsString())

	res, err = newResource(context.Background(), Config{ServiceName: "moodguard-canary"})
	require.NoError(t, err)
	got = attrs(res.Attributes())
	assert.Equal(t, "moodguard-canary", got["service.name"].AsString())
	assert.NotContains(t, got, "deployment.environment")
}

func TestRootSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), rootSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), rootSampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), rootSampler(0.25).Description())
}

func TestStartSpan_RecordsAttributes(t *testing.T) {
	rec := recordTo(t, 1)

	_, span := StartSpan(context.Background(), "risk.Analyze", UserID("u1"), RiskLevel("high"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "risk.Analyze", ended[0].Name())
	got := attrs(ended[0].Attributes())
	assert.Equal(t, "u1", got["moodguard.user_id"].AsString())
	assert.Equal(t, "high", got["moodguard.risk_level"].AsString())
}

func TestStartSpan_ZeroRatioDropsRootSpans(t *testing.T) {
	rec := recordTo(t, 0)

	_, span := StartSpan(context.Background(), "alertgate.MarkShown")
	span.End()

	assert.False(t, span.SpanContext().IsSampled())
	assert.Empty(t, rec.Ended())
}

func TestFail(t *testing.T) {
	rec := recordTo(t, 1)

	_, span := StartSpan(context.Background(), "risk.Analyze")
	Fail(span, errors.New("connection refused"), "data_unavailable")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "data_unavailable", ended[0].Status().Description)
	assert.Equal(t, "data_unavailable", attrs(ended[0].Attributes())["moodguard.failure_reason"].AsString())
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	rec := recordTo(t, 0)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/risk/analyze", func(c *gin.Context) {
		_, span := StartSpan(c.Request.Context(), "risk.Analyze")
		span.End()
		c.Status(http.StatusServiceUnavailable)
	})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/v1/risk/analyze", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	ended := rec.Ended()
	require.Len(t, ended, 2, "sampled parent overrides the zero ratio")
	server := ended[1]
	assert.Equal(t, "GET /v1/risk/analyze", server.Name())
	assert.Equal(t, traceID, server.SpanContext().TraceID().String())
	assert.Equal(t, server.SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, codes.Error, server.Status().Code)
	got := attrs(server.Attributes())
	assert.Equal(t, int64(http.StatusServiceUnavailable), got["http.response.status_code"].AsInt64())
	assert.Equal(t, "/v1/risk/analyze", got["http.route"].AsString())
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	rec := recordTo(t, 1)

	r := gin.New()
	r.Use(Middleware())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/u-123", nil))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET unmatched", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}
