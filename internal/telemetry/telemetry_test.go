package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })
	return rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddlewareTagsRefund(t *testing.T) {
	rec := recordSpans(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TracingMiddleware())
	r.GET("/refunds/:id", func(c *gin.Context) { c.Status(http.StatusConflict) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refunds/42", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /refunds/:id", spans[0].Name())
	a := attrs(spans[0])
	assert.Equal(t, int64(42), a[RefundIDKey].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code, "client errors do not fail the span")
}

func TestStartSpanAndMarkFailed(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartSpan(context.Background(), "orchestrator.load", 7)
	MarkFailed(span, errors.New("connection reset"), true)
	span.End()

	_, draft := StartSpan(context.Background(), "orchestrator.prepare", 0)
	MarkFailed(draft, nil, true)
	draft.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, int64(7), attrs(spans[0])[RefundIDKey].AsInt64())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)

	_, tagged := attrs(spans[1])[RefundIDKey]
	assert.False(t, tagged)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}
