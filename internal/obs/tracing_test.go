package obs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/backend-fieldsales/internal/obs"
)

func TestTracingMiddlewareNamesSpanAfterRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Get("/api/v1/tickets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tickets/TKT-20260314-0001", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /api/v1/tickets/{id}", spans[0].Name())
}

func TestInitTracerWithoutExporter(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:  "fieldsales-test",
		Exporter:     "none",
		Environment:  "test",
		StoreBackend: "memory",
	})
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	require.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))

	_, err = obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

func TestLedgerTableContext(t *testing.T) {
	ctx := obs.WithLedgerTable(context.Background(), "Sales")
	require.Equal(t, "Sales", obs.LedgerTableFromContext(ctx))
	require.Empty(t, obs.LedgerTableFromContext(context.Background()))
	require.Empty(t, obs.RoutePatternFromContext(ctx))
}
