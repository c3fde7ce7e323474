package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/font", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/font?u=x", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")), 0.001)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(extractionsTotal.WithLabelValues("success"))
	ObserveExtraction("success", 3, 150*time.Millisecond)
	require.InDelta(t, before+1, testutil.ToFloat64(extractionsTotal.WithLabelValues("success")), 0.001)

	hits := testutil.ToFloat64(dnsLookupsTotal.WithLabelValues("hit"))
	ObserveDNSLookup("hit")
	require.InDelta(t, hits+1, testutil.ToFloat64(dnsLookupsTotal.WithLabelValues("hit")), 0.001)

	css := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("css"))
	ObserveFetchBytes("css", 0)
	ObserveFetchBytes("css", 512)
	require.InDelta(t, css+512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("css")), 0.001)

	limited := testutil.ToFloat64(rateLimitedTotal)
	ObserveRateLimited()
	require.InDelta(t, limited+1, testutil.ToFloat64(rateLimitedTotal), 0.001)
}

func TestInitTracerProvider(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), "fontsnatcher-test", "dev", TracingOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "noop-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracerProviderStdoutExporter(t *testing.T) {
	var out bytes.Buffer
	tp, err := InitTracerProvider(context.Background(), "fontsnatcher-test", "dev", TracingOptions{
		Exporter: "Stdout",
		Writer:   &out,
	})
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "fetch-stylesheet")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	require.Contains(t, out.String(), "fetch-stylesheet")
	require.Contains(t, out.String(), "fontsnatcher-test")
}

func TestInitTracerProviderExporterSelection(t *testing.T) {
	for _, opts := range []TracingOptions{
		{Exporter: ExporterOTLP, Endpoint: "127.0.0.1:4317", Insecure: true},
		{Exporter: ExporterOTLP, Protocol: "http", Endpoint: "127.0.0.1:4318", Insecure: true},
	} {
		tp, err := InitTracerProvider(context.Background(), "fontsnatcher-test", "dev", opts)
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = tp.Shutdown(ctx)
		cancel()
	}

	_, err := InitTracerProvider(context.Background(), "fontsnatcher-test", "dev", TracingOptions{Exporter: "zipkin"})
	require.ErrorContains(t, err, `unknown trace exporter "zipkin"`)

	_, err = InitTracerProvider(context.Background(), "fontsnatcher-test", "dev", TracingOptions{Exporter: ExporterOTLP, Protocol: "udp"})
	require.ErrorContains(t, err, "unknown otlp protocol")

	require.True(t, ValidExporter(""))
	require.True(t, ValidExporter(" OTLP "))
	require.False(t, ValidExporter("jaeger"))
}
