package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/transport/pdf"
	healthuc "github.com/kailas-cloud/crag/internal/usecase/health"
)

const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

// recordSpans installs an in-memory tracer provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func TestRouter_ServerSpanContinuesIncomingTrace(t *testing.T) {
	rec := recordSpans(t)
	core, logs := observer.New(zap.InfoLevel)
	srv := NewServer(&stubAsker{}, pdf.NewExtractor(0, nil), healthuc.New(nil), zap.NewNop())
	router := NewRouter(srv, nil, zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("traceparent", "00-"+incomingTraceID+"-00f067aa0ba902b7-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /health" {
		t.Errorf("span name = %q, want route pattern", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.SpanKind())
	}
	if got := span.SpanContext().TraceID().String(); got != incomingTraceID {
		t.Errorf("trace id = %s, want the incoming one", got)
	}

	lines := logs.FilterMessage("http_request").All()
	if len(lines) != 1 || lines[0].ContextMap()["trace_id"] != incomingTraceID {
		t.Errorf("request log must carry the trace id, got %+v", lines)
	}
}

func TestRouter_FailedRequestMarksSpan(t *testing.T) {
	rec := recordSpans(t)
	asker := &stubAsker{err: domain.NewPipelineError(
		domain.KindGeneration, domain.StateSynthesizing, domain.ErrGeneration)}
	router := newTestRouter(t, asker, nil)

	rr := postJSON(t, router, "/v1/ask", map[string]any{"question": "q"})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error || spans[0].Name() != "POST /v1/ask" {
		t.Errorf("expected an errored POST /v1/ask span, got %+v", spans)
	}
}

func TestRouter_UnmatchedRouteSpanName(t *testing.T) {
	rec := recordSpans(t)
	router := newTestRouter(t, &stubAsker{}, nil)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v2/nope", http.NoBody))

	if spans := rec.Ended(); len(spans) != 1 || spans[0].Name() != "GET unmatched" {
		t.Errorf("unmatched routes must not leak raw paths into span names, got %+v", spans)
	}
}
