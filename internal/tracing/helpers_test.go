package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func TestStartSpan(t *testing.T) {
	recorder := newRecorder(t)

	ctx, endSpan := StartSpan(context.Background(), "pager.initial_search")
	SetAttributes(ctx, attribute.Int("search.generation", 3))
	AddEvent(ctx, "response_received", attribute.Int("shops", 4))
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "pager.initial_search" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code == codes.Error {
		t.Error("span should not be marked as error")
	}

	found := false
	for _, attr := range span.Attributes() {
		if attr.Key == "search.generation" && attr.Value.AsInt64() == 3 {
			found = true
		}
	}
	if !found {
		t.Error("missing search.generation attribute")
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "response_received" {
		t.Errorf("events = %+v", span.Events())
	}
}

func TestStartSpan_WithError(t *testing.T) {
	recorder := newRecorder(t)

	_, endSpan := StartSpan(context.Background(), "session.verify")
	endSpan(errors.New("connection refused"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestTransport(t *testing.T) {
	recorder := newRecorder(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: Transport(nil)}
	resp, err := client.Post(server.URL+"/auth/verify", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "backend POST /auth/verify" {
		t.Errorf("span name = %q", spans[0].Name())
	}
}
