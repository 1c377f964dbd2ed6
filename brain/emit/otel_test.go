package emit

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelEmitter_Emit(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	event := Event{
		RunID:  "thread-001",
		Step:   1,
		NodeID: "k1_ingest_observations",
		Msg:    "node_start",
		Meta: map[string]interface{}{
			"node_type": "kernel",
			"tokens":    150,
		},
	}
	emitter.Emit(event)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != "node_start" {
		t.Errorf("span name = %q, want %q", span.Name, "node_start")
	}

	attrs := attributeMap(span.Attributes)
	if got := attrs["robobrain.thread_id"]; got != "thread-001" {
		t.Errorf("thread_id = %v, want %q", got, "thread-001")
	}
	if got := attrs["robobrain.step"]; got != int64(1) {
		t.Errorf("step = %v, want %d", got, 1)
	}
	if got := attrs["robobrain.node_id"]; got != "k1_ingest_observations" {
		t.Errorf("node_id = %v, want %q", got, "k1_ingest_observations")
	}
	if got := attrs["node_type"]; got != "kernel" {
		t.Errorf("node_type = %v, want %q", got, "kernel")
	}
	if got := attrs["tokens"]; got != int64(150) {
		t.Errorf("tokens = %v, want %d", got, 150)
	}

	if !span.EndTime.After(span.StartTime) {
		t.Error("span was not ended")
	}
}

func TestOTelEmitter_EmitWithError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	event := Event{
		RunID:  "thread-001",
		Step:   1,
		NodeID: "r4_safety_guardrails",
		Msg:    "node_error",
		Meta: map[string]interface{}{
			"error": "validation failed",
		},
	}
	emitter.Emit(event)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Status.Code != codes.Error {
		t.Errorf("status code = %v, want %v", span.Status.Code, codes.Error)
	}
	if span.Status.Description != "validation failed" {
		t.Errorf("status description = %q, want %q", span.Status.Description, "validation failed")
	}

	attrs := attributeMap(span.Attributes)
	if got := attrs["error"]; got != "validation failed" {
		t.Errorf("error = %v, want %q", got, "validation failed")
	}
	if len(span.Events) == 0 {
		t.Error("expected error event, got none")
	}
}

func TestOTelEmitter_EmitBatch(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	events := []Event{
		{RunID: "thread-001", Step: 1, NodeID: "k1_ingest_observations", Msg: "node_start"},
		{RunID: "thread-001", Step: 1, NodeID: "k1_ingest_observations", Msg: "node_end"},
		{RunID: "thread-001", Step: 2, NodeID: "k2_mode_arbiter", Msg: "node_start"},
	}

	ctx := context.Background()
	if err := emitter.EmitBatch(ctx, events); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	expectedNames := []string{"node_start", "node_end", "node_start"}
	for i, span := range spans {
		if span.Name != expectedNames[i] {
			t.Errorf("span[%d] name = %q, want %q", i, span.Name, expectedNames[i])
		}
		if !span.EndTime.After(span.StartTime) {
			t.Errorf("span[%d] was not ended", i)
		}
	}
}

func TestOTelEmitter_EmitBatch_Empty(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	if err := emitter.EmitBatch(context.Background(), []Event{}); err != nil {
		t.Fatalf("EmitBatch failed on empty batch: %v", err)
	}

	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("expected 0 spans for empty batch, got %d", got)
	}
}

func TestOTelEmitter_Flush(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	emitter.Emit(Event{RunID: "thread-001", Step: 1, NodeID: "k1_ingest_observations", Msg: "node_start"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := emitter.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if got := len(exporter.GetSpans()); got != 1 {
		t.Errorf("expected 1 span after flush, got %d", got)
	}
}

func TestOTelEmitter_Flush_Timeout(_ *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = emitter.Flush(ctx)
}

func TestOTelEmitter_MetadataTypes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	event := Event{
		RunID:  "thread-001",
		Step:   1,
		NodeID: "r2_query_oracle",
		Msg:    "test_types",
		Meta: map[string]interface{}{
			"string_val":   "hello",
			"int_val":      42,
			"int64_val":    int64(99),
			"float64_val":  3.14,
			"bool_val":     true,
			"duration_val": 250 * time.Millisecond,
		},
	}
	emitter.Emit(event)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := attributeMap(spans[0].Attributes)
	if got := attrs["string_val"]; got != "hello" {
		t.Errorf("string_val = %v, want %q", got, "hello")
	}
	if got := attrs["int_val"]; got != int64(42) {
		t.Errorf("int_val = %v, want %d", got, 42)
	}
	if got := attrs["int64_val"]; got != int64(99) {
		t.Errorf("int64_val = %v, want %d", got, 99)
	}
	if got := attrs["float64_val"]; got != 3.14 {
		t.Errorf("float64_val = %v, want %f", got, 3.14)
	}
	if got := attrs["bool_val"]; got != true {
		t.Errorf("bool_val = %v, want %t", got, true)
	}
	if got := attrs["duration_val"]; got != int64(250) {
		t.Errorf("duration_val = %v, want %d ms", got, 250)
	}
}

func TestOTelEmitter_NilMeta(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := otel.Tracer("test")
	emitter := NewOTelEmitter(tracer)

	emitter.Emit(Event{RunID: "thread-001", Step: 1, NodeID: "k1_ingest_observations", Msg: "node_start", Meta: nil})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := attributeMap(spans[0].Attributes)
	if got := attrs["robobrain.thread_id"]; got != "thread-001" {
		t.Errorf("thread_id = %v, want %q", got, "thread-001")
	}
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{})
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
