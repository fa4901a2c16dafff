package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type captureWriter struct {
	entries []string
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.entries = append(c.entries, string(p))
	return len(p), nil
}

func TestLoggingExporterEmitsStage(t *testing.T) {
	writer := &captureWriter{}
	exporter := newLoggingExporterWithLogger(zerolog.New(writer))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	ctx := context.Background()
	_, span := provider.Tracer("test").Start(ctx, "hip.fetch")
	span.SetAttributes(attribute.String("hip.tool", "/opt/gp/PanGpHip"))
	span.End()
	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if len(writer.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(writer.entries))
	}
	entry := writer.entries[0]
	for _, want := range []string{`"span_name":"hip.fetch"`, `"hip.tool":"/opt/gp/PanGpHip"`, `"level":"debug"`} {
		if !strings.Contains(entry, want) {
			t.Errorf("entry %s missing %s", entry, want)
		}
	}
}

func TestLoggingExporterWarnsOnError(t *testing.T) {
	writer := &captureWriter{}
	exporter := newLoggingExporterWithLogger(zerolog.New(writer))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	ctx := context.Background()
	_, span := provider.Tracer("test").Start(ctx, "hip.collect")
	span.RecordError(errors.New("cookie key missing"))
	span.SetStatus(codes.Error, "cookie key missing")
	span.End()
	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if len(writer.entries) == 0 {
		t.Fatal("expected log entry")
	}
	if !strings.Contains(writer.entries[0], `"level":"warn"`) {
		t.Errorf("failed stage should log at warn: %s", writer.entries[0])
	}
}
