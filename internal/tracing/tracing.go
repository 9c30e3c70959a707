// Package tracing wires OpenTelemetry spans around the orchestrator's LLM
// and search calls, grounded on the teacher's solve.go think() method
// (startReactSpan + attribute.String/attribute.Int around each LLM call).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "paperpost-orchestrator"

// Span wraps an OTel span so callers don't need to import the otel package
// directly at every call site.
type Span struct {
	span oteltrace.Span
}

// End records err (if any) as the span's status and ends it, mirroring the
// teacher's pattern of marking spans failed on LLM error.
func (s Span) End(err error) {
	if s.span == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// Tracer is the capability AgentRuntime and the search/tool layers depend
// on to start spans, small enough to stub out entirely in tests.
type Tracer interface {
	StartLLMSpan(ctx context.Context, agent string) (context.Context, Span)
	StartSearchSpan(ctx context.Context, query string) (context.Context, Span)
}

type otelTracer struct {
	tracer oteltrace.Tracer
}

// New wraps the process-wide OTel TracerProvider (configured once in
// main.go) into a Tracer.
func New() Tracer {
	return &otelTracer{tracer: otel.Tracer(tracerName)}
}

func (t *otelTracer) StartLLMSpan(ctx context.Context, agent string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "agent.llm_call",
		oteltrace.WithAttributes(attribute.String("agent.name", agent)))
	return ctx, Span{span: span}
}

func (t *otelTracer) StartSearchSpan(ctx context.Context, query string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "tool.web_search",
		oteltrace.WithAttributes(attribute.String("search.query", query)))
	return ctx, Span{span: span}
}

// noopTracer is used in tests and whenever tracing is disabled.
type noopTracer struct{}

func (noopTracer) StartLLMSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, Span{}
}
func (noopTracer) StartSearchSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, Span{}
}

// Noop returns a Tracer that does nothing, for tests and disabled tracing.
func Noop() Tracer { return noopTracer{} }
