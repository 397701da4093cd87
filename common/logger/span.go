package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/LopeviaKochis/ai-virtual-assistant/queue"

// Span is a consumer span for one queued event.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartQueueSpan starts a consumer span continuing the trace that enqueued
// the event. The stream entry only carries the producer's trace id; when it
// is empty or malformed the span starts a new trace.
func StartQueueSpan(ctx context.Context, traceIDHex, name string, attrs ...attribute.KeyValue) *Span {
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	}
	if parent, ok := remoteParent(traceIDHex); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: parent}))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// remoteParent rebuilds a parent span context from a bare trace id. A span
// context is only valid with a span id, so one is derived from the trace id.
func remoteParent(traceIDHex string) (trace.SpanContext, bool) {
	if traceIDHex == "" {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	var spanID trace.SpanID
	copy(spanID[:], traceID[8:])

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

func (s *Span) Context() context.Context {
	return s.ctx
}

func (s *Span) End() {
	s.span.End()
}

// RecordError marks the span failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
