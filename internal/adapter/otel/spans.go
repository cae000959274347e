package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "breachcache"

// StartLookupSpan starts a span for a breach lookup in domain.
func StartLookupSpan(ctx context.Context, domain string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "breach.lookup",
		trace.WithAttributes(attribute.String("email.domain", domain)),
	)
}

// StartAddSpan starts a span for registering a breached email in domain.
func StartAddSpan(ctx context.Context, domain string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "breach.add",
		trace.WithAttributes(attribute.String("email.domain", domain)),
	)
}

// StartUpstreamSpan starts a client span for a data source call.
func StartUpstreamSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "upstream."+op,
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
