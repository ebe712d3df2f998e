package albertree

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
)

// childSpanFromContext starts a span for one node's tick, inheriting
// whatever tracer is already bound to ctx, falling back to the process
// global tracer (a no-op until WithTracer installs one) so a tree ticked
// without a tracer pays no real OpenTracing cost. ExecuteTick calls this
// once per node per tick, giving every node its own span nested under
// its parent's — the span-per-node tracing spec.md §6 describes for
// observability collaborators.
func childSpanFromContext(ctx context.Context, operation string) (opentracing.Span, context.Context) {
	tracer := opentracing.GlobalTracer()

	if span := opentracing.SpanFromContext(ctx); span != nil {
		tracer = span.Tracer()
	}

	return opentracing.StartSpanFromContextWithTracer(
		ctx,
		tracer,
		"albertree::"+operation,
	)
}

// logStatus annotates span with the outcome of one tick: the resulting
// status, and the error if tick() failed.
func logStatus(span opentracing.Span, status Status, err error) {
	fields := []log.Field{log.String("status", status.String())}
	if err != nil {
		fields = append(fields, log.Error(err))
	}
	span.LogFields(fields...)
}
