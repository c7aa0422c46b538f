package trace

import "context"

// A tracer and the enclosing span ride on the context, so a run started
// from a CLI command or an LSP request nests under it in the output.

type tracerKey struct{}

type spanKey struct{}

// SpanContext identifies the span that encloses work done under a context.
type SpanContext struct {
	SpanID uint64
}

// WithTracer attaches t to ctx. A nil t stores Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// CurrentSpan returns the span carried by ctx; the zero value at the root.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx != nil {
		if sc, ok := ctx.Value(spanKey{}).(SpanContext); ok {
			return sc
		}
	}
	return SpanContext{}
}

// WithSpanContext makes sc the enclosing span of ctx.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanKey{}, sc)
}

// StartSpan begins a span on t as a child of the span carried by ctx and
// returns a context carrying the new span. A nil t uses the tracer in ctx.
func StartSpan(ctx context.Context, t Tracer, scope Scope, name string) (context.Context, *Span) {
	if t == nil {
		t = FromContext(ctx)
	}
	span := Begin(t, scope, name, CurrentSpan(ctx).SpanID)
	if span.ID() == 0 {
		return ctx, span
	}
	return WithSpanContext(ctx, SpanContext{SpanID: span.ID()}), span
}
