package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/huddle/pkg/server"
)

const defaultTracerName = "huddle"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "huddle").
	TracerName string

	// IncludeClient records the requesting client name on spans.
	// Enabled by default.
	IncludeClient bool

	// Filter determines which requests to trace. Return true to trace.
	// If nil, all requests are traced.
	Filter func(ctx *server.RequestCtx) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(ctx *server.RequestCtx) []attribute.KeyValue

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeClient enables or disables the client attribute.
func WithIncludeClient(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeClient = include
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(ctx *server.RequestCtx) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ctx *server.RequestCtx) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludeClient: true,
	}
}

// OpenTelemetry returns middleware that traces every request.
//
// Each span is named "huddle.<Op>" and carries the session, session id,
// connection id and target. The span context replaces ctx.StdContext() so
// the handler and later middleware inherit it.
//
// The tracer comes from the global provider unless WithTracerProvider is
// given. Configure it in main() before starting the server:
//
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) server.RequestMiddleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return server.RequestMiddlewareFunc(func(ctx *server.RequestCtx, next func() error) error {
		if config.Filter != nil && !config.Filter(ctx) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("huddle.session", ctx.Session()),
			attribute.String("huddle.session_id", ctx.SessionID()),
			attribute.String("huddle.conn_id", ctx.ConnID()),
			attribute.String("huddle.op", ctx.Op().String()),
		}
		if target := ctx.Target(); target != "" {
			attrs = append(attrs, attribute.String("huddle.target", target))
		}
		if config.IncludeClient {
			attrs = append(attrs, attribute.String("huddle.client", ctx.Client()))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ctx)...)
		}

		spanCtx, span := config.tracer.Start(
			ctx.StdContext(),
			"huddle."+ctx.Op().String(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(time.Now()),
		)
		defer span.End()

		ctx.SetValue(spanContextKey{}, spanCtx)
		ctx.WithStdContext(spanCtx)

		err := next()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("huddle.error_code", server.CodeOf(err).String()))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		if n := len(ctx.Request().Value); n > 0 {
			span.SetAttributes(attribute.Int("huddle.payload_bytes", n))
		}
		return err
	})
}

type spanContextKey struct{}

// SpanFromContext returns the request's span, or nil outside the
// OpenTelemetry middleware.
//
//	if span := middleware.SpanFromContext(ctx); span != nil {
//		span.SetAttributes(attribute.Int("recipients", n))
//	}
func SpanFromContext(ctx *server.RequestCtx) trace.Span {
	if spanCtx, ok := ctx.Value(spanContextKey{}).(context.Context); ok {
		return trace.SpanFromContext(spanCtx)
	}
	return nil
}

// TraceContext returns the context carrying the request's span, for
// propagation to outgoing calls.
func TraceContext(ctx *server.RequestCtx) context.Context {
	if spanCtx, ok := ctx.Value(spanContextKey{}).(context.Context); ok {
		return spanCtx
	}
	return ctx.StdContext()
}
