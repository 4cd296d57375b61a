package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/reqid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := newSubscriber(otel.Tracer("fedplan"))
	sub.register()

	return tp.Shutdown, nil
}

// subscriber turns events into spans. Spans are keyed by request id, so one
// request has at most one open span of each kind.
type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
	planSpans sync.Map // rid -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer}
}

func (s *subscriber) register() (unsubscribe func()) {
	offs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			span, ok := take(ctx, &s.httpSpans)
			if !ok {
				return
			}
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans), "graphql.operation")
			span.SetAttributes(attribute.String("graphql.operation.name", e.OperationName))
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			span, ok := take(ctx, &s.gqlSpans)
			if !ok {
				return
			}
			span.SetAttributes(
				attribute.String("graphql.operation.type", e.OperationType),
				attribute.Bool("graphql.local", e.Local),
				attribute.Int("graphql.error_count", len(e.Errors)),
			)
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.PlanStart) {
			rid, _ := reqid.FromContext(ctx)
			parent := s.parent(ctx, &s.gqlSpans)
			if parent == ctx {
				parent = s.parent(ctx, &s.httpSpans)
			}
			_, span := s.tracer.Start(parent, "graphql.plan")
			span.SetAttributes(attribute.String("graphql.operation.name", e.OperationName))
			s.planSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.PlanFinish) {
			span, ok := take(ctx, &s.planSpans)
			if !ok {
				return
			}
			span.SetAttributes(
				attribute.String("graphql.operation.type", e.OperationType),
				attribute.Int("plan.steps", e.Steps),
				attribute.Int("plan.nodes", e.Nodes),
				attribute.Bool("plan.cache_hit", e.CacheHit),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// parent returns ctx carrying the open span of the request found in spans,
// or ctx itself when there is none.
func (s *subscriber) parent(ctx context.Context, spans *sync.Map) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := spans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func take(ctx context.Context, spans *sync.Map) (trace.Span, bool) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := spans.LoadAndDelete(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}
