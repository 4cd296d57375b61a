package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/reqid"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "fedplan")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSubscriberNestsPlanSpans(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	off := newSubscriber(tp.Tracer("test")).register()
	defer off()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Me"})
	eventbus.Publish(ctx, events.PlanStart{OperationName: "Me"})
	eventbus.Publish(ctx, events.PlanFinish{OperationName: "Me", OperationType: "query", Steps: 2, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Me", OperationType: "query"})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, "graphql.plan", ended[0].Name())
	require.Equal(t, "graphql.operation", ended[1].Name())
	require.Equal(t, "http.request", ended[2].Name())

	require.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	require.Equal(t, ended[2].SpanContext().SpanID(), ended[1].Parent().SpanID())
	require.Len(t, ended[0].Events(), 1)
}

func TestSubscriberPlanWithoutRequest(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	off := newSubscriber(tp.Tracer("test")).register()
	defer off()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.PlanStart{})
	eventbus.Publish(ctx, events.PlanFinish{CacheHit: true})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.False(t, ended[0].Parent().IsValid())
}
