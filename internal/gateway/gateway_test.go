package gateway

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/plancache"
	"github.com/hanpama/fedplan/internal/planner"
)

func loadGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	g, err := Load("testdata/project", opts...)
	require.NoError(t, err)
	return g
}

func TestPlanReusesCachedPlan(t *testing.T) {
	cache, err := plancache.New(8)
	require.NoError(t, err)
	g := loadGateway(t, WithCache(cache))

	first, err := g.Plan(context.Background(), `{ me { name } }`, "")
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 1, planner.StepCount(first.Plan))

	second, err := g.Plan(context.Background(), "{\n  me {\n    name\n  }\n}", "")
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Same(t, first.Plan, second.Plan)
	require.Same(t, first.Operation, second.Operation)
	require.Equal(t, 1, cache.Len())
}

func TestPlanWithoutCache(t *testing.T) {
	g := loadGateway(t)
	for i := 0; i < 2; i++ {
		res, err := g.Plan(context.Background(), `{ me { name } }`, "")
		require.NoError(t, err)
		require.False(t, res.CacheHit)
	}
}

func TestPlanSelectsOperation(t *testing.T) {
	g := loadGateway(t)
	res, err := g.Plan(context.Background(), `query A { me { name } } query B { me { reviewCount } }`, "B")
	require.NoError(t, err)
	require.Equal(t, "B", res.Plan.Name)
}

func TestPlanReportsValidationErrors(t *testing.T) {
	g := loadGateway(t)
	_, err := g.Plan(context.Background(), `{ nope }`, "")
	var list gqlerror.List
	require.ErrorAs(t, err, &list)
	require.NotEmpty(t, list)

	_, err = g.Plan(context.Background(), `{ me {`, "")
	var syntax *gqlerror.Error
	require.ErrorAs(t, err, &syntax)
}

func TestPlanReportsPlanningErrors(t *testing.T) {
	g := loadGateway(t)
	_, err := g.Plan(context.Background(), `{ viewer { reviewCount } }`, "")
	require.True(t, errors.Is(err, planner.ErrUnreachableStep), "got %v", err)
}

func TestIntrospection(t *testing.T) {
	g := loadGateway(t)
	res, err := g.Plan(context.Background(), `{ __schema { queryType { name } } }`, "")
	require.NoError(t, err)
	require.True(t, res.Local())

	data, err := g.Introspect(res, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"__schema": map[string]any{"queryType": map[string]any{"name": "Query"}},
	}, data)

	mixed, err := g.Plan(context.Background(), `{ me { name } __type(name: "User") { name } }`, "")
	require.NoError(t, err)
	require.False(t, mixed.Local())
}

func TestIntrospectionDisabled(t *testing.T) {
	g := loadGateway(t, WithIntrospection(false))
	_, err := g.Plan(context.Background(), `{ __type(name: "User") { name } }`, "")
	require.True(t, errors.Is(err, ErrIntrospectionDisabled), "got %v", err)

	_, err = g.Plan(context.Background(), `{ __typename me { name } }`, "")
	require.NoError(t, err)
}

func TestPlanPublishesEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var started []events.PlanStart
	var finished []events.PlanFinish
	eventbus.Subscribe(func(_ context.Context, e events.PlanStart) { started = append(started, e) })
	eventbus.Subscribe(func(_ context.Context, e events.PlanFinish) { finished = append(finished, e) })

	cache, err := plancache.New(8)
	require.NoError(t, err)
	g := loadGateway(t, WithCache(cache))
	for i := 0; i < 2; i++ {
		_, err := g.Plan(context.Background(), `query Me { me { name reviewCount } }`, "Me")
		require.NoError(t, err)
	}
	_, err = g.Plan(context.Background(), `{ viewer { reviewCount } }`, "")
	require.Error(t, err)

	require.Len(t, started, 3)
	require.Len(t, finished, 3)
	require.Equal(t, "Me", finished[0].OperationName)
	require.Equal(t, "query", finished[0].OperationType)
	require.False(t, finished[0].CacheHit)
	require.True(t, finished[1].CacheHit)
	require.Equal(t, finished[0].Steps, finished[1].Steps)
	require.Positive(t, finished[0].Nodes)
	require.Error(t, finished[2].Err)
}
