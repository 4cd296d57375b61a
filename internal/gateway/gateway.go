// Package gateway ties the gateway schema to the planner: it parses and
// validates operation text, compiles it, and plans it through an optional
// plan cache.
package gateway

import (
	"context"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/introspection"
	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
	"github.com/hanpama/fedplan/internal/plancache"
	"github.com/hanpama/fedplan/internal/planner"
	"github.com/hanpama/fedplan/internal/schema"
)

// ErrIntrospectionDisabled is returned for operations selecting __schema or
// __type when introspection is turned off.
var ErrIntrospectionDisabled = errors.New("introspection is disabled")

type Gateway struct {
	schema    *schema.Schema
	extended  *schema.Schema
	validator *language.Schema
	planner   *planner.Planner

	cache         *plancache.Cache
	log           abstractlogger.Logger
	introspection bool
}

type Option func(*Gateway)

func WithLogger(log abstractlogger.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithCache keeps built plans in c. Without a cache every call plans again.
func WithCache(c *plancache.Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

func WithIntrospection(enabled bool) Option {
	return func(g *Gateway) { g.introspection = enabled }
}

// New builds the gateway schema of project.
func New(project *ir.Project, opts ...Option) (*Gateway, error) {
	s, err := schema.BuildFromIR(project)
	if err != nil {
		return nil, errors.Wrap(err, "build schema")
	}
	return newGateway(s, project, opts)
}

// Load builds a gateway from the annotated documents found under rootDir.
func Load(rootDir string, opts ...Option) (*Gateway, error) {
	project, err := ir.Load(rootDir)
	if err != nil {
		return nil, errors.Wrap(err, "load project")
	}
	return New(project, opts...)
}

// FromSDL builds a gateway from a single annotated document.
func FromSDL(sdl string, opts ...Option) (*Gateway, error) {
	s, project, err := schema.BuildFromSDL(sdl)
	if err != nil {
		return nil, err
	}
	return newGateway(s, project, opts)
}

func newGateway(s *schema.Schema, project *ir.Project, opts []Option) (*Gateway, error) {
	validator, err := schema.Validator(s)
	if err != nil {
		return nil, errors.Wrap(err, "load validation schema")
	}
	g := &Gateway{
		schema:        s,
		extended:      introspection.Extend(s),
		validator:     validator,
		log:           abstractlogger.NoopLogger,
		introspection: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.planner = planner.New(project, planner.WithLogger(g.log))
	return g, nil
}

// Schema returns the gateway schema without the introspection types.
func (g *Gateway) Schema() *schema.Schema { return g.schema }

// Result is a planned operation. It may be shared with other callers through
// the cache and must not be modified.
type Result struct {
	Operation *operation.Operation
	Plan      *plan.Plan
	CacheHit  bool
}

// Local reports whether the plan is answered without any subgraph, which is
// the case for operations selecting only introspection fields.
func (r *Result) Local() bool {
	local := true
	plan.Walk(r.Plan.Root, func(n plan.Node) {
		switch n.(type) {
		case *plan.Sequence, *plan.Parallel, *plan.Compose, *plan.Introspect:
		default:
			local = false
		}
	})
	return local
}

// Plan returns the plan of the selected operation of query. Syntax and
// validation failures are returned as gqlerror values, planning failures wrap
// the planner sentinels.
func (g *Gateway) Plan(ctx context.Context, query, operationName string) (res *Result, err error) {
	start := time.Now()
	eventbus.Publish(ctx, events.PlanStart{OperationName: operationName})
	defer func() {
		finish := events.PlanFinish{OperationName: operationName, Err: err, Duration: time.Since(start)}
		if res != nil {
			finish.OperationType = string(res.Plan.Operation)
			finish.Steps = planner.StepCount(res.Plan)
			finish.Nodes = countNodes(res.Plan)
			finish.CacheHit = res.CacheHit
		}
		eventbus.Publish(ctx, finish)
	}()

	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	var key uint64
	if g.cache != nil {
		key = plancache.Key(doc, operationName)
		if e, ok := g.cache.Get(key); ok {
			return &Result{Operation: e.Operation, Plan: e.Plan, CacheHit: true}, nil
		}
	}

	op, err := g.compile(query, operationName)
	if err != nil {
		return nil, err
	}
	p, err := g.planner.Plan(op)
	if err != nil {
		g.log.Error("planning failed",
			abstractlogger.String("operation", operationName),
			abstractlogger.Error(err),
		)
		return nil, err
	}

	if g.cache != nil {
		if g.cache.Add(key, &plancache.Entry{Operation: op, Plan: p}) {
			g.log.Debug("plan cache eviction", abstractlogger.Int("size", g.cache.Len()))
		}
	}
	g.log.Debug("operation planned",
		abstractlogger.String("operation", operationName),
		abstractlogger.Int("steps", planner.StepCount(p)),
	)
	return &Result{Operation: op, Plan: p}, nil
}

func (g *Gateway) compile(query, operationName string) (*operation.Operation, error) {
	doc, err := language.LoadQuery(g.validator, query)
	if err != nil {
		return nil, err
	}
	op, err := operation.Compile(g.extended, doc, operationName)
	if err != nil {
		return nil, err
	}
	if !g.introspection {
		for _, sel := range op.RootSelectionSet().Selections {
			if introspection.IsField(sel.FieldName) {
				return nil, errors.Wrapf(ErrIntrospectionDisabled, "field %s", sel.ResponseName)
			}
		}
	}
	return op, nil
}

// Introspect answers the introspection fields of a planned operation.
func (g *Gateway) Introspect(res *Result, variables map[string]any) (map[string]any, error) {
	return introspection.Execute(g.schema, res.Operation, variables)
}

func countNodes(p *plan.Plan) int {
	n := 0
	plan.Walk(p.Root, func(plan.Node) { n++ })
	return n
}
