// Package planner turns a compiled operation into a query plan over the
// subgraphs of a federation project.
//
// Planning runs in four phases over a context owned by one call:
//
//  1. discovery partitions the selections into steps, one subgraph each
//  2. requirements planning binds every variable a step needs to a value
//     exported by another step, adding dependencies
//  3. node building renders a request document per step
//  4. tree building orders the nodes into Sequence and Parallel groups and
//     inserts Compose nodes
//
// Each phase returns the input of the next one. A Planner is safe for
// concurrent use; it keeps no state between calls.
package planner

import (
	"github.com/jensneuse/abstractlogger"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
)

type Planner struct {
	project *ir.Project
	log     abstractlogger.Logger
}

type Option func(*Planner)

// WithLogger sets the logger receiving phase summaries at debug level.
func WithLogger(log abstractlogger.Logger) Option {
	return func(p *Planner) { p.log = log }
}

func New(project *ir.Project, opts ...Option) *Planner {
	p := &Planner{project: project, log: abstractlogger.NoopLogger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan builds the plan of op. Errors wrap one of the Err* sentinels.
func (p *Planner) Plan(op *operation.Operation) (*plan.Plan, error) {
	c := newPlanningContext(p.project, op)

	discovered, err := c.discover()
	if err != nil {
		return nil, err
	}
	p.log.Debug("steps discovered",
		abstractlogger.String("operation", op.Name),
		abstractlogger.Int("steps", len(discovered.steps)),
	)

	resolved, err := c.planRequirements(discovered)
	if err != nil {
		return nil, err
	}
	p.log.Debug("requirements planned",
		abstractlogger.String("operation", op.Name),
		abstractlogger.Int("steps", len(resolved.steps)),
		abstractlogger.Int("exports", len(c.registry.entries)),
	)

	built, err := c.buildNodes(resolved)
	if err != nil {
		return nil, err
	}
	root, err := c.buildTree(built)
	if err != nil {
		return nil, err
	}
	return &plan.Plan{Name: op.Name, Operation: op.Type, Root: root}, nil
}

// StepCount returns the number of fetch-like and local nodes in the plan.
func StepCount(p *plan.Plan) int {
	n := 0
	plan.Walk(p.Root, func(node plan.Node) {
		switch node.(type) {
		case *plan.Fetch, *plan.BatchFetch, *plan.Subscribe, *plan.Introspect, *plan.ResolveNode:
			n++
		}
	})
	return n
}
