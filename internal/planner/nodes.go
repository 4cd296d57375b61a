package planner

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/plan"
)

// builtPlan holds one plan node per step, indexed by step id - 1. Entity
// steps of a lookup are reachable through the ResolveNode of their owner.
type builtPlan struct {
	steps []*step
	nodes []plan.Node
}

func (b *builtPlan) node(st *step) plan.Node { return b.nodes[st.id-1] }

// buildNodes translates every step into its plan node.
func (c *planningContext) buildNodes(r *resolvedPlan) (*builtPlan, error) {
	b := &builtPlan{steps: r.steps, nodes: make([]plan.Node, len(r.steps))}
	for _, st := range r.steps {
		if st.kind == stepNode {
			continue
		}
		n, err := c.buildNode(st)
		if err != nil {
			return nil, err
		}
		b.nodes[st.id-1] = n
	}
	// lookups last: they own the nodes of their entity steps
	for _, st := range r.steps {
		if st.kind == stepNode {
			b.nodes[st.id-1] = c.buildResolveNode(st, b)
		}
	}
	return b, nil
}

func (c *planningContext) buildNode(st *step) (plan.Node, error) {
	if st.kind == stepIntrospection {
		fields := make([]string, len(st.covered))
		for i, sel := range st.covered {
			fields[i] = sel.ResponseName
		}
		return &plan.Introspect{ID: st.id, Fields: fields}, nil
	}

	for _, name := range st.requires {
		if _, ok := st.vars[name]; !ok {
			return nil, errors.Wrapf(ErrInvariantViolation, "step %d of %s requires unbound variable %q", st.id, st.subgraph, name)
		}
	}

	kind := st.resolverKind()
	opType := language.Query
	switch {
	case c.op.IsMutationRoot(st.ss):
		opType = language.Mutation
	case kind == ir.ResolverKindSubscribe:
		opType = language.Subscription
	}
	req, transport, err := c.renderRequest(st, opType)
	if err != nil {
		return nil, err
	}

	f := plan.Fetch{
		ID:             st.id,
		Subgraph:       st.subgraph,
		Request:        req,
		SelectionSetID: st.ss.ID,
		Path:           responsePath(c, st),
		Imports:        imports(st, st.varOrder),
		Exports:        exports(st.exports),
		Transport:      transport,
		DependsOn:      dependencyIDs(st),
	}

	switch {
	case st.kind == stepNodeEntity:
		return &f, nil
	case kind == ir.ResolverKindSubscribe:
		return &plan.Subscribe{Fetch: f}, nil
	case kind.IsBatch():
		return &plan.BatchFetch{
			Fetch:      f,
			Batch:      imports(st, batchVariables(st)),
			KeyExports: exports(st.keyExports),
		}, nil
	}
	return &f, nil
}

// buildResolveNode assembles a lookup step and the nodes of its entity steps.
func (c *planningContext) buildResolveNode(st *step, b *builtPlan) *plan.ResolveNode {
	sel := st.lookup
	arg := sel.Argument("id")
	if arg == nil {
		arg = sel.Argument("ids")
	}
	p := &requestPrinter{c: c, st: st, declared: map[string]bool{}}
	ids := p.value(arg.Value, func(name string) string { return "$" + name })

	entities := make([]plan.Entity, 0, len(st.entities))
	for _, e := range st.entities {
		entities = append(entities, plan.Entity{Type: e.ss.Type.Name, Node: b.node(e)})
	}
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Type < entities[j].Type })
	passthrough := append([]string(nil), st.passthrough...)
	sort.Strings(passthrough)

	return &plan.ResolveNode{
		ID:           st.id,
		ResponseName: sel.ResponseName,
		Field:        sel.FieldName,
		IDs:          ids,
		IDVariable:   lookupVariable,
		Entities:     entities,
		Passthrough:  passthrough,
	}
}

func responsePath(c *planningContext, st *step) []string {
	var out []string
	for _, sel := range c.op.Path(st.ss) {
		out = append(out, sel.ResponseName)
	}
	return out
}

func imports(st *step, names []string) []plan.Import {
	var out []plan.Import
	for _, name := range names {
		if key, ok := st.vars[name]; ok {
			out = append(out, plan.Import{Variable: name, StateKey: key})
		}
	}
	return out
}

func exports(list []*export) []plan.Export {
	var out []plan.Export
	for _, e := range list {
		out = append(out, plan.Export{StateKey: e.key, SelectionSetID: e.ss.ID, Variable: e.variable})
	}
	return out
}

func dependencyIDs(st *step) []int {
	var ids []int
	for _, d := range st.deps {
		ids = append(ids, d.id)
	}
	sort.Ints(ids)
	return ids
}

// batchVariables returns the imported variables of the batch resolver of st,
// which carry one value per parent entity.
func batchVariables(st *step) []string {
	var r *ir.ResolverDefinition
	if st.entity != nil {
		r = st.entity
	} else {
		for _, fr := range st.roots {
			if fr.resolver.Kind.IsBatch() {
				r = fr.resolver
				break
			}
		}
	}
	if r == nil {
		return nil
	}
	var out []string
	for _, name := range st.varOrder {
		if containsString(r.Requires, name) {
			out = append(out, name)
		}
	}
	return out
}
