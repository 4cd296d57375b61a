package planner

import (
	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/operation"
)

// resolvedPlan is the output of requirements planning: every variable a
// step requires is bound to a state key of a step it depends on.
type resolvedPlan struct {
	steps []*step
}

// planRequirements resolves entity requirements first, then the
// requirements of field resolvers. The second pass may append requirement
// only steps, which are visited by the same loop.
func (c *planningContext) planRequirements(d *discoveredPlan) (*resolvedPlan, error) {
	for _, st := range d.steps {
		if st.entity == nil || st.parent == nil {
			continue
		}
		if st.kind != stepNodeEntity {
			if err := c.resolve(st, st.entity.Requires, st.ss, false); err != nil {
				return nil, err
			}
		}
		c.reexportKeys(st, st.entity)
	}

	for i := 0; i < len(c.steps); i++ {
		st := c.steps[i]
		for _, fr := range st.roots {
			args := argumentVariables(c.meta(fr.sel.DeclaringType).Field(fr.sel.FieldName), st.subgraph)
			var needed []string
			for _, name := range fr.resolver.Requires {
				if !args[name] {
					needed = append(needed, name)
				}
			}
			if err := c.resolve(st, needed, st.ss, true); err != nil {
				return nil, err
			}
			c.reexportKeys(st, fr.resolver)
		}
	}
	return &resolvedPlan{steps: c.steps}, nil
}

// resolve binds each variable in names to an export of another step: first
// a registered export for the selection set, then the cheapest set of
// steps that can export them, then the root selection set. Variables no
// step supplies below the root are fetched by a new entity step.
func (c *planningContext) resolve(st *step, names []string, ss *operation.SelectionSet, synthesize bool) error {
	outstanding := c.fromRegistry(st, names, ss)
	if len(outstanding) == 0 {
		return nil
	}
	outstanding = c.coverVariables(st, outstanding, ss, synthesize)
	if len(outstanding) > 0 && !c.op.IsRoot(ss) {
		root := c.op.RootSelectionSet()
		outstanding = c.fromRegistry(st, outstanding, root)
		outstanding = c.coverVariables(st, outstanding, root, synthesize)
	}
	if len(outstanding) > 0 && synthesize && !c.op.IsRoot(ss) {
		var err error
		if outstanding, err = c.synthesizeEntity(st, outstanding, ss); err != nil {
			return err
		}
	}
	if len(outstanding) > 0 {
		return errors.Wrapf(ErrMetadataInconsistency, "no step of %s can supply %v for %s", ss.Type.Name, outstanding, st.subgraph)
	}
	return nil
}

// fromRegistry binds the variables already exported for ss by a step that
// does not depend on st, and returns the others.
func (c *planningContext) fromRegistry(st *step, names []string, ss *operation.SelectionSet) []string {
	var outstanding []string
	for _, name := range names {
		if _, ok := st.vars[name]; ok {
			continue
		}
		found := false
		for _, e := range c.registry.lookup(ss, name) {
			if e.producer != st && !c.dependsOn(e.producer, st) {
				st.bind(name, e)
				found = true
				break
			}
		}
		if !found {
			outstanding = append(outstanding, name)
		}
	}
	return outstanding
}

// supplier is a step, existing or to be created, that can export variables
// of a selection set.
type supplier struct {
	step     *step // nil when the step must be created
	subgraph string
	covers   []string
}

// coverVariables greedily commits to the supplier covering the most
// outstanding variables until none is left or no supplier helps. Ties go to
// a step st already depends on, then to existing steps, then to subgraph
// declaration order.
func (c *planningContext) coverVariables(st *step, names []string, ss *operation.SelectionSet, synthesize bool) []string {
	meta := c.meta(ss.Type)
	for len(names) > 0 {
		var candidates []supplier
		for _, sib := range c.steps {
			if sib == st || sib.subgraph == "" || !sib.touches(ss) || c.dependsOn(sib, st) {
				continue
			}
			if covers := exportable(meta, sib.subgraph, names); len(covers) > 0 {
				candidates = append(candidates, supplier{step: sib, subgraph: sib.subgraph, covers: covers})
			}
		}
		if synthesize && c.isQuery() && c.op.IsRoot(ss) {
			for _, sg := range c.project.Subgraphs {
				if covers := exportable(meta, sg.Name, names); len(covers) > 0 {
					candidates = append(candidates, supplier{subgraph: sg.Name, covers: covers})
				}
			}
		}
		if len(candidates) == 0 {
			return names
		}

		best := candidates[0]
		for _, cand := range candidates[1:] {
			if c.betterSupplier(st, cand, best) {
				best = cand
			}
		}
		producer := best.step
		if producer == nil {
			producer = newStep(stepSelection, ss, best.subgraph)
			producer.synthesized = true
			c.addStep(producer)
		}
		for _, name := range best.covers {
			e := c.registry.register(producer, ss, name, c.exportField(meta, producer.subgraph, name))
			st.bind(name, e)
		}
		names = without(names, best.covers)
	}
	return nil
}

// synthesizeEntity fetches names with entity steps on ss, one per subgraph
// that exports them through an entity resolver of the type. The subgraph
// exporting the most names goes first. The requirements of a new step are
// resolved before it is used, and a subgraph is not synthesized again while
// its own requirements are pending.
func (c *planningContext) synthesizeEntity(st *step, names []string, ss *operation.SelectionSet) ([]string, error) {
	meta := c.meta(ss.Type)
	path := c.op.Path(ss)
	list := listContext(path)
	for len(names) > 0 {
		var best supplier
		var resolver *ir.ResolverDefinition
		for _, sg := range c.project.Subgraphs {
			if c.synthesizing[synthesisKey{ss.ID, sg.Name}] {
				continue
			}
			covers := exportable(meta, sg.Name, names)
			if len(covers) <= len(best.covers) {
				continue
			}
			var r *ir.ResolverDefinition
			for _, cand := range meta.ResolversFor(sg.Name) {
				if cand.Kind == ir.ResolverKindSubscribe {
					continue
				}
				if r == nil || kindRank(cand.Kind, list, false) < kindRank(r.Kind, list, false) {
					r = cand
				}
			}
			if r != nil {
				best, resolver = supplier{subgraph: sg.Name, covers: covers}, r
			}
		}
		if resolver == nil {
			return names, nil
		}

		producer := newStep(stepSelection, ss, best.subgraph)
		producer.entity = resolver
		producer.path = path
		producer.synthesized = true
		for _, name := range resolver.Requires {
			producer.require(name)
		}
		c.addStep(producer)
		for _, name := range best.covers {
			st.bind(name, c.registry.register(producer, ss, name, c.exportField(meta, producer.subgraph, name)))
		}

		key := synthesisKey{ss.ID, best.subgraph}
		c.synthesizing[key] = true
		err := c.resolve(producer, resolver.Requires, ss, true)
		delete(c.synthesizing, key)
		if err != nil {
			return nil, err
		}
		c.reexportKeys(producer, resolver)
		names = without(names, best.covers)
	}
	return nil, nil
}

func (c *planningContext) betterSupplier(st *step, a, b supplier) bool {
	if len(a.covers) != len(b.covers) {
		return len(a.covers) > len(b.covers)
	}
	aDep := a.step != nil && st.depSet[a.step.id]
	bDep := b.step != nil && st.depSet[b.step.id]
	if aDep != bDep {
		return aDep
	}
	if (a.step != nil) != (b.step != nil) {
		return a.step != nil
	}
	ai, bi := c.subgraphIndex(a.subgraph), c.subgraphIndex(b.subgraph)
	if ai != bi {
		return ai < bi
	}
	return a.step != nil && b.step != nil && a.step.id < b.step.id
}

// exportable returns the names subgraph defines as field variables of the type.
func exportable(meta *ir.TypeMetadata, subgraph string, names []string) []string {
	var out []string
	for _, name := range names {
		if v := meta.VariableFor(subgraph, name); v != nil && v.Kind == ir.VariableKindField {
			out = append(out, name)
		}
	}
	return out
}

// exportField returns the subgraph field selected to export a variable.
func (c *planningContext) exportField(meta *ir.TypeMetadata, subgraph, name string) string {
	v := meta.VariableFor(subgraph, name)
	if b := meta.Field(v.Select).Binding(subgraph); b != nil {
		return b.Name
	}
	return v.Select
}

// reexportKeys publishes the keys of a batch-by-key resolver from st itself.
func (c *planningContext) reexportKeys(st *step, r *ir.ResolverDefinition) {
	if r.Kind != ir.ResolverKindBatchByKey {
		return
	}
	meta := c.meta(st.ss.Type)
	for _, name := range r.Requires {
		if meta.VariableFor(st.subgraph, name) == nil {
			continue
		}
		c.registry.reexport(st, st.ss, name, c.exportField(meta, st.subgraph, name))
	}
}

func without(names, remove []string) []string {
	var out []string
	for _, n := range names {
		if !containsString(remove, n) {
			out = append(out, n)
		}
	}
	return out
}
