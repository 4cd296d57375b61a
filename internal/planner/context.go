package planner

import (
	"strconv"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/schema"
)

type stepKind int

const (
	stepSelection stepKind = iota
	stepIntrospection
	stepNode
	stepNodeEntity
)

// fieldResolver binds a root selection of a step to the resolver fetching it.
type fieldResolver struct {
	sel      *operation.Selection
	resolver *ir.ResolverDefinition
}

// step fetches a group of selections from one subgraph. Discovery creates
// steps, requirements planning adds variables, exports and dependencies.
type step struct {
	id       int
	kind     stepKind
	parent   *operation.Selection // nil at the root
	ss       *operation.SelectionSet
	subgraph string
	entity   *ir.ResolverDefinition
	roots    []fieldResolver
	path     []*operation.Selection

	covered    []*operation.Selection
	coveredSet map[int]bool
	touched    []*operation.SelectionSet
	touchedSet map[int]bool

	// requires holds the variables that must come from another step.
	requires []string
	vars     map[string]string // variable -> state key
	varOrder []string
	deps     []*step
	depSet   map[int]bool

	exports    []*export
	keyExports []*export

	// lookup steps
	lookup      *operation.Selection
	entities    []*step
	owner       *step
	passthrough []string

	synthesized bool
}

func newStep(kind stepKind, ss *operation.SelectionSet, subgraph string) *step {
	st := &step{
		kind:       kind,
		parent:     ss.Parent,
		ss:         ss,
		subgraph:   subgraph,
		coveredSet: map[int]bool{},
		touchedSet: map[int]bool{},
		vars:       map[string]string{},
		depSet:     map[int]bool{},
	}
	st.touch(ss)
	return st
}

func (s *step) cover(sel *operation.Selection) {
	if s.coveredSet[sel.ID] {
		return
	}
	s.coveredSet[sel.ID] = true
	s.covered = append(s.covered, sel)
}

func (s *step) covers(sel *operation.Selection) bool { return s.coveredSet[sel.ID] }

func (s *step) touch(ss *operation.SelectionSet) {
	if s.touchedSet[ss.ID] {
		return
	}
	s.touchedSet[ss.ID] = true
	s.touched = append(s.touched, ss)
}

func (s *step) touches(ss *operation.SelectionSet) bool { return s.touchedSet[ss.ID] }

func (s *step) require(name string) {
	for _, r := range s.requires {
		if r == name {
			return
		}
	}
	s.requires = append(s.requires, name)
}

func (s *step) addDep(dep *step) {
	if dep == s || s.depSet[dep.id] {
		return
	}
	s.depSet[dep.id] = true
	s.deps = append(s.deps, dep)
}

// bind imports variable from the export e and depends on its producer.
func (s *step) bind(variable string, e *export) {
	if _, ok := s.vars[variable]; !ok {
		s.varOrder = append(s.varOrder, variable)
	}
	s.vars[variable] = e.key
	s.addDep(e.producer)
}

func (s *step) rootResolver(sel *operation.Selection) *ir.ResolverDefinition {
	for _, fr := range s.roots {
		if fr.sel == sel {
			return fr.resolver
		}
	}
	return nil
}

// resolverKind is the kind of the resolver that decides the node variant.
func (s *step) resolverKind() ir.ResolverKind {
	if s.entity != nil {
		return s.entity.Kind
	}
	for _, fr := range s.roots {
		if fr.resolver.Kind == ir.ResolverKindSubscribe {
			return fr.resolver.Kind
		}
	}
	if len(s.roots) > 0 {
		return s.roots[0].resolver.Kind
	}
	return ir.ResolverKindQuery
}

// export is one registration of the export registry.
type export struct {
	key      string
	ss       *operation.SelectionSet
	variable string
	field    string // subgraph field selected under the key
	producer *step
}

type registryKey struct {
	ss       int
	variable string
}

// registry is the append-only export registry of one planning run.
type registry struct {
	entries []*export
	byKey   map[registryKey][]*export
}

func newRegistry() *registry {
	return &registry{byKey: map[registryKey][]*export{}}
}

// register records that producer publishes variable for ss under a new
// state key, or returns its existing registration.
func (r *registry) register(producer *step, ss *operation.SelectionSet, variable, field string) *export {
	for _, e := range producer.exports {
		if e.ss == ss && e.variable == variable {
			return e
		}
	}
	e := r.add(producer, ss, variable, field)
	producer.exports = append(producer.exports, e)
	return e
}

// reexport records the batch key of a batch-by-key step under its own key.
func (r *registry) reexport(producer *step, ss *operation.SelectionSet, variable, field string) *export {
	for _, e := range producer.keyExports {
		if e.ss == ss && e.variable == variable {
			return e
		}
	}
	e := r.add(producer, ss, variable, field)
	producer.keyExports = append(producer.keyExports, e)
	return e
}

func (r *registry) add(producer *step, ss *operation.SelectionSet, variable, field string) *export {
	e := &export{
		key:      exportPrefix + strconv.Itoa(len(r.entries)+1),
		ss:       ss,
		variable: variable,
		field:    field,
		producer: producer,
	}
	r.entries = append(r.entries, e)
	k := registryKey{ss.ID, variable}
	r.byKey[k] = append(r.byKey[k], e)
	return e
}

// lookup returns the registrations for variable on ss, oldest first.
func (r *registry) lookup(ss *operation.SelectionSet, variable string) []*export {
	return r.byKey[registryKey{ss.ID, variable}]
}

const (
	exportPrefix = "_fusion_exports_"
	// lookupVariable carries the decoded id into global-id entity requests.
	lookupVariable = "_fusion_node_id"
)

// planningContext is the state of one planning run. It is owned by a single
// call and handed from phase to phase.
type planningContext struct {
	project  *ir.Project
	op       *operation.Operation
	steps    []*step
	registry *registry
	lastMut  *step
	// synthesizing marks the entity steps being synthesized, by selection
	// set and subgraph, while their own requirements are resolved.
	synthesizing map[synthesisKey]bool
}

type synthesisKey struct {
	ss       int
	subgraph string
}

func newPlanningContext(project *ir.Project, op *operation.Operation) *planningContext {
	return &planningContext{project: project, op: op, registry: newRegistry(), synthesizing: map[synthesisKey]bool{}}
}

func (c *planningContext) addStep(st *step) {
	st.id = len(c.steps) + 1
	c.steps = append(c.steps, st)
}

func (c *planningContext) meta(t *schema.Type) *ir.TypeMetadata {
	return c.project.Type(t.Name)
}

// binding returns how subgraph serves sel, or nil. __typename is served
// everywhere.
func (c *planningContext) binding(sel *operation.Selection, subgraph string) *ir.FieldBinding {
	if sel.IsTypename() {
		return &ir.FieldBinding{Subgraph: subgraph, Name: "__typename"}
	}
	return c.meta(sel.DeclaringType).Field(sel.FieldName).Binding(subgraph)
}

func (c *planningContext) bound(sel *operation.Selection, subgraph string) bool {
	return c.binding(sel, subgraph) != nil
}

func (c *planningContext) subgraphIndex(name string) int {
	if sg := c.project.Subgraph(name); sg != nil {
		return sg.Index
	}
	return len(c.project.Subgraphs)
}

// dependsOn reports whether a depends on b, directly or transitively.
func (c *planningContext) dependsOn(a, b *step) bool {
	seen := map[int]bool{}
	stack := []*step{a}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range cur.deps {
			if d == b {
				return true
			}
			if !seen[d.id] {
				seen[d.id] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}

func (c *planningContext) isSubscriptionRoot(ss *operation.SelectionSet) bool {
	return c.op.IsSubscriptionRoot(ss)
}

func (c *planningContext) isQuery() bool { return c.op.Type == language.Query }

// listContext reports whether any selection on path returns a list.
func listContext(path []*operation.Selection) bool {
	for _, sel := range path {
		if sel.IsList() {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
