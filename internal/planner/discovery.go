package planner

import (
	"sort"
	"strings"

	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/introspection"
	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/operation"
)

// discoveredPlan is the output of step discovery: every selection is
// covered by exactly one step, variables are not resolved yet.
type discoveredPlan struct {
	steps []*step
}

// workItem is a group of selections of one selection set that still needs
// a step.
type workItem struct {
	ss         *operation.SelectionSet
	selections []*operation.Selection
	path       []*operation.Selection
	// lookup is set on the entity item of a global-id lookup.
	lookup *step
}

// discover partitions the operation into steps. Nested selection sets are
// processed through a queue of work items.
func (c *planningContext) discover() (*discoveredPlan, error) {
	root := c.op.RootSelectionSet()
	pending := queue.New()

	var regular, introspected, lookups []*operation.Selection
	for _, sel := range root.Selections {
		switch {
		case c.isQuery() && introspection.IsField(sel.FieldName):
			introspected = append(introspected, sel)
		case c.isQuery() && c.isNodeLookup(sel):
			lookups = append(lookups, sel)
		default:
			regular = append(regular, sel)
		}
	}

	if len(regular) > 0 {
		if err := c.processItem(&workItem{ss: root, selections: regular}, pending); err != nil {
			return nil, err
		}
	}
	for _, sel := range lookups {
		if err := c.discoverLookup(sel, pending); err != nil {
			return nil, err
		}
	}
	if len(introspected) > 0 {
		st := newStep(stepIntrospection, root, "")
		for _, sel := range introspected {
			st.cover(sel)
		}
		c.addStep(st)
	}

	for pending.Len() > 0 {
		item := pending.PopFront().(*workItem)
		if err := c.processItem(item, pending); err != nil {
			return nil, err
		}
	}

	if err := c.assertComplete(); err != nil {
		return nil, err
	}
	return &discoveredPlan{steps: c.steps}, nil
}

// isNodeLookup reports whether sel is node(id:) or nodes(ids:) on the query
// root returning an abstract type.
func (c *planningContext) isNodeLookup(sel *operation.Selection) bool {
	if sel.Field == nil || sel.Owner.Parent != nil {
		return false
	}
	switch {
	case sel.FieldName == "node" && sel.Argument("id") != nil:
	case sel.FieldName == "nodes" && sel.Argument("ids") != nil:
	default:
		return false
	}
	t := c.op.Schema.Type(sel.Field.Type.GetNamedType())
	return t != nil && t.IsAbstract()
}

// discoverLookup opens the lookup step for a node field and queues one
// entity item per concrete type the operation asks for.
func (c *planningContext) discoverLookup(sel *operation.Selection, pending *queue.Queue) error {
	st := newStep(stepNode, sel.Owner, "")
	st.lookup = sel
	st.cover(sel)
	c.addStep(st)

	for _, child := range c.op.ChildSets(sel) {
		st.touch(child)
		if !c.lookupPresent(sel, child) {
			// Only id and __typename are selected: the id answers them.
			st.passthrough = append(st.passthrough, child.Type.Name)
			for _, s := range child.Selections {
				st.cover(s)
			}
			continue
		}
		pending.PushBack(&workItem{
			ss:         child,
			selections: child.Selections,
			path:       []*operation.Selection{sel},
			lookup:     st,
		})
	}
	return nil
}

func (c *planningContext) lookupPresent(sel *operation.Selection, child *operation.SelectionSet) bool {
	if containsString(sel.TypeConditions, child.Type.Name) {
		return true
	}
	for _, s := range child.Selections {
		if !s.IsTypename() && !(s.FieldName == "id" && !s.HasChildren()) {
			return true
		}
	}
	return false
}

// processItem opens steps for item until every selection is covered.
func (c *planningContext) processItem(item *workItem, pending *queue.Queue) error {
	leftovers := item.selections
	tried := map[string]bool{}
	mutation := c.op.IsMutationRoot(item.ss)

	for len(leftovers) > 0 {
		var subgraph string
		var err error
		switch {
		case mutation:
			subgraph, err = c.mutationSubgraph(leftovers)
		case item.lookup != nil && !c.lookupOpened(item):
			subgraph, err = c.bestSubgraph(item, leftovers, tried, c.lookupSubgraph(item))
		default:
			subgraph, err = c.bestSubgraph(item, leftovers, tried, nil)
		}
		if err != nil {
			return err
		}
		tried[subgraph] = true

		st := newStep(stepSelection, item.ss, subgraph)
		st.path = item.path
		if item.lookup != nil && !c.lookupOpened(item) {
			st.kind = stepNodeEntity
			st.owner = item.lookup
		}
		rest, err := c.fillStep(st, item, leftovers, pending)
		if err != nil {
			return err
		}
		if len(st.covered) == 0 {
			if mutation {
				return errors.Wrapf(ErrMetadataInconsistency, "mutation field %q cannot be resolved by %s", leftovers[0].FieldName, subgraph)
			}
			continue
		}
		c.addStep(st)
		if st.kind == stepNodeEntity {
			item.lookup.entities = append(item.lookup.entities, st)
		}
		if mutation {
			if c.lastMut != nil {
				st.addDep(c.lastMut)
			}
			c.lastMut = st
		}
		leftovers = rest
	}
	return nil
}

// lookupOpened reports whether the entity step of a lookup item exists.
func (c *planningContext) lookupOpened(item *workItem) bool {
	for _, e := range item.lookup.entities {
		if e.ss == item.ss {
			return true
		}
	}
	return false
}

// lookupSubgraph restricts the first step of a lookup item to subgraphs
// that may answer lookups for the type with a single-key entity resolver.
func (c *planningContext) lookupSubgraph(item *workItem) func(string) bool {
	meta := c.meta(item.ss.Type)
	return func(subgraph string) bool {
		return meta.CanLookup(subgraph) && c.lookupResolver(item, subgraph) != nil
	}
}

func (c *planningContext) lookupResolver(item *workItem, subgraph string) *ir.ResolverDefinition {
	var best *ir.ResolverDefinition
	for _, r := range c.meta(item.ss.Type).ResolversFor(subgraph) {
		if r.Kind == ir.ResolverKindSubscribe || len(r.Requires) != 1 {
			continue
		}
		if best == nil || kindRank(r.Kind, false, false) < kindRank(best.Kind, false, false) {
			best = r
		}
	}
	return best
}

// bestSubgraph picks the subgraph serving most of leftovers. Subgraphs able
// to resolve the item are preferred, then the higher score, then
// declaration order.
func (c *planningContext) bestSubgraph(item *workItem, leftovers []*operation.Selection, tried map[string]bool, allow func(string) bool) (string, error) {
	best, bestScore, bestAdmissible := "", 0, false
	for _, sg := range c.project.Subgraphs {
		if tried[sg.Name] || (allow != nil && !allow(sg.Name)) {
			continue
		}
		score := c.score(leftovers, sg.Name)
		if score == 0 {
			continue
		}
		admissible := c.admissible(item, leftovers, sg.Name)
		if best == "" || (admissible && !bestAdmissible) || (admissible == bestAdmissible && score > bestScore) {
			best, bestScore, bestAdmissible = sg.Name, score, admissible
		}
	}
	if best == "" {
		return "", errors.Wrapf(ErrMetadataInconsistency, "no subgraph can serve %s on %s", selectionNames(leftovers), item.ss.Type.Name)
	}
	return best, nil
}

// mutationSubgraph picks the subgraph resolving the longest run of leading
// mutation fields.
func (c *planningContext) mutationSubgraph(leftovers []*operation.Selection) (string, error) {
	best, bestRun := "", 0
	for _, sg := range c.project.Subgraphs {
		run := 0
		for _, sel := range leftovers {
			if !sel.IsTypename() && len(c.meta(sel.DeclaringType).Field(sel.FieldName).ResolversFor(sg.Name)) == 0 {
				break
			}
			run++
		}
		if run > bestRun {
			best, bestRun = sg.Name, run
		}
	}
	if best == "" {
		return "", errors.Wrapf(ErrMetadataInconsistency, "no subgraph can resolve mutation field %q", leftovers[0].FieldName)
	}
	return best, nil
}

// score counts the selections subgraph serves, through nested selection sets.
func (c *planningContext) score(selections []*operation.Selection, subgraph string) int {
	n := 0
	stack := append([]*operation.Selection(nil), selections...)
	for len(stack) > 0 {
		sel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !c.bound(sel, subgraph) {
			continue
		}
		n++
		for _, child := range c.op.ChildSets(sel) {
			stack = append(stack, child.Selections...)
		}
	}
	return n
}

// admissible reports whether subgraph can resolve the item at all.
func (c *planningContext) admissible(item *workItem, leftovers []*operation.Selection, subgraph string) bool {
	if item.ss.Parent == nil {
		return true
	}
	if c.entityResolver(item, subgraph, c.contextVariables(item)) != nil {
		return true
	}
	for _, sel := range leftovers {
		if !sel.IsTypename() && len(c.fieldResolvers(item.ss, sel, subgraph)) > 0 {
			return true
		}
	}
	return c.reachable(item.path, subgraph)
}

// reachable reports whether every selection on path is bound in subgraph.
func (c *planningContext) reachable(path []*operation.Selection, subgraph string) bool {
	for _, sel := range path {
		if !c.bound(sel, subgraph) {
			return false
		}
	}
	return true
}

// contextVariables returns the variables available to selections of the
// item: the field variables its type exports from any subgraph.
func (c *planningContext) contextVariables(item *workItem) map[string]bool {
	vars := map[string]bool{}
	if item.ss.Parent == nil {
		return vars
	}
	meta := c.meta(item.ss.Type)
	if meta == nil {
		return vars
	}
	for _, v := range meta.Variables {
		vars[v.Name] = true
	}
	return vars
}

// entityResolver picks the entity resolver of the item type in subgraph
// whose requirements are all in context.
func (c *planningContext) entityResolver(item *workItem, subgraph string, inContext map[string]bool) *ir.ResolverDefinition {
	if item.lookup != nil && !c.lookupOpened(item) {
		return c.lookupResolver(item, subgraph)
	}
	list := listContext(item.path)
	var best *ir.ResolverDefinition
	for _, r := range c.meta(item.ss.Type).ResolversFor(subgraph) {
		if r.Kind == ir.ResolverKindSubscribe || unmet(r, inContext, nil) > 0 {
			continue
		}
		if best == nil || kindRank(r.Kind, list, false) < kindRank(best.Kind, list, false) {
			best = r
		}
	}
	return best
}

// fieldResolvers returns the resolvers of sel usable at ss in subgraph.
func (c *planningContext) fieldResolvers(ss *operation.SelectionSet, sel *operation.Selection, subgraph string) []*ir.ResolverDefinition {
	var out []*ir.ResolverDefinition
	subscription := c.isSubscriptionRoot(ss)
	for _, r := range c.meta(sel.DeclaringType).Field(sel.FieldName).ResolversFor(subgraph) {
		if r.Kind == ir.ResolverKindSubscribe && !subscription {
			continue
		}
		out = append(out, r)
	}
	return out
}

// fieldResolver ranks the resolvers of sel: fewer unmet requirements, then
// the kind preferred in context, then declaration order.
func (c *planningContext) fieldResolver(item *workItem, sel *operation.Selection, subgraph string, inContext map[string]bool) *ir.ResolverDefinition {
	args := argumentVariables(c.meta(sel.DeclaringType).Field(sel.FieldName), subgraph)
	list := listContext(item.path)
	subscription := c.isSubscriptionRoot(item.ss)
	var best *ir.ResolverDefinition
	bestUnmet := 0
	for _, r := range c.fieldResolvers(item.ss, sel, subgraph) {
		n := unmet(r, inContext, args)
		if best == nil || n < bestUnmet ||
			(n == bestUnmet && kindRank(r.Kind, list, subscription) < kindRank(best.Kind, list, subscription)) {
			best, bestUnmet = r, n
		}
	}
	return best
}

func argumentVariables(field *ir.FieldMetadata, subgraph string) map[string]bool {
	out := map[string]bool{}
	for _, v := range field.ArgumentVariables(subgraph) {
		out[v.Name] = true
	}
	return out
}

// unmet counts the requirements of r found in neither set.
func unmet(r *ir.ResolverDefinition, inContext, args map[string]bool) int {
	n := 0
	for _, name := range r.Requires {
		if !inContext[name] && !args[name] {
			n++
		}
	}
	return n
}

// kindRank orders resolver kinds, lower first. Subscriptions lead at the
// subscription root; batch kinds lead in list context.
func kindRank(kind ir.ResolverKind, list, subscription bool) int {
	if subscription {
		if kind == ir.ResolverKindSubscribe {
			return 0
		}
		return 1 + kindRank(kind, list, false)
	}
	switch kind {
	case ir.ResolverKindQuery:
		if list {
			return 2
		}
		return 0
	case ir.ResolverKindBatch:
		if list {
			return 0
		}
		return 1
	case ir.ResolverKindBatchByKey:
		if list {
			return 1
		}
		return 2
	}
	return 3
}

type stepMode int

const (
	modeEntity stepMode = iota
	modeResolver
	modePath
)

// fillStep assigns the leftovers subgraph can serve to st and returns the
// rest. Nested selections the subgraph does not serve become new items.
func (c *planningContext) fillStep(st *step, item *workItem, leftovers []*operation.Selection, pending *queue.Queue) ([]*operation.Selection, error) {
	inContext := c.contextVariables(item)
	mode := modeResolver
	if item.ss.Parent != nil {
		if r := c.entityResolver(item, st.subgraph, inContext); r != nil {
			st.entity = r
			mode = modeEntity
			for _, name := range r.Requires {
				if st.kind != stepNodeEntity {
					st.require(name)
				}
			}
		} else if !c.anyFieldResolver(item, leftovers, st.subgraph) {
			if !c.reachable(item.path, st.subgraph) {
				return nil, errors.Wrapf(ErrUnreachableStep, "%s cannot reach %s at %s", st.subgraph, item.ss.Type.Name, pathString(item.path))
			}
			mode = modePath
		}
	}

	mutation := c.op.IsMutationRoot(item.ss)
	var rest []*operation.Selection
	for i, sel := range leftovers {
		if !c.bound(sel, st.subgraph) {
			if mutation {
				return append(rest, leftovers[i:]...), nil
			}
			rest = append(rest, sel)
			continue
		}
		if mode == modeResolver && sel.IsTypename() && item.ss.Parent != nil {
			// a resolver field returns another type: leave it to an entity
			// or path step of the selection set
			rest = append(rest, sel)
			continue
		}
		if mode == modeResolver && !sel.IsTypename() {
			r := c.fieldResolver(item, sel, st.subgraph, inContext)
			if r == nil {
				if mutation {
					return append(rest, leftovers[i:]...), nil
				}
				rest = append(rest, sel)
				continue
			}
			st.roots = append(st.roots, fieldResolver{sel: sel, resolver: r})
			args := argumentVariables(c.meta(sel.DeclaringType).Field(sel.FieldName), st.subgraph)
			for _, name := range r.Requires {
				if !args[name] {
					st.require(name)
				}
			}
		}
		c.coverSelection(st, sel, pending)
	}
	return rest, nil
}

func (c *planningContext) anyFieldResolver(item *workItem, leftovers []*operation.Selection, subgraph string) bool {
	for _, sel := range leftovers {
		if !sel.IsTypename() && c.bound(sel, subgraph) && len(c.fieldResolvers(item.ss, sel, subgraph)) > 0 {
			return true
		}
	}
	return false
}

// coverSelection assigns sel and every nested selection bound in the step
// subgraph to st. Unbound nested selections are queued per selection set.
func (c *planningContext) coverSelection(st *step, sel *operation.Selection, pending *queue.Queue) {
	st.cover(sel)
	sets := append([]*operation.SelectionSet(nil), c.op.ChildSets(sel)...)
	for i := 0; i < len(sets); i++ {
		ss := sets[i]
		st.touch(ss)
		var rest []*operation.Selection
		for _, child := range ss.Selections {
			if !c.bound(child, st.subgraph) {
				rest = append(rest, child)
				continue
			}
			st.cover(child)
			sets = append(sets, c.op.ChildSets(child)...)
		}
		if len(rest) > 0 {
			pending.PushBack(&workItem{ss: ss, selections: rest, path: c.op.Path(ss)})
		}
	}
}

// assertComplete checks that every selection is covered exactly once.
// Selections below introspection fields are answered locally.
func (c *planningContext) assertComplete() error {
	counts := make([]int, len(c.op.Selections()))
	skip := make([]bool, len(c.op.Selections()))
	for _, st := range c.steps {
		for _, sel := range st.covered {
			counts[sel.ID]++
		}
		if st.kind != stepIntrospection {
			continue
		}
		for _, sel := range st.covered {
			sets := append([]*operation.SelectionSet(nil), c.op.ChildSets(sel)...)
			for i := 0; i < len(sets); i++ {
				for _, child := range sets[i].Selections {
					skip[child.ID] = true
					sets = append(sets, c.op.ChildSets(child)...)
				}
			}
		}
	}
	for _, sel := range c.op.Selections() {
		if skip[sel.ID] || counts[sel.ID] == 1 {
			continue
		}
		return errors.Wrapf(ErrIncompletePlan, "selection %s.%s covered %d times", sel.DeclaringType.Name, sel.ResponseName, counts[sel.ID])
	}
	return nil
}

func selectionNames(selections []*operation.Selection) string {
	names := make([]string, len(selections))
	for i, sel := range selections {
		names[i] = sel.ResponseName
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func pathString(path []*operation.Selection) string {
	if len(path) == 0 {
		return "root"
	}
	names := make([]string, len(path))
	for i, sel := range path {
		names[i] = sel.ResponseName
	}
	return strings.Join(names, ".")
}
