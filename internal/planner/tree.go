package planner

import (
	"sort"

	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
)

// unit is a node of the tree: a step without an owner together with the
// entity steps it owns.
type unit struct {
	step       *step
	deps       []*unit
	dependents []*unit
	waiting    int
	sets       []*operation.SelectionSet
	placed     bool
}

func (u *unit) mutation(c *planningContext) bool {
	return c.op.IsMutationRoot(u.step.ss) && u.step.subgraph != ""
}

// treeBuilder places units batch by batch. remaining counts, per selection
// set id, the units contributing to the set that are not placed yet.
type treeBuilder struct {
	c         *planningContext
	b         *builtPlan
	units     []*unit
	remaining []int
	composed  []bool
}

// buildTree assembles the plan root from the built nodes.
func (c *planningContext) buildTree(b *builtPlan) (plan.Node, error) {
	t := &treeBuilder{
		c:         c,
		b:         b,
		remaining: make([]int, len(c.op.SelectionSets())),
		composed:  make([]bool, len(c.op.SelectionSets())),
	}
	t.collectUnits()

	var head *unit
	if c.op.Type == language.Subscription {
		head = t.subscriptionUnit()
	}
	seq := &plan.Sequence{}
	if head != nil {
		done := t.place(head, nil)
		t.release(head, nil)
		if len(done) > 0 {
			sort.Ints(done)
			seq.Nodes = append(seq.Nodes, &plan.Compose{SelectionSetIDs: done})
		}
	}
	if err := t.schedule(seq); err != nil {
		return nil, err
	}
	if head != nil {
		sub := b.node(head.step).(*plan.Subscribe)
		sub.Then = seq
		return sub, nil
	}
	return seq, nil
}

func (t *treeBuilder) collectUnits() {
	byStep := map[int]*unit{}
	for _, st := range t.b.steps {
		if st.owner != nil {
			continue
		}
		u := &unit{step: st}
		byStep[st.id] = u
		t.units = append(t.units, u)
	}
	owning := func(st *step) *unit {
		for st.owner != nil {
			st = st.owner
		}
		return byStep[st.id]
	}

	for _, st := range t.b.steps {
		u := owning(st)
		for _, ss := range st.touched {
			if !containsSet(u.sets, ss) {
				u.sets = append(u.sets, ss)
			}
		}
		for _, d := range st.deps {
			du := owning(d)
			if du == u || containsUnit(u.deps, du) {
				continue
			}
			u.deps = append(u.deps, du)
			du.dependents = append(du.dependents, u)
		}
	}
	for _, u := range t.units {
		u.waiting = len(u.deps)
		for _, ss := range u.sets {
			t.remaining[ss.ID]++
		}
	}
}

// subscriptionUnit returns the unit of the root Subscribe step.
func (t *treeBuilder) subscriptionUnit() *unit {
	for _, u := range t.units {
		if u.step.subgraph != "" && t.c.op.IsRoot(u.step.ss) && u.step.resolverKind() == ir.ResolverKindSubscribe {
			return u
		}
	}
	return nil
}

// schedule appends every unplaced unit to seq in dependency order. A batch
// of independent units becomes a Parallel, mutation units are placed one at
// a time once nothing else is ready.
func (t *treeBuilder) schedule(seq *plan.Sequence) error {
	ready := queue.New()
	for _, u := range t.units {
		if !u.placed && u.waiting == 0 {
			ready.PushBack(u)
		}
	}

	for ready.Len() > 0 {
		var wave []*unit
		for ready.Len() > 0 {
			wave = append(wave, ready.PopFront().(*unit))
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].step.id < wave[j].step.id })

		var batch, deferred []*unit
		for _, u := range wave {
			if u.mutation(t.c) {
				deferred = append(deferred, u)
			} else {
				batch = append(batch, u)
			}
		}
		if len(batch) == 0 {
			batch, deferred = deferred[:1], deferred[1:]
		}
		for _, u := range deferred {
			ready.PushBack(u)
		}

		if len(batch) == 1 {
			seq.Nodes = append(seq.Nodes, t.b.node(batch[0].step))
		} else {
			par := &plan.Parallel{}
			for _, u := range batch {
				par.Nodes = append(par.Nodes, t.b.node(u.step))
			}
			seq.Nodes = append(seq.Nodes, par)
		}

		var done []int
		forceRoot := false
		for _, u := range batch {
			done = t.place(u, done)
			if u.mutation(t.c) {
				forceRoot = true
			}
			t.release(u, ready)
		}
		if forceRoot && !containsInt(done, 0) {
			done = append(done, 0)
		}
		if len(done) > 0 {
			sort.Ints(done)
			seq.Nodes = append(seq.Nodes, &plan.Compose{SelectionSetIDs: done})
		}
	}

	for _, u := range t.units {
		if !u.placed {
			return errors.Wrapf(ErrIncompletePlan, "step %d of %s was never placed", u.step.id, u.step.subgraph)
		}
	}
	return nil
}

// release frees the dependents of u, queueing those with nothing left to
// wait for. A nil queue only updates the counts.
func (t *treeBuilder) release(u *unit, ready *queue.Queue) {
	for _, d := range u.dependents {
		d.waiting--
		if d.waiting == 0 && !d.placed && ready != nil {
			ready.PushBack(d)
		}
	}
}

// place marks u placed and appends to done the selection sets whose last
// contributor it was.
func (t *treeBuilder) place(u *unit, done []int) []int {
	u.placed = true
	for _, ss := range u.sets {
		t.remaining[ss.ID]--
		if t.remaining[ss.ID] == 0 && !t.composed[ss.ID] {
			t.composed[ss.ID] = true
			done = append(done, ss.ID)
		}
	}
	return done
}

func containsSet(list []*operation.SelectionSet, ss *operation.SelectionSet) bool {
	for _, s := range list {
		if s == ss {
			return true
		}
	}
	return false
}

func containsUnit(list []*unit, u *unit) bool {
	for _, v := range list {
		if v == u {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
