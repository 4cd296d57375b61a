package operation

import (
	"sort"

	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/schema"
)

// Compile builds the selection tree of the named operation in doc. When
// operationName is empty the document must hold exactly one operation.
// doc is expected to be validated against s already.
func Compile(s *schema.Schema, doc *language.QueryDocument, operationName string) (*Operation, error) {
	def, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}
	var root *schema.Type
	switch def.Operation {
	case language.Mutation:
		root = s.GetMutationType()
	case language.Subscription:
		root = s.GetSubscriptionType()
	default:
		root = s.GetQueryType()
	}
	if root == nil {
		return nil, errors.Errorf("schema does not support %s operations", def.Operation)
	}

	c := &compiler{
		schema: s,
		doc:    doc,
		op: &Operation{
			Name:      def.Name,
			Type:      def.Operation,
			RootType:  root,
			Variables: def.VariableDefinitions,
			Schema:    s,
		},
	}
	rootSet, err := c.collect(root, nil, []language.SelectionSet{def.SelectionSet})
	if err != nil {
		return nil, err
	}
	pending := queue.New()
	c.register(rootSet, pending)

	for pending.Len() > 0 {
		sel := pending.PopFront().(*Selection)
		named := s.Type(sel.Field.Type.GetNamedType())
		if named == nil {
			return nil, errors.Errorf("unknown type %q of field %s.%s", sel.Field.Type.GetNamedType(), sel.DeclaringType.Name, sel.FieldName)
		}
		sources := make([]language.SelectionSet, 0, len(sel.Nodes))
		for _, node := range sel.Nodes {
			sources = append(sources, node.SelectionSet)
		}
		for _, pt := range s.PossibleTypes(named) {
			child, err := c.collect(pt, sel, sources)
			if err != nil {
				return nil, err
			}
			if len(child.Selections) == 0 && named.IsAbstract() {
				continue
			}
			sel.children = append(sel.children, child)
			c.register(child, pending)
		}
		sel.TypeConditions = c.typeConditions(sources)
	}
	return c.op, nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) != 1 {
			return nil, errors.Errorf("operation name is required when the document has %d operations", len(doc.Operations))
		}
		return doc.Operations[0], nil
	}
	def := doc.Operations.ForName(name)
	if def == nil {
		return nil, errors.Errorf("unknown operation %q", name)
	}
	return def, nil
}

type compiler struct {
	schema *schema.Schema
	doc    *language.QueryDocument
	op     *Operation
}

// register assigns ids to ss and its selections and queues the selections
// with a nested selection set.
func (c *compiler) register(ss *SelectionSet, pending *queue.Queue) {
	ss.ID = len(c.op.sets)
	c.op.sets = append(c.op.sets, ss)
	for _, sel := range ss.Selections {
		sel.ID = len(c.op.selections)
		c.op.selections = append(c.op.selections, sel)
		if sel.Field != nil {
			if t := c.schema.Type(sel.Field.Type.GetNamedType()); t != nil && t.IsComposite() {
				pending.PushBack(sel)
			}
		}
	}
}

// collect merges the fields of sources that apply to the object type into a
// selection set.
func (c *compiler) collect(objectType *schema.Type, parent *Selection, sources []language.SelectionSet) (*SelectionSet, error) {
	grouped := newCollectedFieldMap()
	visited := map[string]bool{}
	for _, src := range sources {
		c.collectFields(objectType, src, nil, grouped, visited)
	}

	ss := &SelectionSet{Type: objectType, Parent: parent}
	for _, group := range grouped.fields {
		first := group.Fields[0]
		sel := &Selection{
			ResponseName:  group.ResponseName,
			FieldName:     first.Name,
			DeclaringType: objectType,
			Arguments:     first.Arguments,
			Directives:    group.Conditions,
			Owner:         ss,
			Nodes:         group.Fields,
		}
		if first.Name != "__typename" {
			sel.Field = objectType.Field(first.Name)
			if sel.Field == nil {
				return nil, errors.Errorf("cannot query field %q on type %q", first.Name, objectType.Name)
			}
		}
		ss.Selections = append(ss.Selections, sel)
	}
	return ss, nil
}

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []*collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
	Conditions   language.DirectiveList
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (m *collectedFieldMap) add(responseName string, field *language.Field, conditions language.DirectiveList) {
	if idx, ok := m.index[responseName]; ok {
		f := m.fields[idx]
		f.Fields = append(f.Fields, field)
		// requested whenever any occurrence is: keep the conditions only
		// when every occurrence carries the same ones
		if !sameConditions(f.Conditions, conditions) {
			f.Conditions = nil
		}
		return
	}
	m.index[responseName] = len(m.fields)
	m.fields = append(m.fields, &collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
		Conditions:   conditions,
	})
}

func sameConditions(a, b language.DirectiveList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
		x, y := a[i].Arguments.ForName("if"), b[i].Arguments.ForName("if")
		if x == nil || y == nil || x.Value.Kind != y.Value.Kind || x.Value.Raw != y.Value.Raw {
			return false
		}
	}
	return true
}

// collectFields walks a selection set, descending into fragments that apply
// to objectType. conditions carries the variable-driven @skip/@include
// directives of the enclosing fragments.
func (c *compiler) collectFields(objectType *schema.Type, selectionSet language.SelectionSet, conditions language.DirectiveList, grouped *collectedFieldMap, visited map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			include, conds := evaluateConditions(sel.Directives, conditions)
			if !include {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel, conds)

		case *language.InlineFragment:
			include, conds := evaluateConditions(sel.Directives, conditions)
			if !include || !c.schema.DoesTypeApply(objectType, sel.TypeCondition) {
				continue
			}
			c.collectFields(objectType, sel.SelectionSet, conds, grouped, visited)

		case *language.FragmentSpread:
			include, conds := evaluateConditions(sel.Directives, conditions)
			if !include || visited[sel.Name] {
				continue
			}
			def := c.doc.Fragments.ForName(sel.Name)
			if def == nil || !c.schema.DoesTypeApply(objectType, def.TypeCondition) {
				continue
			}
			visited[sel.Name] = true
			c.collectFields(objectType, def.SelectionSet, conds, grouped, visited)
		}
	}
}

// evaluateConditions applies literal @skip/@include conditions and appends
// variable-driven ones to inherited.
func evaluateConditions(directives language.DirectiveList, inherited language.DirectiveList) (bool, language.DirectiveList) {
	out := inherited
	for _, d := range directives {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil || arg.Value == nil {
			continue
		}
		if arg.Value.Kind == language.Variable {
			out = append(out[:len(out):len(out)], d)
			continue
		}
		literal := arg.Value.Raw == "true"
		if d.Name == "skip" && literal {
			return false, nil
		}
		if d.Name == "include" && !literal {
			return false, nil
		}
	}
	return true, out
}

// typeConditions returns the concrete types named by the fragments of
// sources, expanding abstract conditions.
func (c *compiler) typeConditions(sources []language.SelectionSet) []string {
	seen := map[string]bool{}
	visited := map[string]bool{}
	stack := append([]language.SelectionSet(nil), sources...)
	for len(stack) > 0 {
		set := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, selection := range set {
			var cond string
			switch sel := selection.(type) {
			case *language.InlineFragment:
				cond = sel.TypeCondition
				stack = append(stack, sel.SelectionSet)
			case *language.FragmentSpread:
				def := c.doc.Fragments.ForName(sel.Name)
				if def == nil || visited[sel.Name] {
					continue
				}
				visited[sel.Name] = true
				cond = def.TypeCondition
				stack = append(stack, def.SelectionSet)
			default:
				continue
			}
			if t := c.schema.Type(cond); t != nil {
				for _, pt := range c.schema.PossibleTypes(t) {
					seen[pt.Name] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
