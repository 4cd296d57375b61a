// Package operation compiles an executable GraphQL operation against the
// gateway schema into an immutable selection tree.
//
// Every selection set of the tree belongs to one concrete object type and is
// stored in an arena on the Operation, indexed by its ID. Abstract fields own
// one child selection set per concrete type they can resolve to.
package operation

import (
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/schema"
)

// Operation is a compiled operation. It is read-only once Compile returns.
type Operation struct {
	Name      string
	Type      language.Operation
	RootType  *schema.Type
	Variables language.VariableDefinitionList
	Schema    *schema.Schema

	sets       []*SelectionSet
	selections []*Selection
}

// SelectionSet is the set of fields requested on one concrete object type.
type SelectionSet struct {
	ID         int
	Type       *schema.Type
	Parent     *Selection // nil for the root selection set
	Selections []*Selection
}

// Selection is one field of a selection set after merging every occurrence
// that shares its response name.
type Selection struct {
	ID            int
	ResponseName  string
	FieldName     string
	DeclaringType *schema.Type
	Field         *schema.Field // nil for __typename
	Arguments     language.ArgumentList
	// Directives holds @skip and @include directives whose condition is a
	// variable. Literal conditions are applied during compilation.
	Directives language.DirectiveList
	// TypeConditions lists the concrete types named by fragments directly
	// inside the field, sorted by name.
	TypeConditions []string
	Owner          *SelectionSet
	Nodes          []*language.Field

	children []*SelectionSet
}

// RootSelectionSet returns the selection set of the operation root type.
func (o *Operation) RootSelectionSet() *SelectionSet { return o.sets[0] }

// SelectionSets returns every selection set in ID order.
func (o *Operation) SelectionSets() []*SelectionSet { return o.sets }

// SelectionSetByID returns the selection set with the given ID.
func (o *Operation) SelectionSetByID(id int) *SelectionSet { return o.sets[id] }

// Selections returns every selection in ID order.
func (o *Operation) Selections() []*Selection { return o.selections }

// PossibleTypes returns the concrete types sel has a child selection set for,
// sorted by name.
func (o *Operation) PossibleTypes(sel *Selection) []*schema.Type {
	out := make([]*schema.Type, len(sel.children))
	for i, ss := range sel.children {
		out[i] = ss.Type
	}
	return out
}

// SelectionSet returns the child selection set of sel for concrete type t,
// or nil when sel selects nothing on t.
func (o *Operation) SelectionSet(sel *Selection, t *schema.Type) *SelectionSet {
	for _, ss := range sel.children {
		if ss.Type == t || ss.Type.Name == t.Name {
			return ss
		}
	}
	return nil
}

// ChildSets returns the child selection sets of sel, ordered by type name.
func (o *Operation) ChildSets(sel *Selection) []*SelectionSet { return sel.children }

// Path returns the selections leading from the root to ss, outermost first.
func (o *Operation) Path(ss *SelectionSet) []*Selection {
	var path []*Selection
	for cur := ss.Parent; cur != nil; cur = cur.Owner.Parent {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// VariableDefinition returns the declaration of the named operation variable.
func (o *Operation) VariableDefinition(name string) *language.VariableDefinition {
	return o.Variables.ForName(name)
}

// IsRoot reports whether ss is the root selection set.
func (o *Operation) IsRoot(ss *SelectionSet) bool { return ss.ID == 0 }

// IsMutationRoot reports whether ss is the root selection set of a mutation.
func (o *Operation) IsMutationRoot(ss *SelectionSet) bool {
	return ss.ID == 0 && o.Type == language.Mutation
}

// IsSubscriptionRoot reports whether ss is the root selection set of a subscription.
func (o *Operation) IsSubscriptionRoot(ss *SelectionSet) bool {
	return ss.ID == 0 && o.Type == language.Subscription
}

// HasChildren reports whether sel has a nested selection set.
func (s *Selection) HasChildren() bool { return len(s.children) > 0 }

// IsTypename reports whether sel is the __typename meta field.
func (s *Selection) IsTypename() bool { return s.FieldName == "__typename" }

// IsList reports whether the field returns a list.
func (s *Selection) IsList() bool { return s.Field != nil && s.Field.Type.IsList() }

// Argument returns the argument passed to the field with the given name.
func (s *Selection) Argument(name string) *language.Argument {
	return s.Arguments.ForName(name)
}

// ArgumentValues resolves the field arguments against the variable values.
func (s *Selection) ArgumentValues(variables map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Arguments))
	for _, arg := range s.Arguments {
		v, err := arg.Value.Value(variables)
		if err != nil {
			return nil, err
		}
		out[arg.Name] = v
	}
	return out, nil
}
