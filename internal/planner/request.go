package planner

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
	"github.com/hanpama/fedplan/internal/schema"
)

type declaredVariable struct {
	name string
	typ  string
	ref  *schema.TypeRef
}

// requestPrinter writes the document a step sends to its subgraph.
type requestPrinter struct {
	c        *planningContext
	st       *step
	vars     []declaredVariable
	declared map[string]bool
}

// renderRequest generates the request of st and its transport feature.
func (c *planningContext) renderRequest(st *step, opType language.Operation) (plan.Request, plan.TransportFeature, error) {
	p := &requestPrinter{c: c, st: st, declared: map[string]bool{}}
	fields, err := p.body()
	if err != nil {
		return plan.Request{}, "", err
	}
	if st.kind == stepNodeEntity && len(fields) != 1 {
		return plan.Request{}, "", errors.Wrapf(ErrInvariantViolation, "lookup request for %s has %d root fields", st.ss.Type.Name, len(fields))
	}
	if len(fields) == 0 {
		fields = []string{"__typename"}
	}

	var b strings.Builder
	b.WriteString(string(opType))
	if c.op.Name != "" {
		b.WriteString(" " + c.op.Name + "_" + strconv.Itoa(st.id))
	}
	transport := plan.TransportStandard
	var names []string
	if len(p.vars) > 0 {
		parts := make([]string, len(p.vars))
		for i, v := range p.vars {
			parts[i] = "$" + v.name + ": " + v.typ
			names = append(names, v.name)
			if v.ref != nil && c.op.Schema.ContainsUpload(v.ref) {
				transport = plan.TransportExtended
			}
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	b.WriteString(" { " + strings.Join(fields, " ") + " }")
	return plan.Request{Operation: opType, Document: b.String(), Variables: names}, transport, nil
}

// body returns the root fields of the request.
func (p *requestPrinter) body() ([]string, error) {
	st := p.st
	switch {
	case st.entity != nil:
		head, err := p.template(st.entity, nil, "")
		if err != nil {
			return nil, err
		}
		inner, err := p.selections(st.ss)
		if err != nil {
			return nil, err
		}
		return []string{head + " { " + inner + " }"}, nil
	case len(st.roots) > 0:
		return p.rootFields()
	case st.parent != nil:
		field, err := p.pathField(0)
		if err != nil {
			return nil, err
		}
		return []string{field}, nil
	default:
		// requirement-only and __typename-only root steps
		fields, err := p.fields(st.ss)
		if err != nil {
			return nil, err
		}
		return append(fields, p.exportsAt(st.ss)...), nil
	}
}

// rootFields instantiates the resolver template of every covered selection
// of the step selection set. Only root steps hold selections without a
// resolver.
func (p *requestPrinter) rootFields() ([]string, error) {
	var out []string
	for _, sel := range p.st.ss.Selections {
		if !p.st.covers(sel) {
			continue
		}
		r := p.st.rootResolver(sel)
		if r == nil {
			if p.st.parent != nil {
				return nil, errors.Wrapf(ErrInvariantViolation, "%s.%s has no resolver in %s", sel.DeclaringType.Name, sel.ResponseName, p.st.subgraph)
			}
			field, err := p.field(sel)
			if err != nil {
				return nil, err
			}
			out = append(out, field)
			continue
		}
		field, err := p.template(r, sel, sel.ResponseName)
		if err != nil {
			return nil, err
		}
		if sel.Field != nil && p.isComposite(sel) {
			inner, err := p.children(sel)
			if err != nil {
				return nil, err
			}
			field += " { " + inner + " }"
		}
		out = append(out, field)
	}
	return append(out, p.exportsAt(p.st.ss)...), nil
}

// pathField reaches the step selection set through the fields leading to it
// from the root, starting at path[i].
func (p *requestPrinter) pathField(i int) (string, error) {
	path := p.st.path
	if i == len(path) {
		return p.selections(p.st.ss)
	}
	sel := path[i]
	head, err := p.fieldHead(sel)
	if err != nil {
		return "", err
	}
	inner, err := p.pathField(i + 1)
	if err != nil {
		return "", err
	}
	if p.isAbstract(sel) {
		next := p.st.ss
		if i+1 < len(path) {
			next = path[i+1].Owner
		}
		inner = "__typename ... on " + next.Type.Name + " { " + inner + " }"
	}
	return head + " { " + inner + " }", nil
}

// selections joins the covered selections of ss and the exports taken from
// it. An empty set selects __typename.
func (p *requestPrinter) selections(ss *operation.SelectionSet) (string, error) {
	fields, err := p.fields(ss)
	if err != nil {
		return "", err
	}
	fields = append(fields, p.exportsAt(ss)...)
	if len(fields) == 0 {
		return "__typename", nil
	}
	return strings.Join(fields, " "), nil
}

func (p *requestPrinter) fields(ss *operation.SelectionSet) ([]string, error) {
	var out []string
	for _, sel := range ss.Selections {
		if !p.st.covers(sel) {
			continue
		}
		field, err := p.field(sel)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

func (p *requestPrinter) exportsAt(ss *operation.SelectionSet) []string {
	var out []string
	for _, list := range [][]*export{p.st.exports, p.st.keyExports} {
		for _, e := range list {
			if e.ss == ss {
				out = append(out, e.key+": "+e.field)
			}
		}
	}
	return out
}

// field writes sel under its subgraph name with its nested selections.
func (p *requestPrinter) field(sel *operation.Selection) (string, error) {
	head, err := p.fieldHead(sel)
	if err != nil {
		return "", err
	}
	if sel.Field == nil || !p.isComposite(sel) {
		return head, nil
	}
	inner, err := p.children(sel)
	if err != nil {
		return "", err
	}
	return head + " { " + inner + " }", nil
}

func (p *requestPrinter) fieldHead(sel *operation.Selection) (string, error) {
	binding := p.c.binding(sel, p.st.subgraph)
	if binding == nil {
		return "", errors.Wrapf(ErrInvariantViolation, "%s does not serve %s.%s", p.st.subgraph, sel.DeclaringType.Name, sel.FieldName)
	}
	var b strings.Builder
	if sel.ResponseName != binding.Name {
		b.WriteString(sel.ResponseName + ": ")
	}
	b.WriteString(binding.Name)
	if len(sel.Arguments) > 0 {
		parts := make([]string, len(sel.Arguments))
		for i, arg := range sel.Arguments {
			parts[i] = arg.Name + ": " + p.value(arg.Value, p.operationVariable)
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	b.WriteString(p.directives(sel))
	return b.String(), nil
}

// directives forwards variable-driven @skip and @include.
func (p *requestPrinter) directives(sel *operation.Selection) string {
	var b strings.Builder
	for _, d := range sel.Directives {
		cond := d.Arguments.ForName("if")
		if cond == nil {
			continue
		}
		b.WriteString(" @" + d.Name + "(if: " + p.value(cond.Value, p.operationVariable) + ")")
	}
	return b.String()
}

// children writes the child selection sets of sel, one inline fragment per
// concrete type when the field is abstract.
func (p *requestPrinter) children(sel *operation.Selection) (string, error) {
	sets := p.c.op.ChildSets(sel)
	if !p.isAbstract(sel) {
		if len(sets) == 0 {
			return "__typename", nil
		}
		return p.selections(sets[0])
	}
	parts := []string{"__typename"}
	for _, ss := range sets {
		inner, err := p.selections(ss)
		if err != nil {
			return "", err
		}
		parts = append(parts, "... on "+ss.Type.Name+" { "+inner+" }")
	}
	return strings.Join(parts, " "), nil
}

// template instantiates the single field of a resolver. Argument variables
// take the argument values of sel, an argument the operation does not pass
// is dropped. Other variables are imported state.
func (p *requestPrinter) template(r *ir.ResolverDefinition, sel *operation.Selection, alias string) (string, error) {
	tpl := r.Template
	if tpl == nil {
		return "", errors.Wrapf(ErrInvariantViolation, "resolver %q of %s has no template", r.Select, r.Subgraph)
	}
	argVars := map[string]*ir.VariableDefinition{}
	if sel != nil {
		for _, v := range p.c.meta(sel.DeclaringType).Field(sel.FieldName).ArgumentVariables(p.st.subgraph) {
			argVars[v.Name] = v
		}
	}

	var b strings.Builder
	if alias != "" && alias != tpl.Name {
		b.WriteString(alias + ": ")
	}
	b.WriteString(tpl.Name)

	var parts []string
	var failed error
	for _, arg := range tpl.Arguments {
		if arg.Value.Kind == language.Variable {
			if v := argVars[arg.Value.Raw]; v != nil && sel.Argument(v.Argument) == nil {
				continue
			}
		}
		text := p.value(arg.Value, func(name string) string {
			if v := argVars[name]; v != nil {
				if a := sel.Argument(v.Argument); a != nil {
					return p.value(a.Value, p.operationVariable)
				}
				return "null"
			}
			ref, err := p.stateVariable(r, name)
			if err != nil && failed == nil {
				failed = err
			}
			return ref
		})
		parts = append(parts, arg.Name+": "+text)
	}
	if failed != nil {
		return "", failed
	}
	if len(parts) > 0 {
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	if sel != nil {
		b.WriteString(p.directives(sel))
	}
	return b.String(), nil
}

// stateVariable declares a variable imported from another step and returns
// its reference.
func (p *requestPrinter) stateVariable(r *ir.ResolverDefinition, name string) (string, error) {
	if p.st.kind == stepNodeEntity && r == p.st.entity {
		p.declare(lookupVariable, "ID!", schema.NonNullType(schema.NamedType("ID")))
		return "$" + lookupVariable, nil
	}
	if _, ok := p.st.vars[name]; !ok {
		return "", errors.Wrapf(ErrInvariantViolation, "variable %q of %s is not bound", name, p.st.subgraph)
	}
	typ := r.ArgumentType(name)
	explicit := typ != nil
	if !explicit {
		typ = p.variableType(name)
	}
	if typ == nil {
		return "", errors.Wrapf(ErrInvariantViolation, "variable %q of %s has no type", name, p.st.subgraph)
	}
	ref, text := schema.TypeRefOf(typ), typ.String()
	if r.Kind.IsBatch() && !explicit {
		ref = schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType(typ.NamedType()))))
		text = "[" + strings.TrimSuffix(text, "!") + "!]!"
	}
	p.declare(name, text, ref)
	return "$" + name, nil
}

// variableType finds the type of a field variable on the step type or the
// root type.
func (p *requestPrinter) variableType(name string) *ir.TypeExpr {
	for _, t := range []*schema.Type{p.st.ss.Type, p.c.op.RootType} {
		meta := p.c.meta(t)
		if meta == nil {
			continue
		}
		for _, v := range meta.Variables {
			if v.Name == name {
				return v.Type
			}
		}
	}
	return nil
}

func (p *requestPrinter) operationVariable(name string) string {
	if def := p.c.op.VariableDefinition(name); def != nil {
		p.declare(name, def.Type.String(), schema.TypeRefFromAST(def.Type))
	}
	return "$" + name
}

func (p *requestPrinter) declare(name, typ string, ref *schema.TypeRef) {
	if p.declared[name] {
		return
	}
	p.declared[name] = true
	p.vars = append(p.vars, declaredVariable{name: name, typ: typ, ref: ref})
}

// value prints v, replacing each variable with what variable returns.
func (p *requestPrinter) value(v *language.Value, variable func(string) string) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case language.Variable:
		return variable(v.Raw)
	case language.ListValue:
		items := make([]string, len(v.Children))
		for i, c := range v.Children {
			items[i] = p.value(c.Value, variable)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case language.ObjectValue:
		fields := make([]string, len(v.Children))
		for i, c := range v.Children {
			fields[i] = c.Name + ": " + p.value(c.Value, variable)
		}
		return "{" + strings.Join(fields, ", ") + "}"
	}
	return v.String()
}

func (p *requestPrinter) isAbstract(sel *operation.Selection) bool {
	if sel.Field == nil {
		return false
	}
	t := p.c.op.Schema.Type(sel.Field.Type.GetNamedType())
	return t != nil && t.IsAbstract()
}

func (p *requestPrinter) isComposite(sel *operation.Selection) bool {
	t := p.c.op.Schema.Type(sel.Field.Type.GetNamedType())
	return t != nil && t.IsComposite()
}
