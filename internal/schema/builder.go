package schema

import (
	"context"
	"sort"

	"github.com/hanpama/fedplan/internal/ir"
	"github.com/hanpama/fedplan/internal/language"
)

// BuildFromIR builds the gateway schema from the ir project.
// Extensions are already merged into their base definitions and federation
// directives are not part of the result.
func BuildFromIR(p *ir.Project) (*Schema, error) {
	s := &Schema{
		QueryType:        p.Schema.QueryType,
		MutationType:     p.Schema.MutationType,
		SubscriptionType: p.Schema.SubscriptionType,
		Types:            make(map[string]*Type, len(p.Definitions)),
		Directives:       make(map[string]*Directive, len(p.Directives)+2),
	}
	builtins := loadPrelude()
	for name, t := range builtins.scalars {
		s.Types[name] = t
	}
	for name, d := range builtins.directives {
		s.Directives[name] = d
	}

	for name, def := range p.Definitions {
		if _, builtin := s.Types[name]; builtin {
			continue
		}
		if def.Object != nil {
			s.Types[name] = buildObject(def.Object)
		} else if def.Interface != nil {
			s.Types[name] = buildInterface(def.Interface)
		} else if def.Enum != nil {
			s.Types[name] = buildEnum(def.Enum)
		} else if def.Input != nil {
			s.Types[name] = buildInput(def.Input)
		} else if def.Union != nil {
			s.Types[name] = buildUnion(def.Union)
		} else if def.Scalar != nil {
			s.Types[name] = buildScalar(def.Scalar)
		}
	}
	for _, dir := range p.Directives {
		s.Directives[dir.Name] = buildDirective(dir)
	}
	return s, nil
}

func buildObject(def *ir.ObjectDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindObject, Description: def.Description}
	t.Interfaces = sortedKeys(def.Interfaces)
	for _, fieldDef := range def.OrderedFields() {
		t.Fields = append(t.Fields, buildField(fieldDef))
	}
	return t
}

func buildInterface(def *ir.InterfaceDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindInterface, Description: def.Description}
	t.Interfaces = sortedKeys(def.Interfaces)
	for _, fieldDef := range def.OrderedFields() {
		t.Fields = append(t.Fields, buildField(fieldDef))
	}
	t.PossibleTypes = append(t.PossibleTypes, def.PossibleTypes...)
	sort.Strings(t.PossibleTypes)
	return t
}

func buildField(def *ir.FieldDefinition) *Field {
	f := &Field{Name: def.Name, Description: def.Description, Type: TypeRefOf(def.Type)}
	if def.Deprecation != nil {
		f.IsDeprecated = true
		f.DeprecationReason = def.Deprecation.Reason
	}
	for _, arg := range def.OrderedArgs() {
		f.Arguments = append(f.Arguments, buildArgumentAsInputValue(arg))
	}
	return f
}

func buildEnum(def *ir.EnumDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindEnum, Description: def.Description}
	for _, v := range def.OrderedValues() {
		e := &EnumValue{Name: v.Name, Description: v.Description}
		if v.Deprecation != nil {
			e.IsDeprecated = true
			e.DeprecationReason = v.Deprecation.Reason
		}
		t.EnumValues = append(t.EnumValues, e)
	}
	return t
}

// TypeRefOf converts an ir type expression.
func TypeRefOf(t *ir.TypeExpr) *TypeRef {
	switch t.Kind {
	case ir.TypeExprKindNamed:
		return &TypeRef{Kind: TypeRefKindNamed, Named: t.Named}
	case ir.TypeExprKindNonNull:
		return &TypeRef{Kind: TypeRefKindNonNull, OfType: TypeRefOf(t.OfType)}
	case ir.TypeExprKindList:
		return &TypeRef{Kind: TypeRefKindList, OfType: TypeRefOf(t.OfType)}
	}
	panic("unreachable")
}

// TypeRefFromAST converts a parsed type reference, such as the type of an
// operation variable.
func TypeRefFromAST(t *language.Type) *TypeRef {
	switch {
	case t.NonNull:
		inner := *t
		inner.NonNull = false
		return NonNullType(TypeRefFromAST(&inner))
	case t.Elem != nil:
		return ListType(TypeRefFromAST(t.Elem))
	default:
		return NamedType(t.NamedType)
	}
}

func buildInputValue(v *ir.InputValueDefinition) *InputValue {
	in := &InputValue{
		Name:           v.Name,
		Description:    v.Description,
		Type:           TypeRefOf(v.Type),
		DefaultValue:   v.DefaultValue,
		DefaultLiteral: v.Default,
	}
	if v.Deprecation != nil {
		in.IsDeprecated = true
		in.DeprecationReason = v.Deprecation.Reason
	}
	return in
}

func buildArgumentAsInputValue(a *ir.ArgumentDefinition) *InputValue {
	in := &InputValue{
		Name:           a.Name,
		Description:    a.Description,
		Type:           TypeRefOf(a.Type),
		DefaultValue:   a.DefaultValue,
		DefaultLiteral: a.Default,
	}
	if a.Deprecation != nil {
		in.IsDeprecated = true
		in.DeprecationReason = a.Deprecation.Reason
	}
	return in
}

func buildInput(def *ir.InputDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindInputObject, Description: def.Description, OneOf: def.OneOf}
	for _, v := range def.OrderedInputValues() {
		t.InputFields = append(t.InputFields, buildInputValue(v))
	}
	return t
}

func buildUnion(def *ir.UnionDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindUnion, Description: def.Description}
	// Sort union type names for deterministic output
	t.PossibleTypes = sortedKeys(def.Types)
	return t
}

func buildScalar(def *ir.ScalarDefinition) *Type {
	t := &Type{Name: def.Name, Kind: TypeKindScalar, Description: def.Description, Upload: def.Upload}
	if def.SpecifiedByURL != "" {
		url := def.SpecifiedByURL
		t.SpecifiedByURL = &url
	}
	return t
}

func buildDirective(dir *ir.DirectiveDefinition) *Directive {
	d := &Directive{Name: dir.Name, Description: dir.Description, IsRepeatable: dir.Repeatable}
	d.Locations = append(d.Locations, dir.Locations...)
	args := make([]*ir.ArgumentDefinition, 0, len(dir.Args))
	for _, arg := range dir.Args {
		args = append(args, arg)
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Index < args[j].Index })
	for _, arg := range args {
		d.Arguments = append(d.Arguments, buildArgumentAsInputValue(arg))
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildFromSDL parses an annotated gateway document and returns its schema.
func BuildFromSDL(sdl string) (*Schema, *ir.Project, error) {
	disc := ir.NewInMemoryDiscovery([]ir.InMemorySource{
		{Name: "gateway", Content: sdl},
	})
	proj, err := ir.Build(context.Background(), disc)
	if err != nil {
		return nil, nil, err
	}
	schema, err := BuildFromIR(proj)
	if err != nil {
		return nil, nil, err
	}
	return schema, proj, nil
}

// Validator renders s and loads it with the query validator, so operations
// can be checked against the gateway schema.
func Validator(s *Schema) (*language.Schema, error) {
	return language.LoadSchema("gateway.graphql", Render(s))
}
