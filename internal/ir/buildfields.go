package ir

import (
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

// typeUse tells whether a type reference appears in input or output
// position.
type typeUse int

const (
	inputUse typeUse = iota
	outputUse
)

func (u typeUse) accepts(def *Definition) bool {
	if def.Scalar != nil || def.Enum != nil {
		return true
	}
	if u == inputUse {
		return def.Input != nil
	}
	return def.Object != nil || def.Interface != nil || def.Union != nil
}

// eachNode calls fn for every definition node, then for every extension
// node, in document order.
func (b *builder) eachNode(fn func(*Definition, *language.Definition)) {
	for _, doc := range b.docs() {
		for _, node := range doc.Definitions {
			fn(b.Definitions[node.Name], node)
		}
	}
	for _, doc := range b.docs() {
		for _, node := range doc.Extensions {
			fn(b.Definitions[node.Name], node)
		}
	}
}

func (b *builder) populateReferences() error {
	b.eachNode(b.addMembers)
	return b.result()
}

// addMembers adds the fields, input values or enum values of node to def.
func (b *builder) addMembers(def *Definition, node *language.Definition) {
	switch node.Kind {
	case language.Object:
		b.addFields(def.Object.Fields, "object", node)
	case language.Interface:
		b.addFields(def.Interface.Fields, "interface", node)
	case language.InputObject:
		for _, f := range node.Fields {
			if _, dup := def.Input.InputValues[f.Name]; dup {
				b.addViolation(violationDuplicateInputValue(f.Name, node.Name, f.Position))
			}
			def.Input.InputValues[f.Name] = b.inputValue(len(def.Input.InputValues), f)
		}
	case language.Enum:
		for _, v := range node.EnumValues {
			if _, dup := def.Enum.Values[v.Name]; dup {
				b.addViolation(violationDuplicateEnumValue(v.Name, node.Name, v.Position))
			}
			ev := &EnumValueDefinition{Name: v.Name, Description: v.Description, Index: len(def.Enum.Values)}
			b.applyDeprecation(&ev.Deprecation, v.Directives)
			def.Enum.Values[v.Name] = ev
		}
	case language.Union, language.Scalar:
	default:
		panic("unreachable")
	}
}

func (b *builder) addFields(fields map[string]*FieldDefinition, kind string, node *language.Definition) {
	for _, f := range node.Fields {
		if strings.HasPrefix(f.Name, "__") {
			b.addViolation(violationReservedFieldPrefix("Field", f.Name, f.Position))
			continue
		}
		if _, dup := fields[f.Name]; dup {
			b.addViolation(violationDuplicateField(kind, f.Name, node.Name, f.Position))
		}

		def := &FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Index:       len(fields),
			Type:        b.typeRef(f.Type, outputUse),
			Args:        make(map[string]*ArgumentDefinition, len(f.Arguments)),
		}
		for _, a := range f.Arguments {
			if strings.HasPrefix(a.Name, "__") {
				b.addViolation(violationReservedFieldPrefix("Argument", a.Name, a.Position))
				continue
			}
			def.Args[a.Name] = b.argument(len(def.Args), a)
		}
		fields[f.Name] = def
	}
}

func (b *builder) argument(index int, node *language.ArgumentDefinition) *ArgumentDefinition {
	def := &ArgumentDefinition{
		Name:        node.Name,
		Description: node.Description,
		Index:       index,
		Type:        b.typeRef(node.Type, inputUse),
	}
	def.DefaultValue, def.Default = b.defaultValue(node.DefaultValue)
	b.applyDeprecation(&def.Deprecation, node.Directives)
	return def
}

func (b *builder) inputValue(index int, node *language.FieldDefinition) *InputValueDefinition {
	def := &InputValueDefinition{
		Name:        node.Name,
		Description: node.Description,
		Index:       index,
		Type:        b.typeRef(node.Type, inputUse),
	}
	def.DefaultValue, def.Default = b.defaultValue(node.DefaultValue)
	b.applyDeprecation(&def.Deprecation, node.Directives)
	return def
}

// defaultValue returns the constant value of v and its source text.
func (b *builder) defaultValue(v *language.Value) (Value, string) {
	if v == nil {
		return nil, ""
	}
	val, err := v.Value(nil)
	if err != nil {
		b.addViolation(violationWithPosition(err.Error(), v.Position))
		return nil, ""
	}
	return val, v.String()
}

// typeRef converts a type reference, reporting unknown named types and
// named types that cannot be used in the given position.
func (b *builder) typeRef(node *language.Type, use typeUse) *TypeExpr {
	var inner *TypeExpr
	if node.Elem != nil {
		elem := b.typeRef(node.Elem, use)
		inner = &TypeExpr{Kind: TypeExprKindList, OfType: elem}
	} else {
		def, ok := b.Definitions[node.NamedType]
		switch {
		case !ok:
			b.addViolation(violationTypeNotFound(node.NamedType, node.Position))
			return nil
		case !use.accepts(def) && use == inputUse:
			b.addViolation(violationTypeNotInput(node.NamedType, node.Position))
			return nil
		case !use.accepts(def):
			b.addViolation(violationTypeNotOutput(node.NamedType, node.Position))
			return nil
		}
		inner = &TypeExpr{Kind: TypeExprKindNamed, Named: node.NamedType}
	}
	if node.NonNull {
		return &TypeExpr{Kind: TypeExprKindNonNull, OfType: inner}
	}
	return inner
}
