package ir

import (
	"fmt"
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

// implementer is the part of an object or interface definition that takes
// part in interface implementation checks.
type implementer struct {
	kind       string
	name       string
	fields     map[string]*FieldDefinition
	interfaces map[string]*InterfaceImpl
	pos        *language.Position
}

func (b *builder) populateImplementations() error {
	b.eachNode(b.linkDefinition)
	return b.result()
}

// linkDefinition records the interfaces of objects and interfaces and the
// members of unions, checking each against the referenced definitions.
func (b *builder) linkDefinition(def *Definition, node *language.Definition) {
	switch node.Kind {
	case language.Object:
		impl := &implementer{kind: "Object", name: node.Name, fields: def.Object.Fields, interfaces: def.Object.Interfaces, pos: node.Position}
		for _, iface := range b.declareInterfaces(impl, node.Interfaces) {
			iface.PossibleTypes = append(iface.PossibleTypes, node.Name)
		}
	case language.Interface:
		impl := &implementer{kind: "Interface", name: node.Name, fields: def.Interface.Fields, interfaces: def.Interface.Interfaces, pos: node.Position}
		b.declareInterfaces(impl, node.Interfaces)
	case language.Union:
		b.linkUnionMembers(def.Union, node)
	}
}

// declareInterfaces adds names to the interfaces of impl and returns the
// interface definitions that impl satisfies.
func (b *builder) declareInterfaces(impl *implementer, names []string) []*InterfaceDefinition {
	var out []*InterfaceDefinition
	for i, name := range names {
		impl.interfaces[name] = &InterfaceImpl{Interface: name, Index: i}

		def, ok := b.Definitions[name]
		if !ok {
			b.addViolation(violationWithPosition(
				fmt.Sprintf("Interface %q not found for %s %q", name, strings.ToLower(impl.kind), impl.name), impl.pos))
			continue
		}
		if def.Interface == nil {
			b.addViolation(violationWithPosition(fmt.Sprintf("Type %q is not an interface", name), impl.pos))
			continue
		}
		b.checkImplements(impl, def.Interface)
		out = append(out, def.Interface)
	}
	return out
}

func (b *builder) checkImplements(impl *implementer, iface *InterfaceDefinition) {
	for inherited := range iface.Interfaces {
		if _, ok := impl.interfaces[inherited]; ok {
			continue
		}
		b.addViolation(violationWithPosition(
			fmt.Sprintf("%s %q must also implement interface %q (required by interface %q)",
				impl.kind, impl.name, inherited, iface.Name), impl.pos))
	}

	for name, want := range iface.Fields {
		got, ok := impl.fields[name]
		if !ok {
			b.addViolation(violationWithPosition(
				fmt.Sprintf("%s %q is missing field %q required by interface %q",
					impl.kind, impl.name, name, iface.Name), impl.pos))
			continue
		}
		b.checkFieldSignature(impl, iface.Name, got, want)
	}
}

// checkFieldSignature compares a field with the interface field it
// implements: arguments are invariant, the result type is covariant.
func (b *builder) checkFieldSignature(impl *implementer, iface string, got, want *FieldDefinition) {
	for name, wantArg := range want.Args {
		gotArg, ok := got.Args[name]
		switch {
		case !ok:
			b.addViolation(violationWithPosition(
				fmt.Sprintf("Field %q.%q is missing argument %q required by interface %q",
					impl.name, got.Name, name, iface), impl.pos))
		case !sameType(gotArg.Type, wantArg.Type):
			b.addViolation(violationWithPosition(
				fmt.Sprintf("Argument %q of field %q.%q has type %s but interface %q expects %s",
					name, impl.name, got.Name, gotArg.Type, iface, wantArg.Type), impl.pos))
		}
	}

	for name, arg := range got.Args {
		if _, declared := want.Args[name]; declared || arg.Type == nil || arg.Type.Kind != TypeExprKindNonNull {
			continue
		}
		b.addViolation(violationWithPosition(
			fmt.Sprintf("Additional argument %q of field %q.%q must be nullable (interface %q doesn't have this argument)",
				name, impl.name, got.Name, iface), impl.pos))
	}

	if !b.subtypeOf(got.Type, want.Type) {
		b.addViolation(violationWithPosition(
			fmt.Sprintf("Field %q.%q has type %s but interface %q expects %s (or a subtype)",
				impl.name, got.Name, got.Type, iface, want.Type), impl.pos))
	}
}

func (b *builder) linkUnionMembers(def *UnionDefinition, node *language.Definition) {
	for i, name := range node.Types {
		member, ok := b.Definitions[name]
		switch {
		case !ok:
			b.addViolation(violationWithPosition(
				fmt.Sprintf("Type %q not found for union %q", name, node.Name), node.Position))
		case member.Object == nil:
			b.addViolation(violationWithPosition(
				fmt.Sprintf("Union member %q must be an Object type, but got %s", name, member.kind()), node.Position))
		default:
			def.Types[name] = &UnionTypeDefinition{Name: name, Index: i}
		}
	}
}

// subtypeOf reports whether a field of type t may implement an interface
// field of type of.
func (b *builder) subtypeOf(t, of *TypeExpr) bool {
	if t == nil || of == nil {
		return false
	}
	if t.Kind == TypeExprKindNonNull {
		if of.Kind == TypeExprKindNonNull {
			of = of.OfType
		}
		return b.subtypeOf(t.OfType, of)
	}
	if t.Kind == TypeExprKindList && of.Kind == TypeExprKindList {
		return b.subtypeOf(t.OfType, of.OfType)
	}
	if sameType(t, of) {
		return true
	}
	if t.Kind != TypeExprKindNamed || of.Kind != TypeExprKindNamed {
		return false
	}

	def, ok := b.Definitions[t.Named]
	if !ok {
		return false
	}
	super, ok := b.Definitions[of.Named]
	if !ok {
		return false
	}
	switch {
	case super.Union != nil && def.Object != nil:
		_, member := super.Union.Types[t.Named]
		return member
	case super.Interface != nil && def.Object != nil:
		_, implements := def.Object.Interfaces[of.Named]
		return implements
	case super.Interface != nil && def.Interface != nil:
		_, implements := def.Interface.Interfaces[of.Named]
		return implements
	}
	return false
}

func sameType(a, b *TypeExpr) bool {
	for a != nil && b != nil {
		if a.Kind != b.Kind {
			return false
		}
		if a.Kind == TypeExprKindNamed {
			return a.Named == b.Named
		}
		a, b = a.OfType, b.OfType
	}
	return a == b
}

func (d *Definition) kind() string {
	switch {
	case d.Object != nil:
		return "Object"
	case d.Interface != nil:
		return "Interface"
	case d.Union != nil:
		return "Union"
	case d.Input != nil:
		return "InputObject"
	case d.Enum != nil:
		return "Enum"
	case d.Scalar != nil:
		return "Scalar"
	}
	return "Unknown"
}
