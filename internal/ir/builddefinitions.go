package ir

import (
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

func (b *builder) populateDefinitions() error {
	for _, srcID := range b.srcOrder {
		for _, node := range b.srcDocs[srcID].Definitions {
			if _, ok := b.Definitions[node.Name]; ok {
				b.addViolation(violationDefinitionAlreadyExists(node.Name, node.Position))
				continue
			}
			b.Definitions[node.Name] = b.newDefinition(node)
			b.Sources[srcID].Definitions = append(b.Sources[srcID].Definitions, node.Name)
		}
	}

	for _, doc := range b.docs() {
		for _, node := range doc.Extensions {
			def := b.Definitions[node.Name]
			if def == nil {
				b.addViolation(violationDefinitionNotFoundForExtension(node.Name, node.Position))
				continue
			}
			if want := extensionKind(node.Kind); !def.is(node.Kind) {
				b.addViolation(violationUnexpectedTypeForExtension(node, want))
			}
		}
	}

	return b.result()
}

// newDefinition allocates the empty definition for node. Fields, values and
// members are added by later passes.
func (b *builder) newDefinition(node *language.Definition) *Definition {
	switch node.Kind {
	case language.Object:
		if len(node.Fields) == 0 {
			b.addViolation(violationObjectMustHaveField(node.Name, node.Position))
		}
		return &Definition{Object: &ObjectDefinition{
			Name:        node.Name,
			Description: node.Description,
			Fields:      make(map[string]*FieldDefinition, len(node.Fields)),
			Interfaces:  make(map[string]*InterfaceImpl, len(node.Interfaces)),
		}}
	case language.Interface:
		if len(node.Fields) == 0 {
			b.addViolation(violationInterfaceMustHaveField(node.Name, node.Position))
		}
		return &Definition{Interface: &InterfaceDefinition{
			Name:        node.Name,
			Description: node.Description,
			Fields:      make(map[string]*FieldDefinition, len(node.Fields)),
			Interfaces:  make(map[string]*InterfaceImpl, len(node.Interfaces)),
		}}
	case language.Union:
		return &Definition{Union: &UnionDefinition{
			Name:        node.Name,
			Description: node.Description,
			Types:       make(map[string]*UnionTypeDefinition, len(node.Types)),
		}}
	case language.InputObject:
		return &Definition{Input: &InputDefinition{
			Name:        node.Name,
			Description: node.Description,
			InputValues: make(map[string]*InputValueDefinition, len(node.Fields)),
		}}
	case language.Enum:
		return &Definition{Enum: &EnumDefinition{
			Name:        node.Name,
			Description: node.Description,
			Values:      make(map[string]*EnumValueDefinition, len(node.EnumValues)),
		}}
	case language.Scalar:
		return &Definition{Scalar: &ScalarDefinition{
			Name:        node.Name,
			Description: node.Description,
			Upload:      node.Name == "Upload",
		}}
	}
	panic("unreachable")
}

// is reports whether d was declared with the given kind.
func (d *Definition) is(kind language.DefinitionKind) bool {
	switch kind {
	case language.Object:
		return d.Object != nil
	case language.Interface:
		return d.Interface != nil
	case language.Union:
		return d.Union != nil
	case language.InputObject:
		return d.Input != nil
	case language.Enum:
		return d.Enum != nil
	case language.Scalar:
		return d.Scalar != nil
	}
	panic("unreachable")
}

func extensionKind(kind language.DefinitionKind) string {
	if kind == language.InputObject {
		return "input"
	}
	return strings.ToLower(string(kind))
}
