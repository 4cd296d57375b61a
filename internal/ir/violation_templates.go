package ir

import (
	"fmt"

	language "github.com/hanpama/fedplan/internal/language"
)

// Common reusable violation constructors (template helpers)
// NOTE: Keep messages stable to avoid breaking snapshot tests.

func violationUnknownDirectiveArgument(directive, arg string, pos *language.Position) *Violation {
	return violationWithPosition(
		"Unknown argument '"+arg+"' in @"+directive+" directive",
		pos,
	)
}

func violationUnknownDirectiveOnField(directive, fieldName, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		"Unknown directive @"+directive+" on field "+fieldName+" of type "+typeName,
		pos,
	)
}

func violationUnknownDirectiveOnType(directive string, kind language.DefinitionKind, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		"Unknown directive @"+directive+" on "+string(kind)+" type "+typeName,
		pos,
	)
}

// Generic helpers replacing scattered inline strings
func violationReservedFieldPrefix(kind, fieldName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("%s name %q cannot start with '__' (reserved prefix)", kind, fieldName),
		pos,
	)
}

func violationDuplicateField(kind, fieldName, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Duplicate field %q found in %s %q", fieldName, kind, typeName),
		pos,
	)
}

func violationDuplicateInputValue(fieldName, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Duplicate input value %q found in input %q", fieldName, typeName),
		pos,
	)
}

func violationDuplicateEnumValue(valueName, enumName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Duplicate enum value %q found in enum %q", valueName, enumName),
		pos,
	)
}

func violationTypeNotFound(typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Type %q not found in definitions", typeName),
		pos,
	)
}

func violationTypeNotInput(typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Type %q is not an input type", typeName),
		pos,
	)
}

func violationTypeNotOutput(typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Type %q is not an output type", typeName),
		pos,
	)
}

func violationObjectMustHaveField(typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Object type %q must have at least one field", typeName),
		pos,
	)
}

func violationInterfaceMustHaveField(typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Interface type %q must have at least one field", typeName),
		pos,
	)
}

func violationDirectiveAlreadyDefined(name string, pos *language.Position) *Violation {
	return violationWithPosition(
		"Directive "+name+" is already defined",
		pos,
	)
}

func violationDefinitionNotFoundForExtension(name string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("definition %q not found for extension", name),
		pos,
	)
}

func violationDirectiveNoArguments(name string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Directive @%s does not accept arguments", name),
		pos,
	)
}

func violationExpectedString(pos *language.Position) *Violation {
	return violationWithPosition(
		"Expected a string value",
		pos,
	)
}

func violationExpectedList(pos *language.Position) *Violation {
	return violationWithPosition(
		"Expected a list value",
		pos,
	)
}

func violationExpectedObject(pos *language.Position) *Violation {
	return violationWithPosition(
		"Expected an object value",
		pos,
	)
}

func violationSchemaAlreadyDefined(pos *language.Position) *Violation {
	return &Violation{
		Message: "Schema is already defined",
		File:    pos.Src.Name,
		Line:    pos.Start,
		Column:  pos.End,
	}
}

func violationDefinitionAlreadyExists(name string, pos *language.Position) *Violation {
	return &Violation{
		Message: fmt.Sprintf("Definition %q already exists", name),
		File:    pos.Src.Name,
		Line:    pos.Start,
		Column:  pos.End,
	}
}

func violationUnexpectedTypeForExtension(node *language.Definition, expectedType string) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Unexpected type for extension %s, expected %s", node.Name, expectedType),
		node.Position,
	)
}

func violationInterfaceDirectiveNotAllowed(directiveName, interfaceField string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Directive @%s is not allowed on interface field %q. Only concrete implementors may use federation directives", directiveName, interfaceField),
		pos,
	)
}

func violationSchemaDefinitionRequired() *Violation {
	return &Violation{
		Message: "Schema definition is required",
	}
}

func violationRootTypeNotFound(kind, typeName string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("%s type %q not found in definitions", kind, typeName),
	}
}

func violationRootTypeNotObject(kind, typeName string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("%s type %q must be an Object type", kind, typeName),
	}
}

func violationExpectedEnum(pos *language.Position) *Violation {
	return violationWithPosition(
		"Expected an enum value",
		pos,
	)
}

func violationUnknownDirectiveOnSchema(directive string, pos *language.Position) *Violation {
	return violationWithPosition(
		"Unknown directive @"+directive+" on schema",
		pos,
	)
}

func violationNoSubgraphs() *Violation {
	return &Violation{
		Message: "At least one @subgraph must be declared on the schema",
	}
}

func violationMissingDirectiveArgument(directive, arg string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Directive @%s requires %s", directive, arg),
		pos,
	)
}

func violationSubgraphAlreadyDefined(name string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Subgraph %q is already defined", name),
		pos,
	)
}

func violationUnknownSubgraph(name string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Subgraph %q is not declared with @subgraph", name),
		pos,
	)
}

func violationDuplicateSource(typeName, fieldName, subgraph string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Field %q.%q is already bound to subgraph %q", typeName, fieldName, subgraph),
		pos,
	)
}

func violationVariableAlreadyDefined(name, subgraph string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Variable %q is already defined for subgraph %q", name, subgraph),
		pos,
	)
}

func violationUnknownResolverKind(kind string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Unknown resolver kind %q", kind),
		pos,
	)
}

func violationResolverSelectInvalid(text, reason string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Resolver select %q cannot be parsed: %s", text, reason),
		pos,
	)
}

func violationResolverSelectNotSingleField(text string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Resolver select %q must be exactly one field without a selection set", text),
		pos,
	)
}

func violationVariableUnknownArgument(name, arg, fieldName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Variable %q refers to unknown argument %q of field %q", name, arg, fieldName),
		pos,
	)
}

func violationVariableUnknownField(name, fieldName, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Variable %q selects unknown field %q of type %q", name, fieldName, typeName),
		pos,
	)
}

func violationVariableFieldNotLeaf(name, fieldName, typeName string, pos *language.Position) *Violation {
	return violationWithPosition(
		fmt.Sprintf("Variable %q must select a scalar or enum field, but %q.%q is not", name, typeName, fieldName),
		pos,
	)
}

func violationVariableFieldNotBound(name, fieldName, typeName, subgraph string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("Variable %q selects %q.%q which subgraph %q does not serve", name, typeName, fieldName, subgraph),
	}
}

func violationRootEntityResolver(typeName string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("Root type %q cannot have entity resolvers", typeName),
	}
}

func violationUndefinedVariable(name, selectText, owner string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("Variable $%s used by resolver %q on %s is not defined", name, selectText, owner),
	}
}

func violationBatchKeyNotExported(name, subgraph, typeName string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("BATCH_BY_KEY resolver of %q in subgraph %q needs a variable %q that subgraph can export", typeName, subgraph, name),
	}
}

func violationSubscribeOutsideRoot(selectText, owner string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("SUBSCRIBE resolver %q on %s is only allowed on subscription root fields", selectText, owner),
	}
}
