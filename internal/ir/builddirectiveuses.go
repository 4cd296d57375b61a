package ir

import (
	"sort"

	language "github.com/hanpama/fedplan/internal/language"
)

func (b *builder) populateDirectiveUses() error {
	// Every object type carries metadata, annotated or not
	for _, doc := range b.docs() {
		for _, node := range doc.Definitions {
			if node.Kind != language.Object {
				continue
			}
			meta := b.typeMetadata(node.Name)
			for name := range b.Definitions[node.Name].Object.Fields {
				if _, ok := meta.Fields[name]; !ok {
					meta.Fields[name] = &FieldMetadata{Name: name}
				}
			}
		}
	}

	// 1st pass: Field-level directives
	for _, doc := range b.docs() {
		for _, node := range append(append(language.DefinitionList{}, doc.Definitions...), doc.Extensions...) {
			def := b.Definitions[node.Name]
			switch node.Kind {
			case language.Object:
				b.processObjectFieldDirectives(def.Object, node)
			case language.Interface:
				b.processInterfaceFieldDirectives(def.Interface, node)
			}
		}
	}

	// 2nd pass: Definition-level directives
	for _, doc := range b.docs() {
		for _, node := range append(append(language.DefinitionList{}, doc.Definitions...), doc.Extensions...) {
			def := b.Definitions[node.Name]

			switch node.Kind {
			case language.Object:
				b.processObjectTypeDirectives(def.Object, node)
			case language.Scalar:
				b.processScalarTypeDirectives(def.Scalar, node)
			default:
				b.checkNoDefinitionDirectiveUses(node)
			}
		}
	}

	for _, meta := range b.Metadata {
		for _, field := range meta.Fields {
			sort.SliceStable(field.Bindings, func(i, j int) bool {
				return b.subgraphIndex(field.Bindings[i].Subgraph) < b.subgraphIndex(field.Bindings[j].Subgraph)
			})
		}
	}

	return b.result()
}

func (b *builder) processObjectFieldDirectives(obj *ObjectDefinition, node *language.Definition) {
	meta := b.typeMetadata(obj.Name)
	for _, fieldNode := range node.Fields {
		field := meta.Fields[fieldNode.Name]
		if field == nil {
			continue
		}
		for _, dir := range fieldNode.Directives {
			switch dir.Name {
			case "source":
				b.handleSourceDirective(obj.Name, field, dir)
			case "resolver":
				if r := b.projectResolver(dir); r != nil {
					field.Resolvers = append(field.Resolvers, r)
				}
			case "variable":
				if v := b.projectArgumentVariable(obj.Fields[fieldNode.Name], dir); v != nil {
					if existing := findVariable(field.Variables, v.Subgraph, v.Name); existing != nil {
						b.addViolation(violationVariableAlreadyDefined(v.Name, v.Subgraph, dir.Position))
						continue
					}
					field.Variables = append(field.Variables, v)
				}
			case "deprecated":
				obj.Fields[fieldNode.Name].Deprecation = b.projectDeprecation(dir)
			default:
				b.addViolation(violationUnknownDirectiveOnField(dir.Name, fieldNode.Name, node.Name, dir.Position))
			}
		}
	}
}

func (b *builder) processInterfaceFieldDirectives(iface *InterfaceDefinition, node *language.Definition) {
	for _, fieldNode := range node.Fields {
		for _, dir := range fieldNode.Directives {
			switch dir.Name {
			case "deprecated":
				iface.Fields[fieldNode.Name].Deprecation = b.projectDeprecation(dir)
			default:
				// Bindings live on the implementing objects
				b.addViolation(violationInterfaceDirectiveNotAllowed(dir.Name, fieldNode.Name, fieldNode.Position))
			}
		}
	}
}

func (b *builder) processObjectTypeDirectives(obj *ObjectDefinition, node *language.Definition) {
	meta := b.typeMetadata(obj.Name)
	for _, dir := range node.Directives {
		switch dir.Name {
		case "resolver":
			if r := b.projectResolver(dir); r != nil {
				meta.Resolvers = append(meta.Resolvers, r)
			}
		case "variable":
			if v := b.projectFieldVariable(obj, dir); v != nil {
				if existing := findVariable(meta.Variables, v.Subgraph, v.Name); existing != nil {
					b.addViolation(violationVariableAlreadyDefined(v.Name, v.Subgraph, dir.Position))
					continue
				}
				meta.Variables = append(meta.Variables, v)
			}
		default:
			b.addViolation(violationUnknownDirectiveOnType(dir.Name, node.Kind, node.Name, dir.Position))
		}
	}
}

func (b *builder) handleSourceDirective(typeName string, field *FieldMetadata, dir *language.Directive) {
	binding := &FieldBinding{Name: field.Name}
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "subgraph":
			binding.Subgraph = b.getStringValue(arg.Value)
		case "name":
			binding.Name = b.getStringValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("source", arg.Name, arg.Position))
		}
	}
	if !b.checkSubgraph(binding.Subgraph, dir.Position) {
		return
	}
	if field.Binding(binding.Subgraph) != nil {
		b.addViolation(violationDuplicateSource(typeName, field.Name, binding.Subgraph, dir.Position))
		return
	}
	field.Bindings = append(field.Bindings, binding)
}

func (b *builder) projectResolver(dir *language.Directive) *ResolverDefinition {
	r := &ResolverDefinition{Kind: ResolverKindQuery}
	var argumentsNode *language.Value
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "subgraph":
			r.Subgraph = b.getStringValue(arg.Value)
		case "select":
			r.Select = b.getStringValue(arg.Value)
		case "kind":
			r.Kind = ResolverKind(b.getEnumValue(arg.Value))
		case "arguments":
			argumentsNode = arg.Value
		default:
			b.addViolation(violationUnknownDirectiveArgument("resolver", arg.Name, arg.Position))
		}
	}
	if !b.checkSubgraph(r.Subgraph, dir.Position) {
		return nil
	}
	switch r.Kind {
	case ResolverKindQuery, ResolverKindBatch, ResolverKindBatchByKey, ResolverKindSubscribe:
	default:
		b.addViolation(violationUnknownResolverKind(string(r.Kind), dir.Position))
		return nil
	}

	template, ok := b.parseResolverTemplate(r.Select, dir.Position)
	if !ok {
		return nil
	}
	r.Template = template
	for _, arg := range template.Arguments {
		for _, name := range language.VariableNames(arg.Value) {
			if !containsString(r.Requires, name) {
				r.Requires = append(r.Requires, name)
			}
		}
	}

	if argumentsNode != nil {
		r.ArgumentTypes = make(map[string]*TypeExpr)
		for _, item := range b.getObjectListValue(argumentsNode) {
			name := b.getStringValue(item["name"])
			typ := b.parseTypeExpr(b.getStringValue(item["type"]), argumentsNode.Position)
			if name == "" || typ == nil {
				continue
			}
			r.ArgumentTypes[name] = typ
		}
	}
	return r
}

// parseResolverTemplate parses a select text that must hold exactly one
// field without a selection set.
func (b *builder) parseResolverTemplate(text string, pos *language.Position) (*language.Field, bool) {
	if text == "" {
		b.addViolation(violationMissingDirectiveArgument("resolver", "select", pos))
		return nil, false
	}
	doc, err := language.ParseQuery(text)
	if err != nil {
		b.addViolation(violationResolverSelectInvalid(text, err.Error(), pos))
		return nil, false
	}
	if len(doc.Operations) != 1 || len(doc.Operations[0].SelectionSet) != 1 {
		b.addViolation(violationResolverSelectNotSingleField(text, pos))
		return nil, false
	}
	field, ok := doc.Operations[0].SelectionSet[0].(*language.Field)
	if !ok || len(field.SelectionSet) > 0 {
		b.addViolation(violationResolverSelectNotSingleField(text, pos))
		return nil, false
	}
	return field, true
}

func (b *builder) projectArgumentVariable(field *FieldDefinition, dir *language.Directive) *VariableDefinition {
	v := &VariableDefinition{Kind: VariableKindArgument}
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "subgraph":
			v.Subgraph = b.getStringValue(arg.Value)
		case "name":
			v.Name = b.getStringValue(arg.Value)
		case "argument":
			v.Argument = b.getStringValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("variable", arg.Name, arg.Position))
		}
	}
	if !b.checkSubgraph(v.Subgraph, dir.Position) {
		return nil
	}
	if v.Name == "" {
		b.addViolation(violationMissingDirectiveArgument("variable", "name", dir.Position))
		return nil
	}
	if v.Argument == "" {
		v.Argument = v.Name
	}
	argDef, ok := field.Args[v.Argument]
	if !ok {
		b.addViolation(violationVariableUnknownArgument(v.Name, v.Argument, field.Name, dir.Position))
		return nil
	}
	v.Type = argDef.Type
	return v
}

func (b *builder) projectFieldVariable(obj *ObjectDefinition, dir *language.Directive) *VariableDefinition {
	v := &VariableDefinition{Kind: VariableKindField}
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "subgraph":
			v.Subgraph = b.getStringValue(arg.Value)
		case "name":
			v.Name = b.getStringValue(arg.Value)
		case "select":
			v.Select = b.getStringValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("variable", arg.Name, arg.Position))
		}
	}
	if !b.checkSubgraph(v.Subgraph, dir.Position) {
		return nil
	}
	if v.Name == "" || v.Select == "" {
		b.addViolation(violationMissingDirectiveArgument("variable", "name and select", dir.Position))
		return nil
	}
	fieldDef, ok := obj.Fields[v.Select]
	if !ok {
		b.addViolation(violationVariableUnknownField(v.Name, v.Select, obj.Name, dir.Position))
		return nil
	}
	if !b.isScalarType(fieldDef.Type.unwrap()) && b.Definitions[fieldDef.Type.unwrap()].Enum == nil {
		b.addViolation(violationVariableFieldNotLeaf(v.Name, v.Select, obj.Name, dir.Position))
		return nil
	}
	v.Type = fieldDef.Type
	return v
}

func (b *builder) processScalarTypeDirectives(def *ScalarDefinition, node *language.Definition) {
	for _, dir := range node.Directives {
		switch dir.Name {
		case "upload":
			b.checkNoDirectiveArguments(dir)
			def.Upload = true
		case "specifiedBy":
			for _, arg := range dir.Arguments {
				switch arg.Name {
				case "url":
					def.SpecifiedByURL = b.getStringValue(arg.Value)
				default:
					b.addViolation(violationUnknownDirectiveArgument("specifiedBy", arg.Name, arg.Position))
				}
			}
		default:
			b.addViolation(violationUnknownDirectiveOnType(dir.Name, node.Kind, node.Name, dir.Position))
		}
	}
}

func (b *builder) projectDeprecation(dir *language.Directive) *Deprecation {
	reason := "No longer supported"

	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "reason":
			reason = b.getStringValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("deprecated", arg.Name, arg.Position))
		}
	}

	return &Deprecation{
		Reason: reason,
	}
}

// applyDeprecation reads @deprecated on argument, input and enum values.
func (b *builder) applyDeprecation(target **Deprecation, dirs language.DirectiveList) {
	for _, dir := range dirs {
		if dir.Name == "deprecated" {
			*target = b.projectDeprecation(dir)
		}
	}
}

func (b *builder) checkNoDefinitionDirectiveUses(node *language.Definition) {
	for _, dir := range node.Directives {
		b.addViolation(violationUnknownDirectiveOnType(dir.Name, node.Kind, node.Name, dir.Position))
	}
}

func (b *builder) checkNoDirectiveArguments(node *language.Directive) {
	for _, arg := range node.Arguments {
		b.addViolation(violationDirectiveNoArguments(node.Name, arg.Position))
	}
}

// isScalarType reports whether a named type is a scalar (built-in or custom scalar definition).
func (b *builder) isScalarType(name string) bool {
	def, ok := b.Definitions[name]
	return ok && def.Scalar != nil
}

func (b *builder) subgraphIndex(name string) int {
	for _, sg := range b.Subgraphs {
		if sg.Name == name {
			return sg.Index
		}
	}
	return len(b.Subgraphs)
}

func findVariable(vars []*VariableDefinition, subgraph, name string) *VariableDefinition {
	for _, v := range vars {
		if v.Subgraph == subgraph && v.Name == name {
			return v
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
