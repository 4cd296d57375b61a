package ir

import (
	language "github.com/hanpama/fedplan/internal/language"
)

func (b *builder) processSchemaDefinitions() error {
	var schemaDirectives []*language.Directive
	for _, doc := range b.docs() {
		for _, schemaDef := range doc.Schema {
			if b.Schema != nil {
				b.addViolation(violationSchemaAlreadyDefined(schemaDef.Position))
				continue
			}
			b.Schema = &Schema{}
			for _, opType := range schemaDef.OperationTypes {
				switch opType.Operation {
				case language.Query:
					b.Schema.QueryType = opType.Type
				case language.Mutation:
					b.Schema.MutationType = opType.Type
				case language.Subscription:
					b.Schema.SubscriptionType = opType.Type
				}
			}
			schemaDirectives = append(schemaDirectives, schemaDef.Directives...)
		}
	}
	for _, doc := range b.docs() {
		for _, ext := range doc.SchemaExtension {
			schemaDirectives = append(schemaDirectives, ext.Directives...)
		}
	}

	// Schema definition is required
	if b.Schema == nil {
		b.addViolation(violationSchemaDefinitionRequired())
	} else {
		// Validate schema root types exist and are Object types
		if b.Schema.QueryType != "" {
			if def, ok := b.Definitions[b.Schema.QueryType]; !ok {
				b.addViolation(violationRootTypeNotFound("Query", b.Schema.QueryType))
			} else if def.Object == nil {
				b.addViolation(violationRootTypeNotObject("Query", b.Schema.QueryType))
			}
		}

		if b.Schema.MutationType != "" {
			if def, ok := b.Definitions[b.Schema.MutationType]; !ok {
				b.addViolation(violationRootTypeNotFound("Mutation", b.Schema.MutationType))
			} else if def.Object == nil {
				b.addViolation(violationRootTypeNotObject("Mutation", b.Schema.MutationType))
			}
		}

		if b.Schema.SubscriptionType != "" {
			if def, ok := b.Definitions[b.Schema.SubscriptionType]; !ok {
				b.addViolation(violationRootTypeNotFound("Subscription", b.Schema.SubscriptionType))
			} else if def.Object == nil {
				b.addViolation(violationRootTypeNotObject("Subscription", b.Schema.SubscriptionType))
			}
		}
	}

	// Subgraphs first: @node may reference any of them
	for _, dir := range schemaDirectives {
		if dir.Name == "subgraph" {
			b.handleSubgraphDirective(dir)
		}
	}
	for _, dir := range schemaDirectives {
		switch dir.Name {
		case "subgraph":
		case "node":
			b.handleNodeDirective(dir)
		default:
			b.addViolation(violationUnknownDirectiveOnSchema(dir.Name, dir.Position))
		}
	}
	if len(b.Subgraphs) == 0 && b.Schema != nil {
		b.addViolation(violationNoSubgraphs())
	}

	return b.result()
}

func (b *builder) handleSubgraphDirective(dir *language.Directive) {
	sg := &Subgraph{Index: len(b.Subgraphs)}
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "name":
			sg.Name = b.getStringValue(arg.Value)
		case "location":
			sg.Location = b.getStringValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("subgraph", arg.Name, arg.Position))
		}
	}
	if sg.Name == "" {
		b.addViolation(violationMissingDirectiveArgument("subgraph", "name", dir.Position))
		return
	}
	for _, existing := range b.Subgraphs {
		if existing.Name == sg.Name {
			b.addViolation(violationSubgraphAlreadyDefined(sg.Name, dir.Position))
			return
		}
	}
	b.Subgraphs = append(b.Subgraphs, sg)
}

func (b *builder) handleNodeDirective(dir *language.Directive) {
	var subgraph string
	var types []string
	for _, arg := range dir.Arguments {
		switch arg.Name {
		case "subgraph":
			subgraph = b.getStringValue(arg.Value)
		case "types":
			types = b.getStringListValue(arg.Value)
		default:
			b.addViolation(violationUnknownDirectiveArgument("node", arg.Name, arg.Position))
		}
	}
	if !b.checkSubgraph(subgraph, dir.Position) {
		return
	}
	for _, typeName := range types {
		def, ok := b.Definitions[typeName]
		if !ok || def.Object == nil {
			b.addViolation(violationWithPosition("@node type "+typeName+" is not an object type", dir.Position))
			continue
		}
		meta := b.typeMetadata(typeName)
		meta.Lookups = append(meta.Lookups, subgraph)
	}
}

// checkSubgraph reports whether name is a declared subgraph.
func (b *builder) checkSubgraph(name string, pos *language.Position) bool {
	if name == "" {
		b.addViolation(violationWithPosition("subgraph argument is required", pos))
		return false
	}
	for _, sg := range b.Subgraphs {
		if sg.Name == name {
			return true
		}
	}
	b.addViolation(violationUnknownSubgraph(name, pos))
	return false
}

func (b *builder) typeMetadata(name string) *TypeMetadata {
	meta, ok := b.Metadata[name]
	if !ok {
		meta = &TypeMetadata{Name: name, Fields: make(map[string]*FieldMetadata)}
		b.Metadata[name] = meta
	}
	return meta
}

func (b *builder) isRootObject(name string) bool {
	if b.Schema == nil {
		return false
	}
	return (b.Schema.QueryType != "" && b.Schema.QueryType == name) ||
		(b.Schema.MutationType != "" && b.Schema.MutationType == name) ||
		(b.Schema.SubscriptionType != "" && b.Schema.SubscriptionType == name)
}
