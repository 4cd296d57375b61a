package ir

import (
	"sort"
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

// applyImplicitRules fills in configuration that follows from bindings:
//   - a field resolver implies a binding to its subgraph
//   - a root field bound to a subgraph without an explicit resolver gets one
//     selecting the subgraph field with every argument forwarded
//   - every field argument is an argument variable of each bound subgraph
func (b *builder) applyImplicitRules() error {
	for _, typeName := range b.objectNames() {
		obj := b.Definitions[typeName].Object
		meta := b.typeMetadata(typeName)
		isRoot := b.isRootObject(typeName)

		for _, fieldDef := range obj.OrderedFields() {
			field := meta.Fields[fieldDef.Name]

			for _, r := range field.Resolvers {
				if field.Binding(r.Subgraph) == nil {
					field.Bindings = append(field.Bindings, &FieldBinding{Subgraph: r.Subgraph, Name: fieldDef.Name})
				}
			}
			sort.SliceStable(field.Bindings, func(i, j int) bool {
				return b.subgraphIndex(field.Bindings[i].Subgraph) < b.subgraphIndex(field.Bindings[j].Subgraph)
			})

			for _, binding := range field.Bindings {
				if isRoot && len(field.ResolversFor(binding.Subgraph)) == 0 {
					kind := ResolverKindQuery
					if b.Schema.SubscriptionType == typeName {
						kind = ResolverKindSubscribe
					}
					field.Resolvers = append(field.Resolvers, implicitResolver(binding, fieldDef, kind))
				}
				for _, arg := range fieldDef.OrderedArgs() {
					if findVariable(field.Variables, binding.Subgraph, arg.Name) != nil {
						continue
					}
					field.Variables = append(field.Variables, &VariableDefinition{
						Name:     arg.Name,
						Subgraph: binding.Subgraph,
						Kind:     VariableKindArgument,
						Argument: arg.Name,
						Type:     arg.Type,
						Implicit: true,
					})
				}
			}
		}
	}
	return b.result()
}

func implicitResolver(binding *FieldBinding, fieldDef *FieldDefinition, kind ResolverKind) *ResolverDefinition {
	template := &language.Field{Alias: binding.Name, Name: binding.Name}
	var requires, parts []string
	for _, arg := range fieldDef.OrderedArgs() {
		template.Arguments = append(template.Arguments, &language.Argument{
			Name:  arg.Name,
			Value: &language.Value{Kind: language.Variable, Raw: arg.Name},
		})
		requires = append(requires, arg.Name)
		parts = append(parts, arg.Name+": $"+arg.Name)
	}
	sel := binding.Name
	if len(parts) > 0 {
		sel += "(" + strings.Join(parts, ", ") + ")"
	}
	return &ResolverDefinition{
		Subgraph: binding.Subgraph,
		Kind:     kind,
		Select:   "{ " + sel + " }",
		Template: template,
		Requires: requires,
		Implicit: true,
	}
}

// validateRequirements checks that every variable a resolver requires can
// come from somewhere.
func (b *builder) validateRequirements() error {
	for _, typeName := range b.objectNames() {
		meta := b.Metadata[typeName]
		obj := b.Definitions[typeName].Object

		if b.isRootObject(typeName) && len(meta.Resolvers) > 0 {
			b.addViolation(violationRootEntityResolver(typeName))
		}
		for _, r := range meta.Resolvers {
			for _, name := range r.Requires {
				if !hasVariableNamed(meta.Variables, name) {
					b.addViolation(violationUndefinedVariable(name, r.Select, typeName))
				}
			}
			if r.Kind == ResolverKindBatchByKey {
				for _, name := range r.Requires {
					if meta.VariableFor(r.Subgraph, name) == nil {
						b.addViolation(violationBatchKeyNotExported(name, r.Subgraph, typeName))
					}
				}
			}
			if r.Kind == ResolverKindSubscribe {
				b.addViolation(violationSubscribeOutsideRoot(r.Select, typeName))
			}
		}
		for _, v := range meta.Variables {
			if meta.Field(v.Select).Binding(v.Subgraph) == nil {
				b.addViolation(violationVariableFieldNotBound(v.Name, v.Select, typeName, v.Subgraph))
			}
		}

		for _, fieldDef := range obj.OrderedFields() {
			field := meta.Fields[fieldDef.Name]
			for _, r := range field.Resolvers {
				if r.Kind == ResolverKindSubscribe && b.Schema.SubscriptionType != typeName {
					b.addViolation(violationSubscribeOutsideRoot(r.Select, typeName))
				}
				for _, name := range r.Requires {
					if findVariable(field.Variables, r.Subgraph, name) != nil {
						continue
					}
					if !hasVariableNamed(meta.Variables, name) {
						b.addViolation(violationUndefinedVariable(name, r.Select, typeName+"."+fieldDef.Name))
					}
				}
			}
		}
	}
	return b.result()
}

// objectNames lists object types in document order.
func (b *builder) objectNames() []string {
	var names []string
	for _, doc := range b.docs() {
		for _, node := range doc.Definitions {
			if node.Kind == language.Object {
				names = append(names, node.Name)
			}
		}
	}
	return names
}

func hasVariableNamed(vars []*VariableDefinition, name string) bool {
	for _, v := range vars {
		if v.Name == name {
			return true
		}
	}
	return false
}
