package introspection

import "github.com/hanpama/fedplan/internal/schema"

// IsField reports whether name is a root introspection field.
func IsField(name string) bool {
	return name == "__schema" || name == "__type"
}

// IsType reports whether the named type is one of the introspection types
// added by Extend.
func IsType(name string) bool {
	_, ok := schema.IntrospectionTypes()[name]
	return ok
}

// Extend returns a copy of the schema with the introspection types and the
// __schema and __type fields on the query root. The original is not modified.
func Extend(original *schema.Schema) *schema.Schema {
	types := schema.IntrospectionTypes()
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+len(types)),
		Directives:       original.Directives,
		Description:      original.Description,
	}
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}
	for name, typ := range types {
		extended.Types[name] = typ
	}

	query := extended.GetQueryType()
	if query == nil {
		return extended
	}
	root := *query
	root.Fields = append(append([]*schema.Field(nil), query.Fields...), rootFields()...)
	extended.Types[query.Name] = &root
	return extended
}

func rootFields() []*schema.Field {
	return []*schema.Field{
		{
			Name:        "__schema",
			Description: "Access the current type schema of this server.",
			Type:        schema.NonNullType(schema.NamedType("__Schema")),
		},
		{
			Name:        "__type",
			Description: "Request the type information of a single type.",
			Arguments: []*schema.InputValue{{
				Name: "name",
				Type: schema.NonNullType(schema.NamedType("String")),
			}},
			Type: schema.NamedType("__Type"),
		},
	}
}
