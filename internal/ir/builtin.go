package ir

import language "github.com/hanpama/fedplan/internal/language"

var specifiedByURL = map[string]string{
	"String":  "https://spec.graphql.org/October2021/#sec-String",
	"Int":     "https://spec.graphql.org/October2021/#sec-Int",
	"Float":   "https://spec.graphql.org/October2021/#sec-Float",
	"Boolean": "https://spec.graphql.org/October2021/#sec-Boolean",
	"ID":      "https://spec.graphql.org/October2021/#sec-ID",
}

// builtinScalars returns fresh definitions of the scalars declared by the
// prelude.
func builtinScalars() []*ScalarDefinition {
	var out []*ScalarDefinition
	for _, def := range language.Prelude().Definitions {
		if def.Kind != language.Scalar {
			continue
		}
		out = append(out, &ScalarDefinition{
			Name:           def.Name,
			Description:    def.Description,
			SpecifiedByURL: specifiedByURL[def.Name],
		})
	}
	return out
}
