package schema

import (
	"strings"
	"sync"

	"github.com/hanpama/fedplan/internal/language"
)

type prelude struct {
	scalars       map[string]*Type
	introspection map[string]*Type
	directives    map[string]*Directive
}

var (
	preludeOnce sync.Once
	builtins    prelude
)

// loadPrelude converts the prelude declarations once. The converted types
// are shared between schemas and compared by identity when rendering.
func loadPrelude() *prelude {
	preludeOnce.Do(func() {
		builtins = prelude{
			scalars:       map[string]*Type{},
			introspection: map[string]*Type{},
			directives:    map[string]*Directive{},
		}
		doc := language.Prelude()
		for _, def := range doc.Definitions {
			switch {
			case def.Kind == language.Scalar:
				builtins.scalars[def.Name] = &Type{Name: def.Name, Kind: TypeKindScalar, Description: def.Description}
			case strings.HasPrefix(def.Name, "__"):
				builtins.introspection[def.Name] = preludeType(def)
			}
		}
		for _, d := range doc.Directives {
			if d.Name != "include" && d.Name != "skip" {
				continue
			}
			dir := &Directive{Name: d.Name, Description: d.Description, IsRepeatable: d.IsRepeatable}
			for _, loc := range d.Locations {
				dir.Locations = append(dir.Locations, string(loc))
			}
			for _, a := range d.Arguments {
				dir.Arguments = append(dir.Arguments, preludeArgument(a))
			}
			builtins.directives[d.Name] = dir
		}
	})
	return &builtins
}

// IntrospectionTypes returns the __Schema, __Type and related types. The
// result is shared and must not be modified.
func IntrospectionTypes() map[string]*Type {
	return loadPrelude().introspection
}

func preludeType(def *language.Definition) *Type {
	t := &Type{Name: def.Name, Description: def.Description}
	if def.Kind == language.Enum {
		t.Kind = TypeKindEnum
		for _, v := range def.EnumValues {
			t.EnumValues = append(t.EnumValues, &EnumValue{Name: v.Name, Description: v.Description})
		}
		return t
	}
	t.Kind = TypeKindObject
	for _, f := range def.Fields {
		field := &Field{Name: f.Name, Description: f.Description, Type: TypeRefFromAST(f.Type)}
		for _, a := range f.Arguments {
			field.Arguments = append(field.Arguments, preludeArgument(a))
		}
		t.Fields = append(t.Fields, field)
	}
	return t
}

func preludeArgument(a *language.ArgumentDefinition) *InputValue {
	in := &InputValue{Name: a.Name, Description: a.Description, Type: TypeRefFromAST(a.Type)}
	if a.DefaultValue != nil {
		in.DefaultLiteral = a.DefaultValue.String()
		in.DefaultValue, _ = a.DefaultValue.Value(nil)
	}
	return in
}
