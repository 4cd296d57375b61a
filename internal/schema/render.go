package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render produces the SDL of the client-facing schema. Types and directives
// are sorted by name, built-in scalars and directives are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatSchemaDocument(Document(s))
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

// Document converts s into a schema document.
func Document(s *Schema) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	if def := schemaDefinition(s); def != nil {
		doc.Schema = ast.SchemaDefinitionList{def}
	}

	builtins := loadPrelude()
	for _, name := range sortedKeys(s.Types) {
		if t := s.Types[name]; builtins.scalars[name] != t {
			doc.Definitions = append(doc.Definitions, definition(t))
		}
	}
	for _, name := range sortedKeys(s.Directives) {
		if d := s.Directives[name]; builtins.directives[name] != d {
			doc.Directives = append(doc.Directives, directiveDefinition(d))
		}
	}
	return doc
}

func schemaDefinition(s *Schema) *ast.SchemaDefinition {
	def := &ast.SchemaDefinition{Description: s.Description}
	for _, op := range []struct {
		op  ast.Operation
		typ string
	}{
		{ast.Query, s.QueryType},
		{ast.Mutation, s.MutationType},
		{ast.Subscription, s.SubscriptionType},
	} {
		if op.typ != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: op.op, Type: op.typ})
		}
	}
	if len(def.OperationTypes) == 0 {
		return nil
	}
	return def
}

func definition(t *Type) *ast.Definition {
	def := &ast.Definition{
		Name:        t.Name,
		Description: t.Description,
		Interfaces:  t.Interfaces,
	}
	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
		if t.SpecifiedByURL != nil {
			def.Directives = append(def.Directives, directive("specifiedBy", "url", *t.SpecifiedByURL))
		}
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Name:        v.Name,
				Description: v.Description,
				Directives:  deprecation(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = append(def.Directives, &ast.Directive{Name: "oneOf"})
		}
		for _, v := range t.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:         v.Name,
				Description:  v.Description,
				Type:         astType(v.Type),
				DefaultValue: defaultValue(v),
				Directives:   deprecation(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindObject, TypeKindInterface:
		def.Kind = ast.Object
		if t.Kind == TypeKindInterface {
			def.Kind = ast.Interface
		}
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name,
				Description: f.Description,
				Arguments:   arguments(f.Arguments),
				Type:        astType(f.Type),
				Directives:  deprecation(f.IsDeprecated, f.DeprecationReason),
			})
		}
	case TypeKindUnion:
		def.Kind = ast.Union
		def.Types = t.PossibleTypes
	}
	return def
}

func directiveDefinition(d *Directive) *ast.DirectiveDefinition {
	def := &ast.DirectiveDefinition{
		Name:         d.Name,
		Description:  d.Description,
		Arguments:    arguments(d.Arguments),
		IsRepeatable: d.IsRepeatable,
	}
	for _, loc := range d.Locations {
		def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
	}
	return def
}

func arguments(values []*InputValue) ast.ArgumentDefinitionList {
	var out ast.ArgumentDefinitionList
	for _, v := range values {
		out = append(out, &ast.ArgumentDefinition{
			Name:         v.Name,
			Description:  v.Description,
			Type:         astType(v.Type),
			DefaultValue: defaultValue(v),
			Directives:   deprecation(v.IsDeprecated, v.DeprecationReason),
		})
	}
	return out
}

func deprecation(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}
	if reason == "" {
		return ast.DirectiveList{{Name: "deprecated"}}
	}
	return ast.DirectiveList{directive("deprecated", "reason", reason)}
}

func directive(name, arg, value string) *ast.Directive {
	return &ast.Directive{
		Name: name,
		Arguments: ast.ArgumentList{{
			Name:  arg,
			Value: &ast.Value{Kind: ast.StringValue, Raw: value},
		}},
	}
}

// defaultValue returns the default of v as a value printing its literal
// unchanged. Enum kind is used because enum values print their raw text.
func defaultValue(v *InputValue) *ast.Value {
	switch {
	case v.DefaultLiteral != "":
		return &ast.Value{Kind: ast.EnumValue, Raw: v.DefaultLiteral}
	case v.DefaultValue != nil:
		return &ast.Value{Kind: ast.EnumValue, Raw: renderValue(v.DefaultValue)}
	}
	return nil
}

func astType(t *TypeRef) *ast.Type {
	switch t.Kind {
	case TypeRefKindList:
		return ast.ListType(astType(t.OfType), nil)
	case TypeRefKindNonNull:
		inner := *astType(t.OfType)
		inner.NonNull = true
		return &inner
	}
	return ast.NamedType(t.Named, nil)
}

func renderTypeRef(t *TypeRef) string {
	if t == nil {
		return ""
	}
	return astType(t).String()
}

// renderValue renders a Go value as a GraphQL literal. Object keys are
// sorted.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
