package introspection

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/schema"
)

// Execute answers the introspection fields of the operation root locally.
// sch is the gateway schema without the introspection extension and op must
// be compiled against Extend(sch). Root fields that are not introspection
// fields are left out of the result, except __typename.
func Execute(sch *schema.Schema, op *operation.Operation, variables map[string]any) (map[string]any, error) {
	r := &resolver{schema: sch, op: op, variables: variables}
	root := op.RootSelectionSet()
	out := make(map[string]any)
	for _, sel := range root.Selections {
		switch {
		case sel.IsTypename():
			out[sel.ResponseName] = root.Type.Name
		case IsField(sel.FieldName):
			args, err := sel.ArgumentValues(variables)
			if err != nil {
				return nil, errors.Wrapf(err, "arguments of %s", sel.ResponseName)
			}
			var value any = sch
			if sel.FieldName == "__type" {
				value = nil
				name, _ := args["name"].(string)
				if t := sch.Types[name]; t != nil {
					value = t
				}
			}
			completed, err := r.complete(sel, sel.Field.Type, value)
			if err != nil {
				return nil, err
			}
			out[sel.ResponseName] = completed
		}
	}
	return out, nil
}

type resolver struct {
	schema    *schema.Schema
	op        *operation.Operation
	variables map[string]any
}

// object resolves the selections of ss on one introspection value.
func (r *resolver) object(ss *operation.SelectionSet, source any) (map[string]any, error) {
	out := make(map[string]any, len(ss.Selections))
	for _, sel := range ss.Selections {
		if sel.IsTypename() {
			out[sel.ResponseName] = ss.Type.Name
			continue
		}
		args, err := sel.ArgumentValues(r.variables)
		if err != nil {
			return nil, errors.Wrapf(err, "arguments of %s.%s", ss.Type.Name, sel.FieldName)
		}
		value, ok := r.resolveField(source, sel.FieldName, args)
		if !ok {
			return nil, errors.Errorf("cannot resolve %s.%s", ss.Type.Name, sel.FieldName)
		}
		completed, err := r.complete(sel, sel.Field.Type, value)
		if err != nil {
			return nil, err
		}
		out[sel.ResponseName] = completed
	}
	return out, nil
}

func (r *resolver) resolveField(source any, field string, args map[string]any) (any, bool) {
	deprecated := includeDeprecated(args)
	switch src := source.(type) {
	case *schema.Schema:
		return schemaField(src, field)
	case *schema.Type:
		return typeField(r.schema, src, field, deprecated)
	case *schema.TypeRef:
		if src.Kind == schema.TypeRefKindNamed {
			if def := r.schema.Types[src.Named]; def != nil {
				return typeField(r.schema, def, field, deprecated)
			}
			return nil, true
		}
		switch field {
		case "kind":
			return string(src.Kind), true
		case "ofType":
			return src.OfType, true
		}
		return nil, true
	case *schema.Field:
		return fieldField(src, field, deprecated)
	case *schema.InputValue:
		return inputValueField(src, field)
	case *schema.EnumValue:
		return enumValueField(src, field)
	case *schema.Directive:
		return directiveField(src, field, deprecated)
	}
	return nil, false
}

// complete shapes value according to the field type ref, descending into
// the child selection set for object values.
func (r *resolver) complete(sel *operation.Selection, ref *schema.TypeRef, value any) (any, error) {
	if isNil(value) {
		if ref.IsNonNull() {
			return nil, errors.Errorf("non-null field %s.%s resolved to null", sel.DeclaringType.Name, sel.FieldName)
		}
		return nil, nil
	}
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		return r.complete(sel, ref.OfType, value)
	case schema.TypeRefKindList:
		items := reflect.ValueOf(value)
		if items.Kind() != reflect.Slice {
			return nil, errors.Errorf("field %s.%s expects a list, got %T", sel.DeclaringType.Name, sel.FieldName, value)
		}
		out := make([]any, items.Len())
		for i := range out {
			item, err := r.complete(sel, ref.OfType, items.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	}
	named := r.op.Schema.Type(ref.Named)
	if named == nil || !named.IsComposite() {
		if s, ok := value.(*string); ok {
			return *s, nil
		}
		return value, nil
	}
	ss := r.op.SelectionSet(sel, named)
	if ss == nil {
		return map[string]any{}, nil
	}
	return r.object(ss, value)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func schemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "types":
		return sortedValues(sch.Types, func(t *schema.Type) string { return t.Name }), true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		return sch.GetMutationType(), true
	case "subscriptionType":
		return sch.GetSubscriptionType(), true
	case "directives":
		return sortedValues(sch.Directives, func(d *schema.Directive) string { return d.Name }), true
	case "description":
		return optionalString(sch.Description), true
	}
	return nil, false
}

func typeField(sch *schema.Schema, t *schema.Type, field string, deprecated bool) (any, bool) {
	composite := t.Kind == schema.TypeKindObject || t.Kind == schema.TypeKindInterface
	abstract := t.Kind == schema.TypeKindInterface || t.Kind == schema.TypeKindUnion
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optionalString(t.Description), true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "isOneOf":
		return t.OneOf, true
	case "ofType":
		// named types never wrap another type
		return nil, true
	case "fields":
		if !composite {
			return nil, true
		}
		return visible(t.Fields, deprecated, func(f *schema.Field) (string, bool) { return f.Name, f.IsDeprecated }), true
	case "interfaces":
		if !composite {
			return nil, true
		}
		return lookupTypes(sch, t.Interfaces), true
	case "possibleTypes":
		if !abstract {
			return nil, true
		}
		return lookupTypes(sch, t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		return visible(t.EnumValues, deprecated, func(v *schema.EnumValue) (string, bool) { return v.Name, v.IsDeprecated }), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return visible(t.InputFields, deprecated, inputValueKey), true
	}
	return nil, false
}

func fieldField(f *schema.Field, field string, deprecated bool) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optionalString(f.Description), true
	case "args":
		return visible(f.Arguments, deprecated, inputValueKey), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return reason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func inputValueField(a *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return a.Name, true
	case "description":
		return optionalString(a.Description), true
	case "type":
		return a.Type, true
	case "defaultValue":
		if a.DefaultLiteral != "" {
			return optionalString(a.DefaultLiteral), true
		}
		if a.DefaultValue != nil {
			return optionalString(fmt.Sprintf("%v", a.DefaultValue)), true
		}
		return (*string)(nil), true
	case "isDeprecated":
		return a.IsDeprecated, true
	case "deprecationReason":
		return reason(a.IsDeprecated, a.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optionalString(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return reason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func directiveField(d *schema.Directive, field string, deprecated bool) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optionalString(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := append([]string{}, d.Locations...)
		sort.Strings(locs)
		return locs, true
	case "args":
		return visible(d.Arguments, deprecated, inputValueKey), true
	}
	return nil, false
}

func inputValueKey(a *schema.InputValue) (string, bool) { return a.Name, a.IsDeprecated }

// visible returns the members of list sorted by name, leaving out deprecated
// ones unless deprecated is set.
func visible[T any](list []T, deprecated bool, key func(T) (string, bool)) []T {
	out := make([]T, 0, len(list))
	for _, v := range list {
		if _, dep := key(v); dep && !deprecated {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := key(out[i])
		b, _ := key(out[j])
		return a < b
	})
	return out
}

func sortedValues[T any](m map[string]T, name func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return name(out[i]) < name(out[j]) })
	return out
}

func lookupTypes(sch *schema.Schema, names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func includeDeprecated(args map[string]any) bool {
	v, _ := args["includeDeprecated"].(bool)
	return v
}

func reason(deprecated bool, text string) *string {
	if !deprecated {
		return nil
	}
	return &text
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
