package ir

import (
	"sort"
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

type Project struct {
	Sources     map[SourceID]*Source            `json:"sources"`
	Schema      *Schema                         `json:"schema,omitempty"`
	Subgraphs   []*Subgraph                     `json:"subgraphs"`
	Definitions map[string]*Definition          `json:"definitions"`
	Directives  map[string]*DirectiveDefinition `json:"directives"`
	Metadata    map[string]*TypeMetadata        `json:"metadata"`
}

type Schema struct {
	QueryType        string `json:"queryType,omitempty"`
	MutationType     string `json:"mutationType,omitempty"`
	SubscriptionType string `json:"subscriptionType,omitempty"`
}

// Source is one configuration document.
type Source struct {
	ID          SourceID `json:"id"`
	Name        string   `json:"name"`
	FilePath    string   `json:"filePath,omitempty"`
	Definitions []string `json:"definitions"`
}

// SourceID is a unique identifier for a configuration document.
// ex. "accounts/users"
type SourceID string

// Subgraph is a backend service declared with @subgraph. Index is the
// declaration order, which breaks every planning tie.
type Subgraph struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Index    int    `json:"index"`
}

type Definition struct {
	Object    *ObjectDefinition    `json:"object,omitempty"`
	Interface *InterfaceDefinition `json:"interface,omitempty"`
	Union     *UnionDefinition     `json:"union,omitempty"`
	Input     *InputDefinition     `json:"input,omitempty"`
	Enum      *EnumDefinition      `json:"enum,omitempty"`
	Scalar    *ScalarDefinition    `json:"scalar,omitempty"`
}

type ObjectDefinition struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields"`
	Interfaces  map[string]*InterfaceImpl   `json:"interfaces"`
}

type InterfaceDefinition struct {
	Name          string                      `json:"name"`
	Description   string                      `json:"description,omitempty"`
	Fields        map[string]*FieldDefinition `json:"fields"`
	Interfaces    map[string]*InterfaceImpl   `json:"interfaces"`
	PossibleTypes []string                    `json:"possibleTypes"`
}

type UnionDefinition struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description,omitempty"`
	Types       map[string]*UnionTypeDefinition `json:"types"`
}

type UnionTypeDefinition struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type InputDefinition struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description,omitempty"`
	InputValues map[string]*InputValueDefinition `json:"inputValues"`
	OneOf       bool                             `json:"oneOf,omitempty"`
}

type EnumDefinition struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description,omitempty"`
	Values      map[string]*EnumValueDefinition `json:"values"`
}

type EnumValueDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Index       int          `json:"index"`
	Deprecation *Deprecation `json:"deprecation,omitempty"`
}

type ScalarDefinition struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	SpecifiedByURL string `json:"specifiedByURL,omitempty"`
	// Upload marks file-like scalars that need multipart transport.
	Upload bool `json:"upload,omitempty"`
}

type DirectiveDefinition struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description,omitempty"`
	Args        map[string]*ArgumentDefinition `json:"args"`
	Repeatable  bool                           `json:"repeatable,omitempty"`
	Locations   []string                       `json:"locations"`
}

type InterfaceImpl struct {
	Interface string `json:"interface"`
	Index     int    `json:"index"`
}

type FieldDefinition struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description,omitempty"`
	Index       int                            `json:"index"`
	Args        map[string]*ArgumentDefinition `json:"args"`
	Type        *TypeExpr                      `json:"fieldType"`
	Deprecation *Deprecation                   `json:"deprecation,omitempty"`
}

type ArgumentDefinition struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Index        int          `json:"index"`
	DefaultValue Value        `json:"defaultValue,omitempty"`
	Default      string       `json:"default,omitempty"`
	Type         *TypeExpr    `json:"type"`
	Deprecation  *Deprecation `json:"deprecation,omitempty"`
}

type InputValueDefinition struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Index        int          `json:"index"`
	DefaultValue Value        `json:"defaultValue,omitempty"`
	Default      string       `json:"default,omitempty"`
	Type         *TypeExpr    `json:"type"`
	Deprecation  *Deprecation `json:"deprecation,omitempty"`
}

type Value = any

type Deprecation struct {
	Reason string `json:"reason,omitempty"`
}

// TypeMetadata is the federation configuration of one object type.
type TypeMetadata struct {
	Name      string                    `json:"name"`
	Fields    map[string]*FieldMetadata `json:"fields"`
	Resolvers []*ResolverDefinition     `json:"resolvers,omitempty"`
	Variables []*VariableDefinition     `json:"variables,omitempty"`
	// Lookups lists the subgraphs declared with @node for this type.
	Lookups []string `json:"lookups,omitempty"`
}

type FieldMetadata struct {
	Name      string                `json:"name"`
	Bindings  []*FieldBinding       `json:"bindings"`
	Resolvers []*ResolverDefinition `json:"resolvers,omitempty"`
	Variables []*VariableDefinition `json:"variables,omitempty"`
}

// FieldBinding says a subgraph serves a field under a local name.
type FieldBinding struct {
	Subgraph string `json:"subgraph"`
	Name     string `json:"name"`
}

type ResolverKind string

const (
	ResolverKindQuery      ResolverKind = "QUERY"
	ResolverKindBatch      ResolverKind = "BATCH"
	ResolverKindBatchByKey ResolverKind = "BATCH_BY_KEY"
	ResolverKindSubscribe  ResolverKind = "SUBSCRIBE"
)

func (k ResolverKind) IsBatch() bool {
	return k == ResolverKindBatch || k == ResolverKindBatchByKey
}

type ResolverDefinition struct {
	Subgraph string       `json:"subgraph"`
	Kind     ResolverKind `json:"kind"`
	Select   string       `json:"select"`
	// Template is the single field parsed from Select.
	Template      *language.Field      `json:"-"`
	Requires      []string             `json:"requires"`
	ArgumentTypes map[string]*TypeExpr `json:"argumentTypes,omitempty"`
	Implicit      bool                 `json:"implicit,omitempty"`
}

// ArgumentType returns the declared type of a required variable, if any.
func (r *ResolverDefinition) ArgumentType(name string) *TypeExpr {
	if r.ArgumentTypes == nil {
		return nil
	}
	return r.ArgumentTypes[name]
}

type VariableKind string

const (
	VariableKindArgument VariableKind = "ARGUMENT"
	VariableKindField    VariableKind = "FIELD"
)

type VariableDefinition struct {
	Name     string       `json:"name"`
	Subgraph string       `json:"subgraph"`
	Kind     VariableKind `json:"kind"`
	Argument string       `json:"argument,omitempty"`
	Select   string       `json:"select,omitempty"`
	Type     *TypeExpr    `json:"type"`
	Implicit bool         `json:"implicit,omitempty"`
}

// TypeExpr represents a GraphQL type expression (e.g. String, [String!], String!).
type TypeExpr struct {
	Kind   TypeExprKind `json:"kind"`
	OfType *TypeExpr    `json:"ofType,omitempty"`
	Named  string       `json:"named,omitempty"`
}

type TypeExprKind string

const (
	TypeExprKindNamed   TypeExprKind = "NAMED"
	TypeExprKindList    TypeExprKind = "LIST"
	TypeExprKindNonNull TypeExprKind = "NON_NULL"
)

func (t *TypeExpr) unwrap() string {
	if t == nil {
		return ""
	}
	if t.Kind == TypeExprKindNamed {
		return t.Named
	}
	return t.OfType.unwrap()
}

// NamedType returns the innermost named type.
func (t *TypeExpr) NamedType() string { return t.unwrap() }

func (t *TypeExpr) String() string {
	if t == nil {
		return "Unknown"
	}

	switch t.Kind {
	case TypeExprKindNamed:
		return t.Named
	case TypeExprKindList:
		return "[" + t.OfType.String() + "]"
	case TypeExprKindNonNull:
		inner := t.OfType.String()
		if strings.HasSuffix(inner, "!") {
			return inner
		}
		return inner + "!"
	default:
		return "Unknown"
	}
}

func (p *Project) Type(name string) *TypeMetadata {
	return p.Metadata[name]
}

func (p *Project) Subgraph(name string) *Subgraph {
	for _, sg := range p.Subgraphs {
		if sg.Name == name {
			return sg
		}
	}
	return nil
}

func (t *TypeMetadata) Field(name string) *FieldMetadata {
	if t == nil {
		return nil
	}
	return t.Fields[name]
}

// ResolversFor returns the entity resolvers of the type in subgraph, in
// declaration order.
func (t *TypeMetadata) ResolversFor(subgraph string) []*ResolverDefinition {
	if t == nil {
		return nil
	}
	return resolversFor(t.Resolvers, subgraph)
}

// VariableFor returns the field variable name exported by subgraph.
func (t *TypeMetadata) VariableFor(subgraph, name string) *VariableDefinition {
	if t == nil {
		return nil
	}
	for _, v := range t.Variables {
		if v.Subgraph == subgraph && v.Name == name {
			return v
		}
	}
	return nil
}

// CanLookup reports whether subgraph may answer global-id lookups for the type.
func (t *TypeMetadata) CanLookup(subgraph string) bool {
	if t == nil {
		return false
	}
	if len(t.Lookups) == 0 {
		return true
	}
	for _, sg := range t.Lookups {
		if sg == subgraph {
			return true
		}
	}
	return false
}

func (f *FieldMetadata) Binding(subgraph string) *FieldBinding {
	if f == nil {
		return nil
	}
	for _, b := range f.Bindings {
		if b.Subgraph == subgraph {
			return b
		}
	}
	return nil
}

func (f *FieldMetadata) ResolversFor(subgraph string) []*ResolverDefinition {
	if f == nil {
		return nil
	}
	return resolversFor(f.Resolvers, subgraph)
}

// ArgumentVariables returns the argument variables of the field available to subgraph.
func (f *FieldMetadata) ArgumentVariables(subgraph string) []*VariableDefinition {
	if f == nil {
		return nil
	}
	var out []*VariableDefinition
	for _, v := range f.Variables {
		if v.Subgraph == subgraph {
			out = append(out, v)
		}
	}
	return out
}

func resolversFor(all []*ResolverDefinition, subgraph string) []*ResolverDefinition {
	var out []*ResolverDefinition
	for _, r := range all {
		if r.Subgraph == subgraph {
			out = append(out, r)
		}
	}
	return out
}

func (e *ObjectDefinition) OrderedFields() []*FieldDefinition {
	return orderedFields(e.Fields)
}

func (e *InterfaceDefinition) OrderedFields() []*FieldDefinition {
	return orderedFields(e.Fields)
}

func orderedFields(m map[string]*FieldDefinition) []*FieldDefinition {
	fields := make([]*FieldDefinition, 0, len(m))
	for _, field := range m {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Index < fields[j].Index
	})
	return fields
}

func (f *FieldDefinition) OrderedArgs() []*ArgumentDefinition {
	args := make([]*ArgumentDefinition, 0, len(f.Args))
	for _, arg := range f.Args {
		args = append(args, arg)
	}
	sort.Slice(args, func(i, j int) bool {
		return args[i].Index < args[j].Index
	})
	return args
}

func (e *EnumDefinition) OrderedValues() []*EnumValueDefinition {
	values := make([]*EnumValueDefinition, 0, len(e.Values))
	for _, val := range e.Values {
		values = append(values, val)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Index < values[j].Index
	})
	return values
}

func (e *InputDefinition) OrderedInputValues() []*InputValueDefinition {
	values := make([]*InputValueDefinition, 0, len(e.InputValues))
	for _, val := range e.InputValues {
		values = append(values, val)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Index < values[j].Index
	})
	return values
}
