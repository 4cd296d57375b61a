package language

import (
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

var (
	preludeOnce sync.Once
	prelude     *SchemaDocument
)

// Prelude returns the built-in declarations every schema starts from: the
// specified scalars and directives and the introspection types. The document
// is shared and must not be modified.
func Prelude() *SchemaDocument {
	preludeOnce.Do(func() {
		doc, err := parser.ParseSchema(validator.Prelude)
		if err != nil {
			panic("language: prelude does not parse: " + err.Error())
		}
		prelude = doc
	})
	return prelude
}

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates a complete SDL document, prelude included.
func LoadSchema(name, source string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadQuery parses source and validates it against s.
func LoadQuery(s *Schema, source string) (*QueryDocument, error) {
	doc, errs := gqlparser.LoadQuery(s, source)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// VariableNames returns the names of the variables referenced in v, in order of
// first appearance.
func VariableNames(v *Value) []string {
	var names []string
	seen := map[string]bool{}
	stack := []*Value{v}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		if cur.Kind == Variable {
			if !seen[cur.Raw] {
				seen[cur.Raw] = true
				names = append(names, cur.Raw)
			}
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i].Value)
		}
	}
	return names
}
