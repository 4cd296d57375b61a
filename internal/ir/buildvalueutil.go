package ir

import (
	"strings"

	language "github.com/hanpama/fedplan/internal/language"
)

func (b *builder) getStringValue(node *language.Value) string {
	if node == nil {
		return ""
	}
	if node.Kind != language.StringValue && node.Kind != language.BlockValue {
		b.addViolation(violationExpectedString(node.Position))
		return ""
	}
	return node.Raw
}

// getEnumValue accepts an enum literal or its string spelling.
func (b *builder) getEnumValue(node *language.Value) string {
	if node.Kind != language.EnumValue && node.Kind != language.StringValue {
		b.addViolation(violationExpectedEnum(node.Position))
		return ""
	}
	return node.Raw
}

func (b *builder) getStringListValue(node *language.Value) []string {
	// Input coercion: a single value stands for a list of one
	if node.Kind == language.StringValue {
		return []string{node.Raw}
	}
	if node.Kind != language.ListValue {
		b.addViolation(violationExpectedList(node.Position))
		return nil
	}
	var values []string
	for _, item := range node.Children {
		values = append(values, b.getStringValue(item.Value))
	}
	return values
}

func (b *builder) getObjectValue(node *language.Value) map[string]*language.Value {
	if node.Kind != language.ObjectValue {
		b.addViolation(violationExpectedObject(node.Position))
		return nil
	}
	result := make(map[string]*language.Value)
	for _, field := range node.Children {
		result[field.Name] = field.Value
	}
	return result
}

func (b *builder) getObjectListValue(node *language.Value) []map[string]*language.Value {
	if node.Kind == language.ObjectValue {
		return []map[string]*language.Value{b.getObjectValue(node)}
	}
	if node.Kind != language.ListValue {
		b.addViolation(violationExpectedList(node.Position))
		return nil
	}
	var values []map[string]*language.Value
	for _, item := range node.Children {
		if obj := b.getObjectValue(item.Value); obj != nil {
			values = append(values, obj)
		}
	}
	return values
}

// parseTypeExpr parses a type reference such as "[ID!]!" and checks that the
// named type is an input type.
func (b *builder) parseTypeExpr(text string, pos *language.Position) *TypeExpr {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		b.addViolation(violationWithPosition("empty type reference", pos))
		return nil
	case strings.HasSuffix(text, "!"):
		inner := b.parseTypeExpr(text[:len(text)-1], pos)
		if inner == nil {
			return nil
		}
		return &TypeExpr{Kind: TypeExprKindNonNull, OfType: inner}
	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"):
		inner := b.parseTypeExpr(text[1:len(text)-1], pos)
		if inner == nil {
			return nil
		}
		return &TypeExpr{Kind: TypeExprKindList, OfType: inner}
	}
	def, ok := b.Definitions[text]
	if !ok {
		b.addViolation(violationTypeNotFound(text, pos))
		return nil
	}
	if def.Input == nil && def.Scalar == nil && def.Enum == nil {
		b.addViolation(violationTypeNotInput(text, pos))
		return nil
	}
	return &TypeExpr{Kind: TypeExprKindNamed, Named: text}
}
