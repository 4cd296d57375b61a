package ir

import (
	"context"

	language "github.com/hanpama/fedplan/internal/language"
)

type builder struct {
	Sources     map[SourceID]*Source
	Schema      *Schema
	Subgraphs   []*Subgraph
	Definitions map[string]*Definition
	Directives  map[string]*DirectiveDefinition
	Metadata    map[string]*TypeMetadata

	violations []*Violation
	discovery  Discovery
	srcOrder   []SourceID
	srcDocs    map[SourceID]*language.SchemaDocument
}

// Build reads every document of disc and builds the federation project.
// Documents are processed in listing order, so subgraph declaration order is
// stable for a given discovery.
func Build(ctx context.Context, disc Discovery) (*Project, error) {
	b := &builder{
		Sources:     make(map[SourceID]*Source),
		Schema:      nil,
		Definitions: make(map[string]*Definition),
		Directives:  make(map[string]*DirectiveDefinition),
		Metadata:    make(map[string]*TypeMetadata),
		violations:  nil,
		discovery:   disc,
		srcDocs:     make(map[SourceID]*language.SchemaDocument),
	}

	if err := b.build(ctx); err != nil {
		return nil, err
	}

	return &Project{
		Sources:     b.Sources,
		Schema:      b.Schema,
		Subgraphs:   b.Subgraphs,
		Definitions: b.Definitions,
		Directives:  b.Directives,
		Metadata:    b.Metadata,
	}, nil
}

func (b *builder) build(ctx context.Context) (err error) {
	srcs, err := b.discovery.ListMetadata(ctx)
	if err != nil {
		return err
	}

	for _, sm := range srcs {
		b.Sources[sm.ID] = &Source{
			ID:       sm.ID,
			Name:     sm.Name,
			FilePath: sm.FilePath,
		}
		b.srcOrder = append(b.srcOrder, sm.ID)
	}

	// Parse configuration documents
	for _, srcID := range b.srcOrder {
		sdl, err := b.discovery.ReadSourceSDL(ctx, srcID)
		if err != nil {
			return err
		}
		document, err := language.ParseSchema(b.Sources[srcID].FilePath, sdl)
		if err != nil {
			return err
		}
		b.srcDocs[srcID] = document
	}

	for _, scalar := range builtinScalars() {
		b.Definitions[scalar.Name] = &Definition{Scalar: scalar}
	}

	if err = b.populateDefinitions(); err != nil {
		return err
	}

	// Schema root types, @subgraph and @node declarations
	if err = b.processSchemaDefinitions(); err != nil {
		return err
	}

	// Fields, input values and enum values
	if err = b.populateReferences(); err != nil {
		return err
	}
	// Interface implementations and union members
	if err = b.populateImplementations(); err != nil {
		return err
	}

	if err = b.populateDirectiveDefinitions(); err != nil {
		return err
	}

	// @source, @resolver, @variable, @upload, @deprecated
	if err = b.populateDirectiveUses(); err != nil {
		return err
	}

	// Implicit root resolvers and argument variables
	if err = b.applyImplicitRules(); err != nil {
		return err
	}

	if err = b.validateRequirements(); err != nil {
		return err
	}

	return nil
}

// docs iterates the parsed documents in listing order.
func (b *builder) docs() []*language.SchemaDocument {
	out := make([]*language.SchemaDocument, 0, len(b.srcOrder))
	for _, id := range b.srcOrder {
		out = append(out, b.srcDocs[id])
	}
	return out
}

func (b *builder) addViolation(v ...*Violation) {
	b.violations = append(b.violations, v...)
}

func (b *builder) result() error {
	if len(b.violations) > 0 {
		return ValidationError(b.violations)
	}
	return nil
}
