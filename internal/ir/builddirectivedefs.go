package ir

// fusionDirectives are interpreted by the builder and never become part of
// the gateway schema, even when a document declares them.
var fusionDirectives = map[string]bool{
	"subgraph": true,
	"source":   true,
	"resolver": true,
	"variable": true,
	"node":     true,
	"upload":   true,
}

func (b *builder) populateDirectiveDefinitions() error {
	for _, doc := range b.docs() {
		for _, directive := range doc.Directives {
			if fusionDirectives[directive.Name] {
				continue
			}
			if _, ok := b.Directives[directive.Name]; ok {
				b.addViolation(violationDirectiveAlreadyDefined(directive.Name, directive.Position))
				continue
			}

			def := &DirectiveDefinition{
				Name:        directive.Name,
				Description: directive.Description,
				Args:        make(map[string]*ArgumentDefinition, len(directive.Arguments)),
				Repeatable:  directive.IsRepeatable,
				Locations:   make([]string, len(directive.Locations)),
			}

			// Convert locations to strings
			for i, loc := range directive.Locations {
				def.Locations[i] = string(loc)
			}

			// Process arguments
			for _, argNode := range directive.Arguments {
				def.Args[argNode.Name] = b.argument(len(def.Args), argNode)
			}

			b.Directives[directive.Name] = def
		}
	}

	return b.result()
}
