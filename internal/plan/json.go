package plan

import "encoding/json"

// MarshalJSON encodes the plan with a "kind" tag on every node.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":      p.Name,
		"operation": string(p.Operation),
		"root":      nodeJSON(p.Root),
	})
}

func nodeJSON(n Node) map[string]any {
	if n == nil {
		return nil
	}
	out := map[string]any{"kind": string(n.Kind())}
	switch v := n.(type) {
	case *Sequence:
		out["nodes"] = nodesJSON(v.Nodes)
	case *Parallel:
		out["nodes"] = nodesJSON(v.Nodes)
	case *Compose:
		out["selectionSets"] = v.SelectionSetIDs
	case *Introspect:
		out["id"] = v.ID
		out["fields"] = v.Fields
	case *Fetch:
		fetchJSON(out, v)
	case *BatchFetch:
		fetchJSON(out, &v.Fetch)
		out["batch"] = importsJSON(v.Batch)
		if len(v.KeyExports) > 0 {
			out["keyExports"] = exportsJSON(v.KeyExports)
		}
	case *Subscribe:
		fetchJSON(out, &v.Fetch)
		if v.Then != nil {
			out["then"] = nodeJSON(v.Then)
		}
	case *ResolveNode:
		out["id"] = v.ID
		out["responseName"] = v.ResponseName
		out["field"] = v.Field
		out["ids"] = v.IDs
		out["idVariable"] = v.IDVariable
		entities := make([]map[string]any, len(v.Entities))
		for i, e := range v.Entities {
			entities[i] = map[string]any{"type": e.Type, "node": nodeJSON(e.Node)}
		}
		out["entities"] = entities
		if len(v.Passthrough) > 0 {
			out["passthrough"] = v.Passthrough
		}
	}
	return out
}

func nodesJSON(nodes []Node) []map[string]any {
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = nodeJSON(n)
	}
	return out
}

func fetchJSON(out map[string]any, f *Fetch) {
	out["id"] = f.ID
	out["subgraph"] = f.Subgraph
	out["operation"] = string(f.Request.Operation)
	out["document"] = f.Request.Document
	out["variables"] = nonNilStrings(f.Request.Variables)
	out["selectionSet"] = f.SelectionSetID
	out["path"] = nonNilStrings(f.Path)
	out["transport"] = string(f.Transport)
	if len(f.Imports) > 0 {
		out["imports"] = importsJSON(f.Imports)
	}
	if len(f.Exports) > 0 {
		out["exports"] = exportsJSON(f.Exports)
	}
	if len(f.DependsOn) > 0 {
		out["dependsOn"] = f.DependsOn
	}
}

func importsJSON(imports []Import) []map[string]string {
	out := make([]map[string]string, len(imports))
	for i, imp := range imports {
		out[i] = map[string]string{"variable": imp.Variable, "stateKey": imp.StateKey}
	}
	return out
}

func exportsJSON(exports []Export) []map[string]any {
	out := make([]map[string]any, len(exports))
	for i, exp := range exports {
		out[i] = map[string]any{
			"stateKey":     exp.StateKey,
			"variable":     exp.Variable,
			"selectionSet": exp.SelectionSetID,
		}
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
