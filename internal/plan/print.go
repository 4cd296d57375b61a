package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders the plan as indented text. The output is deterministic and
// used for snapshots.
func Print(p *Plan) string {
	var b strings.Builder
	op := string(p.Operation)
	if p.Name != "" {
		op += " " + p.Name
	}
	b.WriteString(op)
	b.WriteString("\n")
	printNode(&b, p.Root, 0)
	return b.String()
}

// PrintNode renders a single node and its children.
func PrintNode(n Node) string {
	var b strings.Builder
	printNode(&b, n, 0)
	return b.String()
}

func printNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *Sequence:
		b.WriteString(indent + "Sequence {\n")
		for _, c := range v.Nodes {
			printNode(b, c, depth+1)
		}
		b.WriteString(indent + "}\n")
	case *Parallel:
		b.WriteString(indent + "Parallel {\n")
		for _, c := range v.Nodes {
			printNode(b, c, depth+1)
		}
		b.WriteString(indent + "}\n")
	case *Compose:
		b.WriteString(indent + "Compose " + intList(v.SelectionSetIDs) + "\n")
	case *Introspect:
		fmt.Fprintf(b, "%sIntrospect(%d) %s\n", indent, v.ID, strings.Join(v.Fields, ", "))
	case *Fetch:
		printFetch(b, "Fetch", v, depth)
	case *BatchFetch:
		printFetch(b, "BatchFetch", &v.Fetch, depth)
		if len(v.Batch) > 0 {
			b.WriteString(indent + "  batch: " + importList(v.Batch) + "\n")
		}
		if len(v.KeyExports) > 0 {
			b.WriteString(indent + "  keys: " + exportList(v.KeyExports) + "\n")
		}
	case *Subscribe:
		printFetch(b, "Subscribe", &v.Fetch, depth)
		if v.Then != nil {
			printNode(b, v.Then, depth+1)
		}
	case *ResolveNode:
		fmt.Fprintf(b, "%sResolveNode(%d) %s(%s) as $%s\n", indent, v.ID, v.Field, v.IDs, v.IDVariable)
		for _, e := range v.Entities {
			b.WriteString(indent + "  " + e.Type + ":\n")
			printNode(b, e.Node, depth+2)
		}
		if len(v.Passthrough) > 0 {
			b.WriteString(indent + "  passthrough: " + strings.Join(v.Passthrough, ", ") + "\n")
		}
	}
}

func printFetch(b *strings.Builder, kind string, f *Fetch, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s(%d) %s", indent, kind, f.ID, f.Subgraph)
	if len(f.DependsOn) > 0 {
		b.WriteString(" after " + intList(f.DependsOn))
	}
	b.WriteString("\n")
	b.WriteString(indent + "  " + f.Request.Document + "\n")
	if len(f.Imports) > 0 {
		b.WriteString(indent + "  imports: " + importList(f.Imports) + "\n")
	}
	if len(f.Exports) > 0 {
		b.WriteString(indent + "  exports: " + exportList(f.Exports) + "\n")
	}
	if f.Transport == TransportExtended {
		b.WriteString(indent + "  transport: " + string(f.Transport) + "\n")
	}
}

func intList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func importList(imports []Import) string {
	parts := make([]string, len(imports))
	for i, imp := range imports {
		parts[i] = imp.Variable + "=" + imp.StateKey
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func exportList(exports []Export) string {
	parts := make([]string, len(exports))
	for i, exp := range exports {
		parts[i] = exp.StateKey + "=" + exp.Variable
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
