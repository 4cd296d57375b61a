// Package plan holds the immutable query plan produced by the planner.
package plan

import (
	"github.com/hanpama/fedplan/internal/language"
)

// Kind names a plan node variant.
type Kind string

const (
	KindFetch       Kind = "Fetch"
	KindBatchFetch  Kind = "BatchFetch"
	KindSubscribe   Kind = "Subscribe"
	KindIntrospect  Kind = "Introspect"
	KindResolveNode Kind = "ResolveNode"
	KindCompose     Kind = "Compose"
	KindSequence    Kind = "Sequence"
	KindParallel    Kind = "Parallel"
)

// TransportFeature tells the runtime how a request must be framed.
type TransportFeature string

const (
	TransportStandard TransportFeature = "Standard"
	// TransportExtended is multipart framing, needed when a variable may
	// carry an upload.
	TransportExtended TransportFeature = "Extended"
)

// Node is one of Fetch, BatchFetch, Subscribe, Introspect, ResolveNode,
// Compose, Sequence or Parallel.
type Node interface {
	Kind() Kind
}

// Plan is the result of planning one operation.
type Plan struct {
	Name      string
	Operation language.Operation
	Root      Node
}

// Request is the document sent to a subgraph.
type Request struct {
	Operation language.Operation
	Document  string
	// Variables lists the declared variables in declaration order. Each is
	// either an operation variable or a state variable listed in Imports.
	Variables []string
}

// Import binds a request variable to a state key published by an earlier node.
type Import struct {
	Variable string
	StateKey string
}

// Export is a state key a node publishes from one selection set.
type Export struct {
	StateKey       string
	SelectionSetID int
	Variable       string
}

// Fetch sends one request to a subgraph.
type Fetch struct {
	ID             int
	Subgraph       string
	Request        Request
	SelectionSetID int
	Path           []string // response path of the selection set
	Imports        []Import
	Exports        []Export
	Transport      TransportFeature
	DependsOn      []int
}

func (*Fetch) Kind() Kind { return KindFetch }

// BatchFetch sends one request for many parent entities at once. Batch
// lists the variables that carry one value per entity.
type BatchFetch struct {
	Fetch
	Batch []Import
	// KeyExports are the state keys of the batch keys, so results can be
	// matched back to the entities that requested them.
	KeyExports []Export
}

func (*BatchFetch) Kind() Kind { return KindBatchFetch }

// Subscribe opens a subscription. Each event runs Then.
type Subscribe struct {
	Fetch
	Then *Sequence
}

func (*Subscribe) Kind() Kind { return KindSubscribe }

// Introspect answers introspection fields of the root selection set locally.
type Introspect struct {
	ID     int
	Fields []string // response names
}

func (*Introspect) Kind() Kind { return KindIntrospect }

// Entity is the follow-up fetch of a global-id lookup for one type.
type Entity struct {
	Type string
	Node Node
}

// ResolveNode answers node(id:) and nodes(ids:) lookups. The runtime decodes
// each id, picks the entity of its type and runs it with the id bound to
// IDVariable.
type ResolveNode struct {
	ID           int
	ResponseName string
	Field        string
	// IDs is the argument value as written in the operation.
	IDs        string
	IDVariable string
	Entities   []Entity
	// Passthrough lists types answered from the id alone.
	Passthrough []string
}

func (*ResolveNode) Kind() Kind { return KindResolveNode }

// Compose merges the partial results for the listed selection sets.
type Compose struct {
	SelectionSetIDs []int
}

func (*Compose) Kind() Kind { return KindCompose }

// Sequence runs its nodes in order.
type Sequence struct {
	Nodes []Node
}

func (*Sequence) Kind() Kind { return KindSequence }

// Parallel runs its nodes concurrently; all complete before the next node
// of the enclosing Sequence starts.
type Parallel struct {
	Nodes []Node
}

func (*Parallel) Kind() Kind { return KindParallel }

// Walk visits n and its descendants depth first in plan order.
// Entity nodes of a ResolveNode are visited after the ResolveNode.
func Walk(n Node, fn func(Node)) {
	stack := []Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		fn(cur)
		var children []Node
		switch v := cur.(type) {
		case *Sequence:
			children = v.Nodes
		case *Parallel:
			children = v.Nodes
		case *Subscribe:
			if v.Then != nil {
				children = []Node{v.Then}
			}
		case *ResolveNode:
			for _, e := range v.Entities {
				children = append(children, e.Node)
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// FetchOf returns the fetch configuration of a Fetch, BatchFetch or
// Subscribe node.
func FetchOf(n Node) (*Fetch, bool) {
	switch v := n.(type) {
	case *Fetch:
		return v, true
	case *BatchFetch:
		return &v.Fetch, true
	case *Subscribe:
		return &v.Fetch, true
	}
	return nil, false
}
