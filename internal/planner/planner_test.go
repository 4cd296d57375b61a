package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedplan/internal/introspection"
	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
	"github.com/hanpama/fedplan/internal/schema"
)

func compileOperation(t *testing.T, fixture, query, name string) (*operation.Operation, *Planner) {
	t.Helper()
	sdl, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	s, project, err := schema.BuildFromSDL(string(sdl))
	require.NoError(t, err)
	validator, err := schema.Validator(s)
	require.NoError(t, err)
	doc, err := language.LoadQuery(validator, query)
	require.NoError(t, err)
	op, err := operation.Compile(introspection.Extend(s), doc, name)
	require.NoError(t, err)
	return op, New(project)
}

func mustPlan(t *testing.T, fixture, query string) *plan.Plan {
	t.Helper()
	op, p := compileOperation(t, fixture, query, "")
	result, err := p.Plan(op)
	require.NoError(t, err)
	assertDependencySound(t, result)
	return result
}

func planError(t *testing.T, fixture, query string) error {
	t.Helper()
	op, p := compileOperation(t, fixture, query, "")
	_, err := p.Plan(op)
	require.Error(t, err)
	return err
}

func assertPrinted(t *testing.T, want string, p *plan.Plan) {
	t.Helper()
	if diff := cmp.Diff(want, plan.Print(p)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

// assertSnapshot compares got with testdata/<name>.golden. Run with -update
// to rewrite the file.
func assertSnapshot(t *testing.T, name string, got []byte) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir("testdata"))
	g.Assert(t, name, got)
}

func fetchByID(t *testing.T, p *plan.Plan, id int) *plan.Fetch {
	t.Helper()
	var found *plan.Fetch
	plan.Walk(p.Root, func(n plan.Node) {
		if f, ok := plan.FetchOf(n); ok && f.ID == id {
			found = f
		}
	})
	require.NotNil(t, found, "no fetch %d in plan", id)
	return found
}

// assertDependencySound checks that every fetch runs after the fetches it
// depends on, and never in the same Parallel group.
func assertDependencySound(t *testing.T, p *plan.Plan) {
	t.Helper()
	stage := map[int]int{}
	var visit func(n plan.Node, at int) int
	visit = func(n plan.Node, at int) int {
		switch v := n.(type) {
		case *plan.Sequence:
			for _, c := range v.Nodes {
				at = visit(c, at) + 1
			}
			return at
		case *plan.Parallel:
			end := at
			for _, c := range v.Nodes {
				if e := visit(c, at); e > end {
					end = e
				}
			}
			return end
		case *plan.Subscribe:
			stage[v.ID] = at
			if v.Then != nil {
				return visit(v.Then, at+1)
			}
		case *plan.ResolveNode:
			stage[v.ID] = at
			for _, e := range v.Entities {
				visit(e.Node, at)
			}
		case *plan.Introspect:
			stage[v.ID] = at
		default:
			if f, ok := plan.FetchOf(n); ok {
				stage[f.ID] = at
			}
		}
		return at
	}
	visit(p.Root, 0)

	plan.Walk(p.Root, func(n plan.Node) {
		f, ok := plan.FetchOf(n)
		if !ok {
			return
		}
		for _, dep := range f.DependsOn {
			at, placed := stage[dep]
			require.True(t, placed, "dependency %d of fetch %d is not in the plan", dep, f.ID)
			require.Less(t, at, stage[f.ID], "fetch %d runs before its dependency %d", f.ID, dep)
		}
	})
}

func TestIndependentRootFieldsRunInParallel(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `{ a: fieldFromX b: fieldFromY }`)
	assertPrinted(t, `query
Sequence {
  Parallel {
    Fetch(1) X
      query { a: fieldFromX }
    Fetch(2) Y
      query { b: fieldFromY }
  }
  Compose [0]
}
`, p)
}

func TestRootRequirementSynthesizesStep(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `{ entity(id: "1") { x y } }`)
	assertPrinted(t, `query
Sequence {
  Fetch(2) Y
    query { _fusion_exports_1: key }
    exports: [_fusion_exports_1=key]
  Fetch(1) X after [2]
    query($key: String!) { entity: entityByKey(id: "1", key: $key) { x y } }
    imports: [key=_fusion_exports_1]
  Compose [0, 1]
}
`, p)
}

func TestRootRequirementReusesSibling(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `{ key entity(id: "1") { x } }`)
	assertPrinted(t, `query
Sequence {
  Fetch(2) Y
    query { key _fusion_exports_1: key }
    exports: [_fusion_exports_1=key]
  Fetch(1) X after [2]
    query($key: String!) { entity: entityByKey(id: "1", key: $key) { x } }
    imports: [key=_fusion_exports_1]
  Compose [0, 1]
}
`, p)
}

func TestNestedRequirementSynthesizesEntityStep(t *testing.T) {
	p := mustPlan(t, "profile.graphql", `{ userById(id: "1") { name reviews } }`)
	assertPrinted(t, `query
Sequence {
  Fetch(1) Accounts
    query { userById(id: "1") { name _fusion_exports_2: id } }
    exports: [_fusion_exports_2=User_id]
  Compose [0]
  Fetch(3) Profile after [1]
    query($User_id: ID!) { profileByUserId(id: $User_id) { _fusion_exports_1: email } }
    imports: [User_id=_fusion_exports_2]
    exports: [_fusion_exports_1=User_email]
  Fetch(2) Reviews after [3]
    query($User_email: String!) { reviews: reviewsByEmail(email: $User_email) }
    imports: [User_email=_fusion_exports_1]
  Compose [1]
}
`, p)
}

func TestRequirementCoverPrefersFewerSteps(t *testing.T) {
	p := mustPlan(t, "cover.graphql", `{ pair }`)
	assertPrinted(t, `query
Sequence {
  Fetch(2) B
    query { _fusion_exports_1: left _fusion_exports_2: right }
    exports: [_fusion_exports_1=left, _fusion_exports_2=right]
  Fetch(1) C after [2]
    query($left: String!, $right: String!) { pair(left: $left, right: $right) }
    imports: [left=_fusion_exports_1, right=_fusion_exports_2]
  Compose [0]
}
`, p)
	require.Equal(t, 2, StepCount(p))
}

func TestRequirementPrefersExistingDependency(t *testing.T) {
	p := mustPlan(t, "billing.graphql", `{ userById(id: "1") { name email invoices credit } }`)

	accounts := fetchByID(t, p, 1)
	require.Equal(t, "Accounts", accounts.Subgraph)
	require.Equal(t, []plan.Export{{StateKey: "_fusion_exports_1", SelectionSetID: 1, Variable: "User_handle"}}, accounts.Exports)

	// credit could read User_id from Accounts as well, but Billing already
	// waits for Profile
	billing := fetchByID(t, p, 2)
	require.Equal(t, "Billing", billing.Subgraph)
	require.Equal(t, []int{3}, billing.DependsOn)
	require.Equal(t, []plan.Import{
		{Variable: "User_email", StateKey: "_fusion_exports_2"},
		{Variable: "User_id", StateKey: "_fusion_exports_3"},
	}, billing.Imports)
}

func TestMutationFieldsAreSerialized(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `mutation { m1 m2 }`)
	assertPrinted(t, `mutation
Sequence {
  Fetch(1) X
    mutation { m1 }
  Compose [0]
  Fetch(2) Y after [1]
    mutation { m2 }
  Compose [0]
}
`, p)

	plan.Walk(p.Root, func(n plan.Node) {
		_, isParallel := n.(*plan.Parallel)
		require.False(t, isParallel, "mutation fields must never run in parallel")
	})
}

func TestMutationKeepsFieldOrder(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `mutation { a: m1 b: m2 c: m1 }`)
	var docs []string
	plan.Walk(p.Root, func(n plan.Node) {
		if f, ok := plan.FetchOf(n); ok {
			docs = append(docs, f.Request.Document)
		}
	})
	require.Equal(t, []string{
		"mutation { a: m1 }",
		"mutation { b: m2 }",
		"mutation { c: m1 }",
	}, docs)
}

func TestPlanIsDeterministic(t *testing.T) {
	queries := []struct{ fixture, query string }{
		{"xy.graphql", `{ a: fieldFromX b: fieldFromY entity(id: "2") { x y } }`},
		{"accounts.graphql", `{ userById(id: "1") { name reviews { body author { name } } } }`},
		{"node.graphql", `{ node(id: "VXNlcjox") { id ... on User { name reviewCount } } }`},
	}
	for _, q := range queries {
		first := plan.Print(mustPlan(t, q.fixture, q.query))
		for i := 0; i < 5; i++ {
			require.Equal(t, first, plan.Print(mustPlan(t, q.fixture, q.query)))
		}
	}
}

func TestBatchByKeyEntity(t *testing.T) {
	op, p := compileOperation(t, "accounts.graphql", `query Reviews { userById(id: "1") { name reviews { body } } }`, "Reviews")
	result, err := p.Plan(op)
	require.NoError(t, err)
	assertPrinted(t, `query Reviews
Sequence {
  Fetch(1) Accounts
    query Reviews_1 { userById(id: "1") { name: username _fusion_exports_1: id } }
    exports: [_fusion_exports_1=User_id]
  Compose [0]
  BatchFetch(2) Reviews after [1]
    query Reviews_2($User_id: [ID!]!) { authorsById(ids: $User_id) { reviews { body } _fusion_exports_2: id } }
    imports: [User_id=_fusion_exports_1]
    batch: [User_id=_fusion_exports_1]
    keys: [_fusion_exports_2=User_id]
  Compose [1, 2]
}
`, result)
}

func TestBatchResolverInListContext(t *testing.T) {
	p := mustPlan(t, "accounts.graphql", `{ topReviews(first: 2) { body author { name } } }`)
	assertPrinted(t, `query
Sequence {
  Fetch(1) Reviews
    query { topReviews: reviews(first: 2) { body author { _fusion_exports_1: id } } }
    exports: [_fusion_exports_1=User_id]
  Compose [0, 1]
  BatchFetch(2) Accounts after [1]
    query($User_id: [ID!]!) { usersById(ids: $User_id) { name: username } }
    imports: [User_id=_fusion_exports_1]
    batch: [User_id=_fusion_exports_1]
  Compose [2]
}
`, p)
}

func TestOmittedArgumentIsDropped(t *testing.T) {
	p := mustPlan(t, "accounts.graphql", `{ topReviews { body } }`)
	f, ok := plan.FetchOf(p.Root.(*plan.Sequence).Nodes[0])
	require.True(t, ok)
	require.Equal(t, "query { topReviews: reviews { body } }", f.Request.Document)
}

func TestPathStep(t *testing.T) {
	p := mustPlan(t, "paths.graphql", `{ me { name reviewCount } }`)
	assertPrinted(t, `query
Sequence {
  Parallel {
    Fetch(1) Accounts
      query { me { name } }
    Fetch(2) Reviews
      query { me { reviewCount } }
  }
  Compose [0, 1]
}
`, p)
}

func TestUnreachableStep(t *testing.T) {
	err := planError(t, "paths.graphql", `{ viewer { reviewCount } }`)
	require.True(t, errors.Is(err, ErrUnreachableStep), "got %v", err)
}

func TestUnresolvableMutationRequirement(t *testing.T) {
	err := planError(t, "xy.graphql", `mutation { act }`)
	require.True(t, errors.Is(err, ErrMetadataInconsistency), "got %v", err)
}

func TestForwardedVariables(t *testing.T) {
	op, p := compileOperation(t, "products.graphql",
		`query Product($upc: String!, $locale: String, $withName: Boolean!) {
			product(upc: $upc) { upc name(locale: $locale) @include(if: $withName) }
		}`, "Product")
	result, err := p.Plan(op)
	require.NoError(t, err)
	f, ok := plan.FetchOf(result.Root.(*plan.Sequence).Nodes[0])
	require.True(t, ok)
	require.Equal(t,
		`query Product_1($upc: String!, $locale: String, $withName: Boolean!) { product(upc: $upc) { upc name(locale: $locale) @include(if: $withName) } }`,
		f.Request.Document)
	require.Equal(t, []string{"upc", "locale", "withName"}, f.Request.Variables)
	require.Equal(t, plan.TransportStandard, f.Transport)
}

func TestUnconditionalOccurrenceDropsCondition(t *testing.T) {
	op, p := compileOperation(t, "products.graphql",
		`query Product($upc: String!, $x: Boolean!) { product(upc: $upc) { upc @include(if: $x) upc } }`, "Product")
	result, err := p.Plan(op)
	require.NoError(t, err)
	f, ok := plan.FetchOf(result.Root.(*plan.Sequence).Nodes[0])
	require.True(t, ok)
	require.Equal(t, `query Product_1($upc: String!) { product(upc: $upc) { upc } }`, f.Request.Document)
}

func TestUploadUpgradesTransport(t *testing.T) {
	for _, tc := range []struct {
		name  string
		query string
		doc   string
	}{
		{
			name:  "direct",
			query: `mutation Attach($file: Upload!) { uploadManual(upc: "a", file: $file) }`,
			doc:   `mutation Attach_1($file: Upload!) { uploadManual(upc: "a", file: $file) }`,
		},
		{
			name:  "nested in input",
			query: `mutation Attach($input: ManualInput!) { attachManual(upc: "a", input: $input) }`,
			doc:   `mutation Attach_1($input: ManualInput!) { attachManual: attach(upc: "a", input: $input) }`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			op, p := compileOperation(t, "products.graphql", tc.query, "Attach")
			result, err := p.Plan(op)
			require.NoError(t, err)
			f, ok := plan.FetchOf(result.Root.(*plan.Sequence).Nodes[0])
			require.True(t, ok)
			require.Equal(t, tc.doc, f.Request.Document)
			require.Equal(t, plan.TransportExtended, f.Transport)
			require.Equal(t, language.Mutation, f.Request.Operation)
		})
	}
}

func TestNodeLookup(t *testing.T) {
	p := mustPlan(t, "node.graphql", `{ node(id: "VXNlcjox") { id ... on User { name reviewCount } } }`)

	seq := p.Root.(*plan.Sequence)
	rn, ok := seq.Nodes[0].(*plan.ResolveNode)
	require.True(t, ok, "first node is %T", seq.Nodes[0])
	require.Equal(t, "node", rn.Field)
	require.Equal(t, `"VXNlcjox"`, rn.IDs)
	require.Equal(t, "_fusion_node_id", rn.IDVariable)
	require.Equal(t, []string{"Review"}, rn.Passthrough)
	require.Len(t, rn.Entities, 1)
	require.Equal(t, "User", rn.Entities[0].Type)

	entity, ok := rn.Entities[0].Node.(*plan.Fetch)
	require.True(t, ok)
	require.Equal(t, "Accounts", entity.Subgraph)
	require.Equal(t,
		`query($_fusion_node_id: ID!) { userById(id: $_fusion_node_id) { id name _fusion_exports_1: id } }`,
		entity.Request.Document)
	require.Equal(t, []string{"node"}, entity.Path)

	assertSnapshot(t, "node_lookup", []byte(plan.Print(p)))
}

func TestNodesLookupPassthrough(t *testing.T) {
	p := mustPlan(t, "node.graphql", `{ nodes(ids: ["a", "b"]) { __typename id } }`)
	assertPrinted(t, `query
Sequence {
  ResolveNode(1) nodes(["a", "b"]) as $_fusion_node_id
    passthrough: Review, User
  Compose [0, 1, 2]
}
`, p)
}

func TestIntrospectionIsAnsweredLocally(t *testing.T) {
	p := mustPlan(t, "node.graphql", `{ me { name } __schema { queryType { name } } }`)
	assertPrinted(t, `query
Sequence {
  Parallel {
    Fetch(1) Accounts
      query { me { name } }
    Introspect(2) __schema
  }
  Compose [0, 1]
}
`, p)
}

func TestSubscription(t *testing.T) {
	p := mustPlan(t, "subscription.graphql", `subscription { userCreated { id name } }`)
	sub, ok := p.Root.(*plan.Subscribe)
	require.True(t, ok, "root is %T", p.Root)
	require.Equal(t, language.Subscription, sub.Request.Operation)
	assertPrinted(t, `subscription
Subscribe(1) Events
  subscription { userCreated { id _fusion_exports_1: id } }
  exports: [_fusion_exports_1=User_id]
  Sequence {
    Compose [0]
    Fetch(2) Accounts after [1]
      query($User_id: ID!) { userById(id: $User_id) { name } }
      imports: [User_id=_fusion_exports_1]
    Compose [1]
  }
`, p)
}

func TestComposeFollowsLastContributor(t *testing.T) {
	p := mustPlan(t, "accounts.graphql", `{ userById(id: "1") { name reviews { body author { name } } } }`)

	placed := map[int]bool{}
	contributors := map[int][]int{}
	plan.Walk(p.Root, func(n plan.Node) {
		if f, ok := plan.FetchOf(n); ok {
			contributors[f.SelectionSetID] = append(contributors[f.SelectionSetID], f.ID)
		}
	})
	var check func(n plan.Node)
	check = func(n plan.Node) {
		switch v := n.(type) {
		case *plan.Sequence:
			for _, c := range v.Nodes {
				check(c)
			}
		case *plan.Parallel:
			for _, c := range v.Nodes {
				check(c)
			}
		case *plan.Compose:
			for _, id := range v.SelectionSetIDs {
				for _, f := range contributors[id] {
					require.True(t, placed[f], "compose of %d before fetch %d", id, f)
				}
			}
		default:
			if f, ok := plan.FetchOf(n); ok {
				placed[f.ID] = true
			}
		}
	}
	check(p.Root)
	assertSnapshot(t, "nested_entities", []byte(plan.Print(p)))
}

func TestPlanJSON(t *testing.T) {
	p := mustPlan(t, "accounts.graphql", `{ userById(id: "1") { name reviews { body } } }`)
	got, err := p.MarshalJSON()
	require.NoError(t, err)
	assertSnapshot(t, "batch_by_key_json", got)
}

func TestCyclicStepsAreNeverPlaced(t *testing.T) {
	op, p := compileOperation(t, "xy.graphql", `{ a: fieldFromX b: fieldFromY }`, "")
	c := newPlanningContext(p.project, op)
	d, err := c.discover()
	require.NoError(t, err)
	r, err := c.planRequirements(d)
	require.NoError(t, err)
	require.Len(t, r.steps, 2)
	r.steps[0].addDep(r.steps[1])
	r.steps[1].addDep(r.steps[0])

	b, err := c.buildNodes(r)
	require.NoError(t, err)
	_, err = c.buildTree(b)
	require.True(t, errors.Is(err, ErrIncompletePlan), "got %v", err)
}

func TestNestedTypenameIsLeftToEntityStep(t *testing.T) {
	op, p := compileOperation(t, "billing.graphql", `{ userById(id: "1") { __typename invoices } }`, "")
	c := newPlanningContext(p.project, op)
	user := op.ChildSets(op.RootSelectionSet().Selections[0])[0]
	typename, invoices := user.Selections[0], user.Selections[1]
	require.True(t, typename.IsTypename())

	st := newStep(stepSelection, user, "Billing")
	item := &workItem{ss: user, selections: user.Selections, path: op.Path(user)}
	rest, err := c.fillStep(st, item, item.selections, queue.New())
	require.NoError(t, err)
	require.Equal(t, []*operation.Selection{typename}, rest)
	require.Equal(t, []*operation.Selection{invoices}, st.covered)

	// a resolver step must not answer __typename from the subgraph root
	st.cover(typename)
	c.addStep(st)
	_, _, err = c.renderRequest(st, language.Query)
	require.True(t, errors.Is(err, ErrInvariantViolation), "got %v", err)
}

func TestStepCount(t *testing.T) {
	p := mustPlan(t, "xy.graphql", `{ a: fieldFromX b: fieldFromY entity(id: "2") { x } }`)
	require.Equal(t, 2, StepCount(p))
}
