package operation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/schema"
)

const testSDL = `
schema @subgraph(name: "Catalog") {
  query: Query
  mutation: Mutation
}

interface Item {
  id: ID!
}

type Query {
  items: [Item!]! @source(subgraph: "Catalog")
  item(id: ID!): Item @source(subgraph: "Catalog")
  search(text: String!): [SearchResult!]! @source(subgraph: "Catalog")
}

type Mutation {
  rename(id: ID!, name: String!): Book @source(subgraph: "Catalog")
}

type Book implements Item {
  id: ID! @source(subgraph: "Catalog")
  title: String! @source(subgraph: "Catalog")
  author: Person @source(subgraph: "Catalog")
}

type Film implements Item {
  id: ID! @source(subgraph: "Catalog")
  director: String @source(subgraph: "Catalog")
}

type Person {
  name: String! @source(subgraph: "Catalog")
}

union SearchResult = Film | Book
`

func compile(t *testing.T, query, name string) *Operation {
	t.Helper()
	s, _, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	validator, err := schema.Validator(s)
	require.NoError(t, err)
	doc, err := language.LoadQuery(validator, query)
	require.NoError(t, err)
	op, err := Compile(s, doc, name)
	require.NoError(t, err)
	return op
}

func responseNames(ss *SelectionSet) []string {
	var out []string
	for _, sel := range ss.Selections {
		out = append(out, sel.ResponseName)
	}
	return out
}

func TestCompileMergesFieldsByResponseName(t *testing.T) {
	op := compile(t, `
		query Q {
			item(id: "1") { id }
			other: item(id: "2") { id }
			item(id: "1") { ... on Book { title } }
		}`, "Q")

	root := op.RootSelectionSet()
	require.Equal(t, 0, root.ID)
	require.Equal(t, []string{"item", "other"}, responseNames(root))

	item := root.Selections[0]
	require.Len(t, item.Nodes, 2)
	require.Equal(t, "Item", item.Field.Type.GetNamedType())

	book := op.SelectionSet(item, op.Schema.Type("Book"))
	require.NotNil(t, book)
	require.Equal(t, []string{"id", "title"}, responseNames(book))
	film := op.SelectionSet(item, op.Schema.Type("Film"))
	require.Equal(t, []string{"id"}, responseNames(film))
	require.Equal(t, []string{"Book"}, item.TypeConditions)
}

func TestCompileAbstractTypes(t *testing.T) {
	op := compile(t, `{
		search(text: "x") {
			__typename
			... on Book { title author { name } }
		}
		items { ... on Film { director } }
	}`, "")

	search := op.RootSelectionSet().Selections[0]
	var names []string
	for _, pt := range op.PossibleTypes(search) {
		names = append(names, pt.Name)
	}
	require.Equal(t, []string{"Book", "Film"}, names)

	book := op.SelectionSet(search, op.Schema.Type("Book"))
	require.Equal(t, []string{"__typename", "title", "author"}, responseNames(book))
	require.True(t, book.Selections[0].IsTypename())
	require.Nil(t, book.Selections[0].Field)

	// Types without any selected field are dropped from abstract fields.
	items := op.RootSelectionSet().Selections[1]
	require.Len(t, op.ChildSets(items), 1)
	require.Equal(t, "Film", op.ChildSets(items)[0].Type.Name)
	require.Nil(t, op.SelectionSet(items, op.Schema.Type("Book")))

	author := book.Selections[2]
	person := op.ChildSets(author)[0]
	path := op.Path(person)
	require.Len(t, path, 2)
	require.Equal(t, "search", path[0].ResponseName)
	require.Equal(t, "author", path[1].ResponseName)
	require.Empty(t, op.Path(op.RootSelectionSet()))
}

func TestCompileIDsFollowBreadthFirstOrder(t *testing.T) {
	op := compile(t, `{ search(text: "x") { ... on Book { author { name } } } items { id } }`, "")

	var got []string
	for _, ss := range op.SelectionSets() {
		got = append(got, ss.Type.Name)
		require.Same(t, ss, op.SelectionSetByID(ss.ID))
	}
	require.Equal(t, []string{"Query", "Book", "Book", "Film", "Person"}, got)
	for i, sel := range op.Selections() {
		require.Equal(t, i, sel.ID)
	}
}

func TestCompileConditions(t *testing.T) {
	op := compile(t, `query ($show: Boolean!) {
		items {
			id @skip(if: true)
			... on Book @include(if: $show) { title }
			... on Film @include(if: false) { director }
		}
	}`, "")

	items := op.RootSelectionSet().Selections[0]
	book := op.SelectionSet(items, op.Schema.Type("Book"))
	require.Equal(t, []string{"title"}, responseNames(book))
	require.Len(t, book.Selections[0].Directives, 1)
	require.Equal(t, "include", book.Selections[0].Directives[0].Name)
	require.Nil(t, op.SelectionSet(items, op.Schema.Type("Film")))
	require.NotNil(t, op.VariableDefinition("show"))
}

func TestCompileMergesConditions(t *testing.T) {
	for _, tc := range []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "unconditional occurrence wins",
			query: `query ($x: Boolean!) { items { id @include(if: $x) id } }`,
		},
		{
			name:  "unconditional first",
			query: `query ($x: Boolean!) { items { id id @skip(if: $x) } }`,
		},
		{
			name:  "different conditions",
			query: `query ($x: Boolean!, $y: Boolean!) { items { id @include(if: $x) id @include(if: $y) } }`,
		},
		{
			name:  "same conditions",
			query: `query ($x: Boolean!) { items { id @include(if: $x) ... on Book { id @include(if: $x) } } }`,
			want:  []string{"include"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			op := compile(t, tc.query, "")
			items := op.RootSelectionSet().Selections[0]
			book := op.SelectionSet(items, op.Schema.Type("Book"))
			require.Equal(t, []string{"id"}, responseNames(book))
			var got []string
			for _, d := range book.Selections[0].Directives {
				got = append(got, d.Name)
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCompileFragments(t *testing.T) {
	op := compile(t, `
		query Q { items { ...ItemFields } }
		fragment ItemFields on Item { id ... on Book { title } }
	`, "Q")

	items := op.RootSelectionSet().Selections[0]
	got := map[string][]string{}
	for _, ss := range op.ChildSets(items) {
		got[ss.Type.Name] = responseNames(ss)
	}
	want := map[string][]string{
		"Book": {"id", "title"},
		"Film": {"id"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collected fields mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"Book", "Film"}, items.TypeConditions)
}

func TestCompileRootTypes(t *testing.T) {
	op := compile(t, `mutation M { rename(id: "1", name: "x") { title } }`, "")
	require.Equal(t, language.Mutation, op.Type)
	require.Equal(t, "Mutation", op.RootType.Name)
	require.True(t, op.IsMutationRoot(op.RootSelectionSet()))
	require.False(t, op.IsSubscriptionRoot(op.RootSelectionSet()))

	args, err := op.RootSelectionSet().Selections[0].ArgumentValues(nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "1", "name": "x"}, args)
}

func TestCompileSelectsOperation(t *testing.T) {
	s, _, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	doc, err := language.ParseQuery(`query A { items { id } } query B { items { id } }`)
	require.NoError(t, err)

	_, err = Compile(s, doc, "")
	require.ErrorContains(t, err, "operation name is required")
	_, err = Compile(s, doc, "C")
	require.ErrorContains(t, err, `unknown operation "C"`)

	op, err := Compile(s, doc, "B")
	require.NoError(t, err)
	require.Equal(t, "B", op.Name)

	doc, err = language.ParseQuery(`subscription { items { id } }`)
	require.NoError(t, err)
	_, err = Compile(s, doc, "")
	require.ErrorContains(t, err, "does not support subscription operations")
}
