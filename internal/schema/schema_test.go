package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedplan/internal/language"
)

func TestSchemaRenderSnapshot(t *testing.T) {
	schema, _, err := BuildFromSDL(mustReadFile(t, "testdata/gateway.graphql"))
	require.NoError(t, err, "failed to build schema")

	actual := Render(schema)
	snapshotPath := filepath.Join("testdata", "gateway_rendered.graphql")

	// If snapshot doesn't exist, create it
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		err := os.WriteFile(snapshotPath, []byte(actual), 0644)
		require.NoError(t, err, "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}

	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")
	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("Rendered schema mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDropsFederationDirectives(t *testing.T) {
	schema, _, err := BuildFromSDL(mustReadFile(t, "testdata/gateway.graphql"))
	require.NoError(t, err)

	out := Render(schema)
	require.NotContains(t, out, "@source")
	require.NotContains(t, out, "@subgraph")
	require.NotContains(t, out, "@upload")

	doc, err := language.ParseSchema("rendered.graphql", out)
	require.NoError(t, err)
	require.Len(t, doc.Schema, 1)
	var ops []string
	for _, op := range doc.Schema[0].OperationTypes {
		ops = append(ops, string(op.Operation)+":"+op.Type)
	}
	require.Equal(t, []string{"query:Query", "mutation:Mutation"}, ops)

	items := doc.Definitions.ForName("Query").Fields.ForName("items")
	require.NotNil(t, items)
	require.Equal(t, "[Item!]!", items.Type.String())
	sort := items.Arguments.ForName("sort")
	require.Equal(t, "Sort", sort.Type.String())
	require.Equal(t, "NEWEST", sort.DefaultValue.Raw)
}

func TestPossibleTypes(t *testing.T) {
	schema, _, err := BuildFromSDL(mustReadFile(t, "testdata/gateway.graphql"))
	require.NoError(t, err)

	names := func(types []*Type) []string {
		var out []string
		for _, t := range types {
			out = append(out, t.Name)
		}
		return out
	}

	require.Equal(t, []string{"Book", "Film"}, names(schema.PossibleTypes(schema.Type("Item"))))
	require.Equal(t, []string{"Book", "Film"}, names(schema.PossibleTypes(schema.Type("SearchResult"))))
	require.Equal(t, []string{"Book"}, names(schema.PossibleTypes(schema.Type("Book"))))
	require.Nil(t, schema.PossibleTypes(schema.Type("Sort")))

	book := schema.Type("Book")
	require.True(t, schema.DoesTypeApply(book, "Item"))
	require.True(t, schema.DoesTypeApply(book, "SearchResult"))
	require.True(t, schema.DoesTypeApply(book, "Book"))
	require.False(t, schema.DoesTypeApply(book, "Film"))
	require.True(t, schema.Type("Item").IsAbstract())
	require.True(t, book.IsComposite())
	require.NotNil(t, book.Field("title"))
	require.Nil(t, book.Field("director"))
}

func TestContainsUpload(t *testing.T) {
	schema, _, err := BuildFromSDL(mustReadFile(t, "testdata/gateway.graphql"))
	require.NoError(t, err)

	require.True(t, schema.ContainsUpload(NamedType("Upload")))
	require.True(t, schema.ContainsUpload(NonNullType(ListType(NamedType("Cover")))))
	require.True(t, schema.ContainsUpload(NonNullType(NamedType("AttachInput"))))
	require.False(t, schema.ContainsUpload(NamedType("String")))
	require.False(t, schema.ContainsUpload(NamedType("Sort")))
}

func TestValidator(t *testing.T) {
	schema, _, err := BuildFromSDL(mustReadFile(t, "testdata/gateway.graphql"))
	require.NoError(t, err)

	validator, err := Validator(schema)
	require.NoError(t, err)

	_, err = language.LoadQuery(validator, `{ items { id ... on Book { title } } }`)
	require.NoError(t, err)

	_, err = language.LoadQuery(validator, `{ items { name } }`)
	require.Error(t, err)
}

func TestTypeRefString(t *testing.T) {
	ref := TypeRefFromAST(&language.Type{Elem: &language.Type{NamedType: "ID", NonNull: true}, NonNull: true})
	require.Equal(t, "[ID!]!", ref.String())
	require.True(t, ref.IsList())
	require.Equal(t, "ID", ref.GetNamedType())
}

func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
