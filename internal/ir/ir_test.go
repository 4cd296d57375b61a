package ir_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedplan/internal/ir"
)

func TestGoodSnapshot(t *testing.T) {
	type testCase struct {
		name      string
		snapshot  string
		discovery ir.Discovery
	}

	for _, tc := range []testCase{
		{
			name:     "accounts_reviews",
			snapshot: "testdata/good/accounts_reviews.json",
			discovery: ir.NewInMemoryDiscovery([]ir.InMemorySource{
				{Name: "gateway", Content: mustReadData("testdata/good/accounts_reviews.graphql")},
			}),
		},
		{
			name:     "split_documents",
			snapshot: "testdata/good/split.json",
			discovery: ir.NewInMemoryDiscovery([]ir.InMemorySource{
				{Name: "base", Content: mustReadData("testdata/good/split_base.graphql")},
				{Name: "ext", Content: mustReadData("testdata/good/split_ext.graphql")},
			}),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			project, err := ir.Build(context.Background(), tc.discovery)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			got, err := json.MarshalIndent(project, "", "  ")
			require.NoError(t, err)

			// if snapshot file does not exist, create it
			if _, err := os.Stat(tc.snapshot); os.IsNotExist(err) {
				require.NoError(t, os.WriteFile(tc.snapshot, append(got, '\n'), 0o644))
				t.Logf("Snapshot created: %s", tc.snapshot)
				return
			}

			expected, err := os.ReadFile(tc.snapshot)
			if err != nil {
				t.Fatalf("Failed to open snapshot file: %v", err)
			}
			if diff := cmp.Diff(strings.TrimSpace(string(expected)), strings.TrimSpace(string(got))); diff != "" {
				t.Errorf("Project mismatch (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestBuildMetadata(t *testing.T) {
	project, err := ir.Build(context.Background(), ir.NewInMemoryDiscovery([]ir.InMemorySource{
		{Name: "gateway", Content: mustReadData("testdata/good/accounts_reviews.graphql")},
	}))
	require.NoError(t, err)

	require.Equal(t, []*ir.Subgraph{
		{Name: "Accounts", Location: "http://accounts/graphql", Index: 0},
		{Name: "Reviews", Location: "http://reviews/graphql", Index: 1},
	}, project.Subgraphs)

	t.Run("bindings keep declaration order", func(t *testing.T) {
		id := project.Type("User").Field("id")
		require.Len(t, id.Bindings, 2)
		require.Equal(t, "Accounts", id.Bindings[0].Subgraph)
		require.Equal(t, "Reviews", id.Bindings[1].Subgraph)
		require.Equal(t, "username", project.Type("User").Field("name").Binding("Accounts").Name)
		require.Nil(t, project.Type("User").Field("name").Binding("Reviews"))
	})

	t.Run("implicit root resolver forwards arguments", func(t *testing.T) {
		field := project.Type("Query").Field("userById")
		resolvers := field.ResolversFor("Accounts")
		require.Len(t, resolvers, 1)
		r := resolvers[0]
		require.True(t, r.Implicit)
		require.Equal(t, ir.ResolverKindQuery, r.Kind)
		require.Equal(t, "{ userById(id: $id) }", r.Select)
		require.Equal(t, []string{"id"}, r.Requires)
		require.Equal(t, "userById", r.Template.Name)

		vars := field.ArgumentVariables("Accounts")
		require.Len(t, vars, 1)
		require.Equal(t, ir.VariableKindArgument, vars[0].Kind)
		require.Equal(t, "ID!", vars[0].Type.String())
	})

	t.Run("subgraph local names are used by implicit resolvers", func(t *testing.T) {
		r := project.Type("Query").Field("topReviews").ResolversFor("Reviews")[0]
		require.Equal(t, "{ reviews(first: $first) }", r.Select)
	})

	t.Run("entity resolvers", func(t *testing.T) {
		user := project.Type("User")
		batch := user.ResolversFor("Reviews")
		require.Len(t, batch, 1)
		require.Equal(t, ir.ResolverKindBatchByKey, batch[0].Kind)
		require.True(t, batch[0].Kind.IsBatch())
		require.Equal(t, []string{"User_id"}, batch[0].Requires)
		require.Equal(t, "[ID!]!", batch[0].ArgumentType("User_id").String())

		v := user.VariableFor("Accounts", "User_id")
		require.NotNil(t, v)
		require.Equal(t, ir.VariableKindField, v.Kind)
		require.Equal(t, "id", v.Select)
		require.Equal(t, "ID!", v.Type.String())
	})
}

func TestBuildSplitDocuments(t *testing.T) {
	project, err := ir.Build(context.Background(), ir.NewInMemoryDiscovery([]ir.InMemorySource{
		{Name: "base", Content: mustReadData("testdata/good/split_base.graphql")},
		{Name: "ext", Content: mustReadData("testdata/good/split_ext.graphql")},
	}))
	require.NoError(t, err)

	product := project.Type("Product")
	require.Len(t, product.Resolvers, 2)
	require.Equal(t, []string{"Products"}, product.Lookups)
	require.True(t, product.CanLookup("Products"))
	require.False(t, product.CanLookup("Inventory"))
	require.Equal(t, "quantity", product.Field("inStock").Binding("Inventory").Name)
	require.Len(t, product.Field("inStock").ArgumentVariables("Inventory"), 1)
	require.True(t, project.Definitions["Upload"].Scalar.Upload)
	require.Equal(t, []string{"Upload", "Query", "Mutation", "Product"}, project.Sources["base"].Definitions)
	require.Empty(t, project.Sources["ext"].Definitions)
}

func TestBadSnapshot(t *testing.T) {
	type testCase struct {
		name    string
		file    string
		wantErr string
	}

	for _, tc := range []testCase{
		{name: "unknown_subgraph", file: "testdata/bad/unknown_subgraph.graphql", wantErr: `Subgraph "Acounts" is not declared with @subgraph`},
		{name: "select_not_single_field", file: "testdata/bad/select_not_single_field.graphql", wantErr: "must be exactly one field"},
		{name: "undefined_variable", file: "testdata/bad/undefined_variable.graphql", wantErr: "Variable $User_id used by resolver"},
		{name: "interface_directive", file: "testdata/bad/interface_directive.graphql", wantErr: "is not allowed on interface field"},
		{name: "batch_key_not_exported", file: "testdata/bad/batch_key_not_exported.graphql", wantErr: "BATCH_BY_KEY resolver"},
		{name: "missing_schema", file: "testdata/bad/missing_schema.graphql", wantErr: "Schema definition is required"},
		{name: "duplicate_source", file: "testdata/bad/duplicate_source.graphql", wantErr: "is already bound to subgraph"},
		{name: "missing_interface_field", file: "testdata/bad/missing_interface_field.graphql", wantErr: `Object "User" is missing field "createdAt" required by interface "Node"`},
		{name: "union_member_not_object", file: "testdata/bad/union_member_not_object.graphql", wantErr: `Union member "Role" must be an Object type, but got Enum`},
		{name: "argument_type_mismatch", file: "testdata/bad/argument_type_mismatch.graphql", wantErr: `Argument "first" of field "User"."friends" has type String but interface "Node" expects Int`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ir.Build(context.Background(), ir.NewInMemoryDiscovery([]ir.InMemorySource{
				{Name: tc.name, Content: mustReadData(tc.file)},
			}))
			if err == nil {
				t.Fatal("expected error but got none")
			}
			var verr ir.ValidationError
			require.ErrorAs(t, err, &verr)
			// Check if error message contains expected substring
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func mustReadData(filename string) string {
	data, err := os.ReadFile(filename)
	if err != nil {
		panic(fmt.Sprintf("failed to read test data file %s: %v", filename, err))
	}
	return string(data)
}
