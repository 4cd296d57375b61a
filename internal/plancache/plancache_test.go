package plancache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/plan"
)

func parse(t *testing.T, src string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	return doc
}

func TestKeyIgnoresFormatting(t *testing.T) {
	a := parse(t, `query Q { me { name } }`)
	b := parse(t, "query Q {\n  # who am I\n  me {\n    name\n  }\n}\n")
	require.Equal(t, Key(a, "Q"), Key(b, "Q"))
}

func TestKeyDependsOnOperationName(t *testing.T) {
	doc := parse(t, `query A { me { name } } query B { me { id } }`)
	require.NotEqual(t, Key(doc, "A"), Key(doc, "B"))
}

func TestKeyDependsOnSelections(t *testing.T) {
	a := parse(t, `{ me { name } }`)
	b := parse(t, `{ me { id } }`)
	require.NotEqual(t, Key(a, ""), Key(b, ""))
}

func TestCacheEviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	first := &Entry{Plan: &plan.Plan{Name: "first"}}
	c.Add(1, first)
	c.Add(2, &Entry{Plan: &plan.Plan{Name: "second"}})

	got, ok := c.Get(1)
	require.True(t, ok)
	require.Same(t, first, got)

	// 2 is now the least recently used entry
	require.True(t, c.Add(3, &Entry{Plan: &plan.Plan{Name: "third"}}))
	_, ok = c.Get(2)
	require.False(t, ok)
	_, ok = c.Get(1)
	require.True(t, ok)
	require.Equal(t, 2, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}
