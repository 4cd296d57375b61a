// Package plancache keeps recently built plans keyed by the shape of the
// operation that produced them.
package plancache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/hanpama/fedplan/internal/language"
	"github.com/hanpama/fedplan/internal/operation"
	"github.com/hanpama/fedplan/internal/plan"
)

// Entry is a cached planning result. Both values are immutable once built
// and are shared between callers.
type Entry struct {
	Operation *operation.Operation
	Plan      *plan.Plan
}

type Cache struct {
	entries *lru.Cache
}

func New(size int) (*Cache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrapf(err, "plan cache of size %d", size)
	}
	return &Cache{entries: entries}, nil
}

var digests = sync.Pool{
	New: func() interface{} { return xxhash.New() },
}

// Key hashes the formatted document together with the selected operation
// name, so documents that differ only in whitespace or comments share a key.
func Key(doc *language.QueryDocument, operationName string) uint64 {
	d := digests.Get().(*xxhash.Digest)
	d.Reset()
	defer digests.Put(d)

	_, _ = d.WriteString(operationName)
	_, _ = d.Write([]byte{0})
	formatter.NewFormatter(d).FormatQueryDocument(doc)
	return d.Sum64()
}

func (c *Cache) Get(key uint64) (*Entry, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*Entry)
	return e, ok
}

// Add stores e under key and reports whether an older entry was evicted.
func (c *Cache) Add(key uint64, e *Entry) bool {
	return c.entries.Add(key, e)
}

func (c *Cache) Len() int { return c.entries.Len() }

func (c *Cache) Purge() { c.entries.Purge() }
