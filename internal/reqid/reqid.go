// Package reqid tags a request context with a random id, used to correlate
// the events published while the request is served.
package reqid

import (
	"context"
	"math/rand"
	"strconv"
)

// Header is the response header carrying the request id.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent with a new positive request id stored.
// It also returns the generated id.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int63n(1<<63-1) + 1
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request id from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}

// Format renders id the way it appears in Header.
func Format(id int64) string { return strconv.FormatInt(id, 36) }
