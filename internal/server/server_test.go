package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/gateway"
	"github.com/hanpama/fedplan/internal/plancache"
	"github.com/hanpama/fedplan/internal/reqid"
)

const testSDL = `
schema
  @subgraph(name: "Accounts")
  @subgraph(name: "Reviews") {
  query: Query
}

type Query {
  me: User @source(subgraph: "Accounts") @source(subgraph: "Reviews")
  viewer: User @source(subgraph: "Accounts")
}

type User {
  name: String @source(subgraph: "Accounts")
  reviewCount: Int @source(subgraph: "Reviews")
}
`

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	cache, err := plancache.New(16)
	require.NoError(t, err)
	gw, err := gateway.FromSDL(testSDL, gateway.WithCache(cache))
	require.NoError(t, err)
	return New(gw, nil, opts...)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPlanResponse(t *testing.T) {
	h := newTestHandler(t, WithPlanText())
	w := post(t, h, `{"query":"query Me { me { name } }"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, gjson.Null, gjson.Get(body, "data").Type)
	require.False(t, gjson.Get(body, "errors").Exists())
	require.Equal(t, "Me", gjson.Get(body, "extensions.queryPlan.name").String())
	require.Equal(t, "query", gjson.Get(body, "extensions.queryPlan.operation").String())
	require.Equal(t, "Sequence", gjson.Get(body, "extensions.queryPlan.root.kind").String())

	fetch := gjson.Get(body, "extensions.queryPlan.root.nodes.0")
	require.Equal(t, "Fetch", fetch.Get("kind").String())
	require.Equal(t, "Accounts", fetch.Get("subgraph").String())
	require.Equal(t, "query Me_1 { me { name } }", fetch.Get("document").String())
	require.Contains(t, gjson.Get(body, "extensions.queryPlanText").String(), "Fetch(1) Accounts")
	require.False(t, gjson.Get(body, "extensions.cacheHit").Bool())

	w = post(t, h, `{"query":"query Me {\n me { name }\n}"}`)
	require.True(t, gjson.Get(w.Body.String(), "extensions.cacheHit").Bool())
}

func TestIntrospectionIsAnswered(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ __type(name: \"User\") { name fields { name } } }"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, "User", gjson.Get(body, "data.__type.name").String())
	require.Equal(t, []string{"name", "reviewCount"}, names(gjson.Get(body, "data.__type.fields.#.name")))
	require.Equal(t, "Introspect", gjson.Get(body, "extensions.queryPlan.root.nodes.0.kind").String())
}

func TestGetRequest(t *testing.T) {
	h := newTestHandler(t)
	q := url.Values{"query": {"query($v: Boolean!) { me { name @include(if: $v) } }"}, "variables": {`{"v":true}`}}
	req := httptest.NewRequest("GET", "/graphql?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Fetch", gjson.Get(w.Body.String(), "extensions.queryPlan.root.nodes.0.kind").String())
}

func TestErrors(t *testing.T) {
	h := newTestHandler(t)

	w := post(t, h, `{"query":"{ nope }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	errs := gjson.Get(w.Body.String(), "errors")
	require.Equal(t, "GRAPHQL_VALIDATION_FAILED", errs.Get("0.extensions.code").String())
	require.Equal(t, int64(1), errs.Get("0.locations.0.line").Int())

	w = post(t, h, `{"query":"{ me {"}`)
	require.Equal(t, "GRAPHQL_PARSE_FAILED", gjson.Get(w.Body.String(), "errors.0.extensions.code").String())

	w = post(t, h, `{"query":"{ viewer { reviewCount } }"}`)
	require.Equal(t, "UNREACHABLE_STEP", gjson.Get(w.Body.String(), "errors.0.extensions.code").String())
	require.False(t, gjson.Get(w.Body.String(), "extensions").Exists())

	w = post(t, h, `{"nope":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "missing 'query'", gjson.Get(w.Body.String(), "errors.0.message").String())

	req := httptest.NewRequest("PUT", "/graphql", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `[{"query":"{ me { name } }"},{"query":"{ viewer { reviewCount } }"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, int64(2), gjson.Get(body, "#").Int())
	require.True(t, gjson.Get(body, "0.extensions.queryPlan").Exists())
	require.Equal(t, "UNREACHABLE_STEP", gjson.Get(body, "1.errors.0.extensions.code").String())

	w = post(t, h, `[]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(`{"query":"{ me { name } }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(10))
	w := post(t, h, `{"query":"1234567890"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGraphiQL(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest("GET", "/graphql", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	h = newTestHandler(t, WithGraphiQL(false))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDAndEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var ids []int64
	var finished []events.GraphQLFinish
	var statuses []int
	eventbus.Subscribe(func(ctx context.Context, _ events.PlanFinish) {
		id, _ := reqid.FromContext(ctx)
		ids = append(ids, id)
	})
	eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) { finished = append(finished, e) })
	eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) { statuses = append(statuses, e.Status) })

	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ __schema { queryType { name } } }"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, ids, 1)
	require.Equal(t, reqid.Format(ids[0]), w.Header().Get(reqid.Header))
	require.Len(t, finished, 1)
	require.True(t, finished[0].Local)
	require.Equal(t, "query", finished[0].OperationType)
	require.Equal(t, []int{http.StatusOK}, statuses)
}

func names(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}
