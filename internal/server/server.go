// Package server exposes the planner over HTTP. A GraphQL request is planned
// and the plan is returned under extensions.queryPlan; operations selecting
// only introspection fields are also answered with data.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/fedplan/internal/eventbus"
	"github.com/hanpama/fedplan/internal/events"
	"github.com/hanpama/fedplan/internal/gateway"
	"github.com/hanpama/fedplan/internal/plan"
	"github.com/hanpama/fedplan/internal/planner"
	"github.com/hanpama/fedplan/internal/reqid"
)

// Handler is an http.Handler serving the plan endpoint.
type Handler struct {
	gw  *gateway.Gateway
	log abstractlogger.Logger
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// PlanText adds the indented text rendering of the plan as
	// extensions.queryPlanText.
	PlanText bool

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithPlanText() Option            { return func(o *Options) { o.PlanText = true } }
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler planning operations with gw. log receives planning
// failures.
func New(gw *gateway.Gateway, log abstractlogger.Logger, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	if log == nil {
		log = abstractlogger.NoopLogger
	}
	return &Handler{gw: gw, log: log, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	w.Header().Set(reqid.Header, reqid.Format(rid))
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(gqlerror.Errorf("method not allowed")), h.opt.Pretty)
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		out := make([]response, len(batch))
		for i := range batch {
			out[i] = h.planOne(ctx, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.planOne(ctx, req), h.opt.Pretty)
}

func (h *Handler) planOne(ctx context.Context, req GraphQLRequest) response {
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName})

	res, err := h.gw.Plan(ctx, req.Query, req.OperationName)
	out := response{}
	finish := events.GraphQLFinish{Query: req.Query, OperationName: req.OperationName}
	if err != nil {
		out.Errors = specErrors(err)
		finish.Errors = []error{err}
	} else {
		finish.OperationType = string(res.Plan.Operation)
		out.Extensions = map[string]any{"queryPlan": res.Plan, "cacheHit": res.CacheHit}
		if h.opt.PlanText {
			out.Extensions["queryPlanText"] = plan.Print(res.Plan)
		}
		if res.Local() {
			finish.Local = true
			data, err := h.gw.Introspect(res, req.Variables)
			if err != nil {
				h.log.Error("introspection failed", abstractlogger.Error(err))
				out.Errors = specErrors(err)
				finish.Errors = []error{err}
			} else {
				out.Data = data
			}
		}
	}
	finish.Duration = time.Since(start)
	eventbus.Publish(ctx, finish)
	return out
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *gqlerror.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, gqlerror.Errorf("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, gqlerror.Errorf("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, gqlerror.Errorf("unsupported Content-Type")
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, gqlerror.Errorf("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, gqlerror.Errorf("%s", errBodyTooLargeMessage)
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, gqlerror.Errorf("invalid JSON")
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, gqlerror.Errorf("empty batch")
		}
		return GraphQLRequest{}, arr, nil
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, gqlerror.Errorf("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, gqlerror.Errorf("missing 'query'")
	}
	return req, nil, nil
}

// ------------------ Response formatting ------------------

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type response struct {
	Data       any            `json:"data"`
	Errors     []specError    `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func errorResponse(err *gqlerror.Error) response {
	return response{Errors: []specError{{Message: err.Message}}}
}

// specErrors converts a planning failure into response errors. Query
// errors keep their locations, planner errors carry a code.
func specErrors(err error) []specError {
	var list gqlerror.List
	if errors.As(err, &list) {
		out := make([]specError, len(list))
		for i, e := range list {
			out[i] = fromQueryError(e, "GRAPHQL_VALIDATION_FAILED")
		}
		return out
	}
	var single *gqlerror.Error
	if errors.As(err, &single) {
		return []specError{fromQueryError(single, "GRAPHQL_PARSE_FAILED")}
	}
	return []specError{{Message: err.Error(), Extensions: map[string]any{"code": errorCode(err)}}}
}

func fromQueryError(e *gqlerror.Error, code string) specError {
	se := specError{Message: e.Message, Extensions: map[string]any{"code": code}}
	for _, loc := range e.Locations {
		se.Locations = append(se.Locations, specLocation{Line: loc.Line, Column: loc.Column})
	}
	return se
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, planner.ErrMetadataInconsistency):
		return "METADATA_INCONSISTENCY"
	case errors.Is(err, planner.ErrUnreachableStep):
		return "UNREACHABLE_STEP"
	case errors.Is(err, planner.ErrIncompletePlan):
		return "INCOMPLETE_PLAN"
	case errors.Is(err, planner.ErrInvariantViolation):
		return "INVARIANT_VIOLATION"
	case errors.Is(err, gateway.ErrIntrospectionDisabled):
		return "INTROSPECTION_DISABLED"
	}
	return "PLANNING_FAILED"
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
