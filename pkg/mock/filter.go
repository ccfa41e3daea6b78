package mock

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/echsylon/atlantis/internal/matching"
	"github.com/echsylon/atlantis/pkg/strategy"
	"github.com/expr-lang/expr"
)

// Registry names of the built-in strategies.
const (
	FilterDefault        = "filter.default"
	FilterExpr           = "filter.expr"
	ResponseFirst        = "response.first"
	ResponseRoundRobin   = "response.roundrobin"
	ResponseRandom       = "response.random"
	TransformPassthrough = "transform.passthrough"
)

func init() {
	strategy.Register(FilterDefault, func() any { return &DefaultFilter{} })
	strategy.Register(FilterExpr, func() any { return &ExprFilter{} })
	strategy.Register(ResponseFirst, func() any { return &FirstResponseFilter{} })
	strategy.Register(ResponseRoundRobin, func() any { return &RoundRobinResponseFilter{} })
	strategy.Register(ResponseRandom, func() any { return &RandomResponseFilter{} })
	strategy.Register(TransformPassthrough, func() any { return &PassthroughTransformer{} })
}

// Filter selects at most one template for an incoming request. Returning
// nil means no template applies — a defined, expected outcome, never an
// error. Implementations must not mutate the catalog.
type Filter interface {
	FindTemplate(method, url string, headers map[string][]string, templates []*Template) *Template
}

// ResponseFilter selects one of a template's candidate responses.
type ResponseFilter interface {
	FindResponse(responses []*Response) *Response
}

// TokenHelper substitutes tokens in mock response text using data from the
// request being served.
type TokenHelper interface {
	Expand(text, method, url string) string
}

// TransformationHelper converts a response received from a real server into
// a catalog Response, letting real traffic be recorded into the mock
// context.
type TransformationHelper interface {
	Transform(statusCode int, headers map[string][]string, body []byte) *Response
}

// DefaultFilter is the built-in matching strategy: scan the catalog in
// insertion order and return the first template whose method matches
// exactly, whose URL accepts the request URL and whose header hints are all
// satisfied. First match wins. The one refinement: a later template sharing
// the first match's method and URL pattern displaces it when its header
// match is more specific; templates with a different method or URL pattern
// never do. Consumers needing other priority semantics reorder the catalog
// or supply their own Filter.
type DefaultFilter struct{}

// FindTemplate implements Filter.
func (DefaultFilter) FindTemplate(method, url string, headers map[string][]string, templates []*Template) *Template {
	var best *Template
	bestScore := 0
	for _, t := range templates {
		if t == nil {
			continue
		}
		if !matching.MatchMethod(t.Method, method) {
			continue
		}
		if !matching.MatchURL(t.URL, url) {
			continue
		}
		hints := t.HeaderMap()
		if !matching.MatchHeaders(hints, headers) {
			continue
		}
		if best == nil {
			best = t
			bestScore = matching.HeaderSpecificity(hints, headers)
			continue
		}
		// Specificity only breaks ties within the first match's method and
		// URL pattern.
		if t.Method != best.Method || t.URL != best.URL {
			continue
		}
		if score := matching.HeaderSpecificity(hints, headers); score > bestScore {
			best = t
			bestScore = score
		}
	}
	return best
}

// ExprFilter matches templates whose URL carries an "expr:" prefix by
// evaluating the remainder as a boolean expression over the environment
// {method, url, headers}. Templates without the prefix fall back to the
// default matching semantics, so expression templates and plain templates
// can share a catalog.
type ExprFilter struct{}

// exprPrefix marks a template URL as an expression rather than a pattern.
const exprPrefix = "expr:"

// FindTemplate implements Filter. Expressions that fail to compile or
// evaluate simply do not match.
func (ExprFilter) FindTemplate(method, url string, headers map[string][]string, templates []*Template) *Template {
	env := map[string]any{
		"method":  method,
		"url":     url,
		"headers": headers,
	}
	var plain DefaultFilter
	for _, t := range templates {
		if t == nil {
			continue
		}
		code, ok := strings.CutPrefix(t.URL, exprPrefix)
		if !ok {
			if found := plain.FindTemplate(method, url, headers, []*Template{t}); found != nil {
				return found
			}
			continue
		}
		if !matching.MatchMethod(t.Method, method) {
			continue
		}
		program, err := expr.Compile(code, expr.Env(env), expr.AsBool())
		if err != nil {
			continue
		}
		out, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if matched, _ := out.(bool); matched {
			return t
		}
	}
	return nil
}

// FirstResponseFilter always serves the first candidate response.
type FirstResponseFilter struct{}

// FindResponse implements ResponseFilter.
func (FirstResponseFilter) FindResponse(responses []*Response) *Response {
	if len(responses) == 0 {
		return nil
	}
	return responses[0]
}

// RoundRobinResponseFilter cycles through the candidate responses in order,
// wrapping around after the last one. Safe for concurrent use.
type RoundRobinResponseFilter struct {
	mu   sync.Mutex
	next int
}

// FindResponse implements ResponseFilter.
func (f *RoundRobinResponseFilter) FindResponse(responses []*Response) *Response {
	if len(responses) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := responses[f.next%len(responses)]
	f.next++
	return r
}

// RandomResponseFilter serves a uniformly random candidate response.
type RandomResponseFilter struct{}

// FindResponse implements ResponseFilter.
func (RandomResponseFilter) FindResponse(responses []*Response) *Response {
	if len(responses) == 0 {
		return nil
	}
	return responses[rand.Intn(len(responses))]
}

// PassthroughTransformer is the default TransformationHelper: it copies a
// real response verbatim into a catalog Response.
type PassthroughTransformer struct{}

// Transform implements TransformationHelper.
func (PassthroughTransformer) Transform(statusCode int, headers map[string][]string, body []byte) *Response {
	h := NewHeaders()
	h.AddAll(headers)
	return &Response{
		StatusCode: statusCode,
		Headers:    h,
		Body:       string(body),
	}
}
