// Package matching provides the primitive request matching operations used
// by the built-in template filters: method comparison, URL acceptance and
// header hint matching.
package matching

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchMethod reports whether the request method satisfies the template
// method. Comparison is exact and case-sensitive; an empty template method
// matches any request method.
func MatchMethod(template, method string) bool {
	return template == "" || template == method
}

// MatchURL reports whether the template URL accepts the request URL. A
// template URL without glob metacharacters must match exactly; otherwise it
// is treated as a doublestar glob pattern ("/api/*/items", "/static/**").
// An empty template URL matches nothing.
func MatchURL(template, url string) bool {
	if template == "" {
		return false
	}
	if template == url {
		return true
	}
	if !strings.ContainsAny(template, "*?[{") {
		return false
	}
	ok, err := doublestar.Match(template, url)
	return err == nil && ok
}

// MatchHeaders reports whether every header hint is satisfied by the
// request headers. A hint with an empty value only requires key presence;
// otherwise the value must match one of the request values, with simple
// "*" wildcard patterns supported.
func MatchHeaders(hints map[string][]string, headers map[string][]string) bool {
	for key, wants := range hints {
		got, ok := headers[key]
		if !ok {
			return false
		}
		for _, want := range wants {
			if want == "" {
				continue
			}
			if !anyValueMatches(want, got) {
				return false
			}
		}
	}
	return true
}

// HeaderSpecificity counts how many header hint values are satisfied by the
// request headers. It is only meaningful for templates that already passed
// MatchHeaders and is used to break ties between templates sharing method
// and URL: the most specific header match wins, catalog order breaks the
// remaining ties.
func HeaderSpecificity(hints map[string][]string, headers map[string][]string) int {
	score := 0
	for key, wants := range hints {
		got, ok := headers[key]
		if !ok {
			continue
		}
		score++
		for _, want := range wants {
			if want != "" && anyValueMatches(want, got) {
				score++
			}
		}
	}
	return score
}

func anyValueMatches(pattern string, values []string) bool {
	for _, v := range values {
		if MatchValue(pattern, v) {
			return true
		}
	}
	return false
}

// MatchValue reports whether a header value matches a pattern. Patterns
// without "*" compare exactly; "prefix*", "*suffix" and "*middle*" are
// supported.
func MatchValue(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return value == pattern
	}
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(value, strings.Trim(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(value, strings.TrimPrefix(pattern, "*"))
	default:
		return false
	}
}
