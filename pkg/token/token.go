// Package token provides a small {{token}} substitution helper for mock
// response bodies. It implements the mock.TokenHelper capability and is
// registered in the strategy registry as "token.simple", so a
// configuration can enable it with the tokenHelper setting.
package token

import (
	"regexp"
	"strconv"
	"time"

	"github.com/echsylon/atlantis/pkg/mock"
	"github.com/echsylon/atlantis/pkg/strategy"
	"github.com/google/uuid"
)

// Simple is the registry name of the SimpleHelper strategy.
const Simple = "token.simple"

func init() {
	strategy.Register(Simple, func() any { return &SimpleHelper{} })
}

// tokenRegex matches {{name}} patterns with optional inner whitespace.
var tokenRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// SimpleHelper expands a fixed set of tokens in response text:
//
//	{{uuid}}       a fresh UUID v4
//	{{now}}        current time, RFC 3339
//	{{nowMillis}}  current Unix time in milliseconds
//	{{method}}     the request method being served
//	{{url}}        the request URL being served
//
// Unknown tokens are left untouched so fixtures stay inspectable when a
// token name is misspelled. A SimpleHelper is stateless and safe for
// concurrent use.
type SimpleHelper struct{}

// Expand implements mock.TokenHelper.
func (SimpleHelper) Expand(text, method, url string) string {
	return tokenRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := tokenRegex.FindStringSubmatch(match)[1]
		switch name {
		case "uuid":
			return uuid.NewString()
		case "now":
			return time.Now().Format(time.RFC3339)
		case "nowMillis":
			return strconv.FormatInt(time.Now().UnixMilli(), 10)
		case "method":
			return method
		case "url":
			return url
		default:
			return match
		}
	})
}

var _ mock.TokenHelper = SimpleHelper{}
