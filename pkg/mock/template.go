package mock

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Template pairs a request matching specification with zero or more
// candidate mock responses. Templates are owned by the Configuration
// catalog and are immutable once added except by whole replacement.
type Template struct {
	// ID uniquely identifies the template in the catalog. Assigned on
	// insert when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Method is the HTTP method to match, exact and case-sensitive.
	// Empty matches any method.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// URL is the request URL to accept: an exact string, a doublestar glob
	// pattern, or an "expr:" expression when the expression filter is
	// active.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Headers are request-side matching hints: headers the incoming
	// request must carry for this template to apply.
	Headers *Headers `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Responses are the candidate mock responses. Which one is served is
	// decided by the active response filter.
	Responses []*Response `json:"responses,omitempty" yaml:"responses,omitempty"`

	// Settings are per-template behavior overrides layered over the
	// configuration defaults.
	Settings *Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// HeaderMap returns the matching hints as a plain map, never nil.
func (t *Template) HeaderMap() map[string][]string {
	if t.Headers == nil {
		return map[string][]string{}
	}
	return t.Headers.Map()
}

// Response describes a single mock response: status line data, headers and
// body, plus optional per-response behavior settings.
type Response struct {
	StatusCode int       `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Phrase     string    `json:"phrase,omitempty" yaml:"phrase,omitempty"`
	Headers    *Headers  `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string    `json:"body,omitempty" yaml:"body,omitempty"`
	Settings   *Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// UnmarshalJSON decodes a template after normalizing its headers field.
// The headers value may be a newline-delimited "Key: value" string or a
// list of {key, value} objects; the string form is rewritten to the list
// form first, then the document is decoded through an alias type so this
// method is not re-entered by the generic decoder.
func (t *Template) UnmarshalJSON(data []byte) error {
	data, err := normalizeHeadersJSON(data)
	if err != nil {
		return err
	}
	type templateAlias Template
	var alias templateAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*t = Template(alias)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the YAML form of the
// configuration format.
func (t *Template) UnmarshalYAML(value *yaml.Node) error {
	if err := normalizeHeadersYAML(value); err != nil {
		return err
	}
	type templateAlias Template
	var alias templateAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*t = Template(alias)
	return nil
}

// UnmarshalJSON decodes a response with the same two-phase header
// normalization as Template.UnmarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	data, err := normalizeHeadersJSON(data)
	if err != nil {
		return err
	}
	type responseAlias Response
	var alias responseAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = Response(alias)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the YAML form.
func (r *Response) UnmarshalYAML(value *yaml.Node) error {
	if err := normalizeHeadersYAML(value); err != nil {
		return err
	}
	type responseAlias Response
	var alias responseAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*r = Response(alias)
	return nil
}
