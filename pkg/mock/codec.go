package mock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration marks a configuration document that cannot be
// decoded: syntax errors and wrong field types alike. A failed decode is
// all-or-nothing — no part of the document is applied.
var ErrInvalidConfiguration = errors.New("invalid mock configuration")

// DecodeJSON parses a complete configuration document from JSON.
func DecodeJSON(data []byte) (*Configuration, error) {
	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// EncodeJSON serializes a configuration to pretty-printed JSON. Text
// content is never HTML-escaped: the output doubles as a human-authored
// fixture format.
func EncodeJSON(cfg *Configuration) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeYAML parses a complete configuration document from YAML.
func DecodeYAML(data []byte) (*Configuration, error) {
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// EncodeYAML serializes a configuration to YAML.
func EncodeYAML(cfg *Configuration) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// marshalNoEscape is json.Marshal without HTML escaping and without the
// encoder's trailing newline.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalizeHeadersJSON rewrites a string-valued "headers" field into the
// canonical list-of-{key, value} form. This targeted first pass runs before
// the generic structural decode of the owning entity, so the entity's
// custom unmarshaler can hand the normalized document to an alias type
// without recursing into itself.
func normalizeHeadersJSON(data []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields["headers"]
	if !ok {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not the string form; leave the field for the structural decode.
		return data, nil
	}
	entries := splitHeaderLines(s)
	if entries == nil {
		entries = []headerEntry{}
	}
	normalized, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	fields["headers"] = normalized
	return json.Marshal(fields)
}

// normalizeHeadersYAML is the YAML counterpart of normalizeHeadersJSON: it
// replaces a scalar "headers" value in the given mapping node with a
// sequence of {key, value} mappings, in place.
func normalizeHeadersYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping node, got kind %d", value.Kind)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value != "headers" {
			continue
		}
		v := value.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
			return nil
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range splitHeaderLines(v.Value) {
			seq.Content = append(seq.Content, &yaml.Node{
				Kind: yaml.MappingNode,
				Tag:  "!!map",
				Content: []*yaml.Node{
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: "key"},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: "value"},
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Value},
				},
			})
		}
		value.Content[i+1] = seq
		return nil
	}
	return nil
}
