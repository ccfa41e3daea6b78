package mock

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Headers is an ordered, multi-valued collection of HTTP headers. Keys keep
// the casing they were inserted with and iterate in insertion order. A key
// never maps to an empty value list: empty keys and empty values are
// silently dropped on insert.
//
// Headers is not safe for concurrent use.
type Headers struct {
	keys   []string
	values map[string][]string
}

// NewHeaders returns an empty header collection.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func (h *Headers) init() {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
}

// Set replaces all values for key with the single given value.
// Empty key or value is a no-op.
func (h *Headers) Set(key, value string) {
	if key == "" || value == "" {
		return
	}
	h.init()
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = []string{value}
}

// Add appends the given non-empty values to the key's value list, creating
// the key if absent. Empty key, or no non-empty values, is a no-op.
func (h *Headers) Add(key string, values ...string) {
	if key == "" {
		return
	}
	kept := values[:0:0]
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return
	}
	h.init()
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = append(h.values[key], kept...)
}

// AddAll applies Add for every entry in the given mapping.
// A nil or empty mapping is a no-op.
func (h *Headers) AddAll(headers map[string][]string) {
	for key, values := range headers {
		h.Add(key, values...)
	}
}

// Get returns the first value for key, or "" if the key is absent.
func (h *Headers) Get(key string) string {
	if vs := h.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns a copy of the ordered value list for key.
func (h *Headers) Values(key string) []string {
	vs := h.values[key]
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// Keys returns the header keys in insertion order.
func (h *Headers) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Map returns a snapshot of the collection as key → ordered value list.
// Mutating the snapshot does not affect the collection.
func (h *Headers) Map() map[string][]string {
	out := make(map[string][]string, len(h.keys))
	for _, key := range h.keys {
		vs := h.values[key]
		cp := make([]string, len(vs))
		copy(cp, vs)
		out[key] = cp
	}
	return out
}

// Len returns the number of distinct header keys.
func (h *Headers) Len() int {
	return len(h.keys)
}

// headerEntry is the persisted form of a single header value. Multi-valued
// keys serialize as repeated entries in order.
type headerEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func (h *Headers) entries() []headerEntry {
	var out []headerEntry
	for _, key := range h.keys {
		for _, v := range h.values[key] {
			out = append(out, headerEntry{Key: key, Value: v})
		}
	}
	return out
}

// MarshalJSON emits the collection as an ordered list of {key, value}
// objects, one entry per value.
func (h *Headers) MarshalJSON() ([]byte, error) {
	entries := h.entries()
	if entries == nil {
		entries = []headerEntry{}
	}
	return marshalNoEscape(entries)
}

// UnmarshalJSON reads a list of {key, value} objects. The newline-delimited
// string form is normalized to this form by the owning entity before the
// structural decode reaches this method.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var entries []headerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*h = *NewHeaders()
	for _, e := range entries {
		h.Add(e.Key, e.Value)
	}
	return nil
}

// MarshalYAML emits the same ordered list form as MarshalJSON.
func (h *Headers) MarshalYAML() (interface{}, error) {
	entries := h.entries()
	if entries == nil {
		entries = []headerEntry{}
	}
	return entries, nil
}

// UnmarshalYAML reads a sequence of {key, value} mappings.
func (h *Headers) UnmarshalYAML(value *yaml.Node) error {
	var entries []headerEntry
	if err := value.Decode(&entries); err != nil {
		return err
	}
	*h = *NewHeaders()
	for _, e := range entries {
		h.Add(e.Key, e.Value)
	}
	return nil
}

// splitHeaderLines parses the newline-delimited "Key: value" header form.
// Each line splits on the first colon with both sides trimmed; lines
// without a colon are dropped.
func splitHeaderLines(s string) []headerEntry {
	var entries []headerEntry
	for _, line := range strings.Split(s, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		entries = append(entries, headerEntry{
			Key:   strings.TrimSpace(line[:idx]),
			Value: strings.TrimSpace(line[idx+1:]),
		})
	}
	return entries
}
