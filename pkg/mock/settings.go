package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/echsylon/atlantis/pkg/strategy"
	"gopkg.in/yaml.v3"
)

// Recognized behavior setting keys. Settings hold simulated physical
// characteristics of the mocked server rather than HTTP protocol data.
const (
	SettingFollowRedirects        = "followRedirects"
	SettingFallbackBaseURL        = "fallbackBaseUrl"
	SettingThrottleByteCount      = "throttleByteCount"
	SettingThrottleMinDelayMillis = "throttleMinDelayMillis"
	SettingThrottleMaxDelayMillis = "throttleMaxDelayMillis"
	SettingTokenHelper            = "tokenHelper"
	SettingTransformationHelper   = "transformationHelper"
	SettingRequestFilter          = "requestFilter"
	SettingResponseFilter         = "responseFilter"
)

// Settings is an ordered string key→value store for server behavior knobs,
// with typed accessors that apply defaults and resolve named strategies.
// Empty keys and values are never stored.
//
// Settings is not safe for concurrent mutation. The typed accessors are
// read-only and may be called from multiple goroutines once the store is no
// longer being written.
type Settings struct {
	keys   []string
	values map[string]string
	log    *slog.Logger
}

// NewSettings returns an empty settings store.
func NewSettings() *Settings {
	return &Settings{values: make(map[string]string)}
}

// SetLogger sets the logger used to report strategy resolution failures.
func (s *Settings) SetLogger(log *slog.Logger) {
	s.log = log
}

func (s *Settings) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// Set stores the given value, overwriting any existing value for key.
// Empty key or value is a no-op.
func (s *Settings) Set(key, value string) {
	if key == "" || value == "" {
		return
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// SetAll applies Set for every entry in the given mapping.
func (s *Settings) SetAll(settings map[string]string) {
	for key, value := range settings {
		s.Set(key, value)
	}
}

// SetIfAbsent stores the value only if the key has no value yet. Used to
// layer catalog-wide defaults under explicit per-template overrides.
func (s *Settings) SetIfAbsent(key, value string) {
	if _, ok := s.values[key]; ok {
		return
	}
	s.Set(key, value)
}

// SetIfAbsentAll applies SetIfAbsent for every entry in the given mapping.
func (s *Settings) SetIfAbsentAll(settings map[string]string) {
	for key, value := range settings {
		s.SetIfAbsent(key, value)
	}
}

// Get returns the raw value for key, or "" if the key is absent.
func (s *Settings) Get(key string) string {
	return s.values[key]
}

// Keys returns the setting keys in insertion order.
func (s *Settings) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Map returns a snapshot of all settings.
func (s *Settings) Map() map[string]string {
	out := make(map[string]string, len(s.keys))
	for _, key := range s.keys {
		out[key] = s.values[key]
	}
	return out
}

// Len returns the number of stored setting keys.
func (s *Settings) Len() int {
	return len(s.keys)
}

// FollowRedirects reports whether a fallback response should transparently
// follow redirects. Defaults to true when unset or unparseable.
func (s *Settings) FollowRedirects() bool {
	return parseBool(s.Get(SettingFollowRedirects), true)
}

// ThrottleByteCount returns the number of response body bytes to write per
// chunk. Defaults to unbounded (math.MaxInt64).
func (s *Settings) ThrottleByteCount() int64 {
	return parseInt64(s.Get(SettingThrottleByteCount), math.MaxInt64)
}

// ThrottleDelay returns a random delay drawn uniformly from
// [throttleMinDelayMillis, throttleMaxDelayMillis) milliseconds, both bounds
// clamped to zero or more. When max ≤ min the minimum is returned. The delay
// is re-derived on every call so repeated invocations for a streamed
// response vary naturally; the global random source is safe for concurrent
// callers.
func (s *Settings) ThrottleDelay() time.Duration {
	min := parseInt64(s.Get(SettingThrottleMinDelayMillis), 0)
	max := parseInt64(s.Get(SettingThrottleMaxDelayMillis), 0)
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	millis := min
	if max > min {
		millis = min + rand.Int63n(max-min)
	}
	return time.Duration(millis) * time.Millisecond
}

// FallbackBaseURL returns the configured real-world base URL, or "".
func (s *Settings) FallbackBaseURL() string {
	return s.Get(SettingFallbackBaseURL)
}

// TokenHelper resolves the configured token helper strategy, or nil.
func (s *Settings) TokenHelper() TokenHelper {
	h, ok := resolveStrategy[TokenHelper](s, SettingTokenHelper)
	if !ok {
		return nil
	}
	return h
}

// TransformationHelper resolves the configured transformation helper
// strategy, or nil.
func (s *Settings) TransformationHelper() TransformationHelper {
	h, ok := resolveStrategy[TransformationHelper](s, SettingTransformationHelper)
	if !ok {
		return nil
	}
	return h
}

// RequestFilter resolves the configured request filter strategy, or nil.
func (s *Settings) RequestFilter() Filter {
	f, ok := resolveStrategy[Filter](s, SettingRequestFilter)
	if !ok {
		return nil
	}
	return f
}

// ResponseFilter resolves the configured response filter strategy, or nil.
func (s *Settings) ResponseFilter() ResponseFilter {
	f, ok := resolveStrategy[ResponseFilter](s, SettingResponseFilter)
	if !ok {
		return nil
	}
	return f
}

// resolveStrategy instantiates the strategy named by the given setting key
// and asserts it to the wanted capability. Every failure mode (unset key,
// unknown name, factory error, capability mismatch) yields (zero, false)
// with a single informational log line — resolution failures must never
// abort serving.
func resolveStrategy[T any](s *Settings, key string) (T, bool) {
	var zero T
	name := s.Get(key)
	if name == "" {
		return zero, false
	}
	v, err := strategy.New(name)
	if err != nil {
		s.logger().Info("cannot resolve strategy", "setting", key, "name", name, "error", err)
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		s.logger().Info("strategy has wrong capability", "setting", key, "name", name, "got", fmt.Sprintf("%T", v))
		return zero, false
	}
	return t, true
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// MarshalJSON emits the settings as a JSON object with keys in insertion
// order.
func (s *Settings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(s.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, preserving the order
// keys appear in the document.
func (s *Settings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("settings: expected object, got %v", tok)
	}
	*s = Settings{values: make(map[string]string), log: s.log}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("settings: value of %q is not a string: %w", key, err)
		}
		s.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalYAML emits the settings as an ordered mapping.
func (s *Settings) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range s.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.values[key]},
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping of string values in document order.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("settings: expected mapping node, got kind %d", value.Kind)
	}
	*s = Settings{values: make(map[string]string), log: s.log}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var v string
		if err := value.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("settings: value of %q is not a string: %w", value.Content[i].Value, err)
		}
		s.Set(value.Content[i].Value, v)
	}
	return nil
}
