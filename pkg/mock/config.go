package mock

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Configuration is the "mocked Internet": the ordered catalog of request
// templates the server can answer for, the default response headers and
// behavior settings, the active matching strategy, and the fallback base
// URL to target when no template matches.
//
// A Configuration is built with Builder, decoded from a configuration file,
// or both (decode, then extend). It is not synchronized; see pkg/serve for
// the locking contract under concurrent request handling.
type Configuration struct {
	fallbackBaseURL      string
	templates            []*Template
	headers              *Headers
	settings             *Settings
	filter               Filter
	tokenHelper          TokenHelper
	transformationHelper TransformationHelper
	log                  *slog.Logger
}

// New returns an empty configuration. The default headers and settings are
// empty instances, never nil.
func New() *Configuration {
	return &Configuration{
		headers:  NewHeaders(),
		settings: NewSettings(),
	}
}

// SetLogger sets the logger used for strategy resolution diagnostics.
func (c *Configuration) SetLogger(log *slog.Logger) {
	c.log = log
	c.settings.SetLogger(log)
}

// Templates returns the catalog in insertion order. The returned slice is a
// copy; the templates themselves are shared.
func (c *Configuration) Templates() []*Template {
	out := make([]*Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// AddTemplate appends a template to the catalog at runtime, assigning an ID
// when the template has none. Nil templates and templates already present
// (by identity) are ignored.
func (c *Configuration) AddTemplate(t *Template) {
	if t == nil {
		return
	}
	for _, existing := range c.templates {
		if existing == t {
			return
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	c.templates = append(c.templates, t)
}

// DefaultHeaders returns the default response headers, applied to responses
// that do not override them. Never nil.
func (c *Configuration) DefaultHeaders() *Headers {
	return c.headers
}

// Settings returns the default behavior settings. Never nil.
func (c *Configuration) Settings() *Settings {
	return c.settings
}

// FallbackBaseURL returns the real-world base URL to target when no
// template matches: the explicitly configured URL if set, else the
// fallbackBaseUrl setting.
func (c *Configuration) FallbackBaseURL() string {
	if c.fallbackBaseURL != "" {
		return c.fallbackBaseURL
	}
	return c.settings.FallbackBaseURL()
}

// TokenHelper returns the token helper: the configured instance if one was
// set, else the helper named by the tokenHelper setting, else nil.
func (c *Configuration) TokenHelper() TokenHelper {
	if c.tokenHelper != nil {
		return c.tokenHelper
	}
	return c.settings.TokenHelper()
}

// TransformationHelper returns the transformation helper: the configured
// instance if one was set, else the helper named by the
// transformationHelper setting, else nil.
func (c *Configuration) TransformationHelper() TransformationHelper {
	if c.transformationHelper != nil {
		return c.transformationHelper
	}
	return c.settings.TransformationHelper()
}

// SetFilter forcefully overrides the matching strategy. A nil filter
// restores the default resolution order.
func (c *Configuration) SetFilter(f Filter) {
	c.filter = f
}

// FindTemplate returns the template serving the given request data, or nil
// when no template applies. The active filter is resolved on every call —
// the explicit override if set, else the requestFilter setting, else the
// built-in default — so a strategy swapped at runtime takes effect
// immediately.
func (c *Configuration) FindTemplate(method, url string, headers map[string][]string) *Template {
	filter := c.filter
	if filter == nil {
		filter = c.settings.RequestFilter()
	}
	if filter == nil {
		filter = DefaultFilter{}
	}
	return filter.FindTemplate(method, url, headers, c.templates)
}

// ResolveSettings layers behavior settings for serving one response:
// per-response values win, then per-template values, then the
// configuration-wide defaults. The result is a detached store.
func ResolveSettings(cfg *Configuration, t *Template, r *Response) *Settings {
	eff := NewSettings()
	if cfg != nil {
		eff.SetLogger(cfg.log)
	}
	if r != nil && r.Settings != nil {
		eff.SetAll(r.Settings.Map())
	}
	if t != nil && t.Settings != nil {
		eff.SetIfAbsentAll(t.Settings.Map())
	}
	if cfg != nil {
		eff.SetIfAbsentAll(cfg.settings.Map())
	}
	return eff
}

// configurationDoc is the persisted shape of a Configuration. Strategy
// instances are not persisted — only their setting name references survive
// a round trip.
type configurationDoc struct {
	FallbackBaseURL string      `json:"fallbackBaseUrl,omitempty" yaml:"fallbackBaseUrl,omitempty"`
	Headers         *Headers    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Settings        *Settings   `json:"settings,omitempty" yaml:"settings,omitempty"`
	Requests        []*Template `json:"requests" yaml:"requests"`
}

func (c *Configuration) doc() *configurationDoc {
	doc := &configurationDoc{
		FallbackBaseURL: c.fallbackBaseURL,
		Requests:        c.templates,
	}
	if c.headers.Len() > 0 {
		doc.Headers = c.headers
	}
	if c.settings.Len() > 0 {
		doc.Settings = c.settings
	}
	if doc.Requests == nil {
		doc.Requests = []*Template{}
	}
	return doc
}

func (c *Configuration) fromDoc(doc *configurationDoc) {
	*c = *New()
	c.fallbackBaseURL = doc.FallbackBaseURL
	if doc.Headers != nil {
		c.headers = doc.Headers
	}
	if doc.Settings != nil {
		c.settings = doc.Settings
	}
	for _, t := range doc.Requests {
		c.AddTemplate(t)
	}
}

// MarshalJSON implements json.Marshaler.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	return marshalNoEscape(c.doc())
}

// UnmarshalJSON implements json.Unmarshaler with the same two-phase header
// normalization as the template entities: the configuration owns a headers
// field of its own (the default response headers).
func (c *Configuration) UnmarshalJSON(data []byte) error {
	data, err := normalizeHeadersJSON(data)
	if err != nil {
		return err
	}
	var doc configurationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.fromDoc(&doc)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c *Configuration) MarshalYAML() (interface{}, error) {
	return c.doc(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Configuration) UnmarshalYAML(value *yaml.Node) error {
	if err := normalizeHeadersYAML(value); err != nil {
		return err
	}
	var doc configurationDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	c.fromDoc(&doc)
	return nil
}
