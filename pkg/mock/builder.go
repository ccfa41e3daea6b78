package mock

import "log/slog"

// Builder assembles a Configuration from code, as opposed to decoding one
// from a JSON or YAML asset. Build returns the configuration being built;
// sealing is advisory — the engine keeps mutating the result through its
// own operations (for example recording fallback responses).
type Builder struct {
	cfg *Configuration
}

// NewBuilder returns a builder over a fresh configuration.
func NewBuilder() *Builder {
	return &Builder{cfg: New()}
}

// NewBuilderFrom returns a builder extending an existing configuration.
// A nil source is replaced by a fresh configuration.
func NewBuilderFrom(cfg *Configuration) *Builder {
	if cfg == nil {
		cfg = New()
	}
	return &Builder{cfg: cfg}
}

// AddTemplate adds a template to the catalog. Nil templates and templates
// already present (by identity) are ignored, so adding the same instance
// twice keeps it exactly once.
func (b *Builder) AddTemplate(t *Template) *Builder {
	b.cfg.AddTemplate(t)
	return b
}

// SetDefaultHeader sets a default response header, replacing all existing
// values for the key.
func (b *Builder) SetDefaultHeader(key, value string) *Builder {
	b.cfg.headers.Set(key, value)
	return b
}

// AddDefaultHeader appends default response header values for the key.
func (b *Builder) AddDefaultHeader(key string, values ...string) *Builder {
	b.cfg.headers.Add(key, values...)
	return b
}

// AddDefaultHeaders adds every non-empty entry of the given mapping as a
// default response header.
func (b *Builder) AddDefaultHeaders(headers map[string][]string) *Builder {
	b.cfg.headers.AddAll(headers)
	return b
}

// SetDefaultSetting sets a default behavior setting, overwriting any
// existing value.
func (b *Builder) SetDefaultSetting(key, value string) *Builder {
	b.cfg.settings.Set(key, value)
	return b
}

// SetDefaultSettings sets every non-empty entry of the given mapping as a
// default behavior setting.
func (b *Builder) SetDefaultSettings(settings map[string]string) *Builder {
	b.cfg.settings.SetAll(settings)
	return b
}

// SetFallbackBaseURL sets the real-world base URL, including scheme, to hit
// when no template matches.
func (b *Builder) SetFallbackBaseURL(url string) *Builder {
	b.cfg.fallbackBaseURL = url
	return b
}

// SetFilter overrides the matching strategy.
func (b *Builder) SetFilter(f Filter) *Builder {
	b.cfg.filter = f
	return b
}

// SetTokenHelper sets the token substitution helper instance.
func (b *Builder) SetTokenHelper(h TokenHelper) *Builder {
	b.cfg.tokenHelper = h
	return b
}

// SetTransformationHelper sets the real/mock transformation helper
// instance.
func (b *Builder) SetTransformationHelper(h TransformationHelper) *Builder {
	b.cfg.transformationHelper = h
	return b
}

// SetLogger sets the configuration logger.
func (b *Builder) SetLogger(log *slog.Logger) *Builder {
	b.cfg.SetLogger(log)
	return b
}

// Build returns the assembled configuration.
func (b *Builder) Build() *Configuration {
	return b.cfg
}
