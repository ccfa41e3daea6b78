// Package serve turns a mock.Configuration into an http.Handler: it
// matches incoming requests against the template catalog, synthesizes the
// selected mock response with the resolved behavior settings applied
// (default headers, token substitution, throttled body writes), and falls
// back to the real world when the configuration names a fallback base URL.
package serve

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/echsylon/atlantis/pkg/logging"
	"github.com/echsylon/atlantis/pkg/mock"
	"github.com/echsylon/atlantis/pkg/throttle"
)

// Handler serves mock responses for a shared Configuration. The
// configuration entities are not thread-safe themselves, so the handler
// guards them: matching and settings reads take a shared read lock,
// catalog mutation (recording a fallback response) takes the exclusive
// lock.
type Handler struct {
	mu     sync.RWMutex
	cfg    *mock.Configuration
	log    *slog.Logger
	record bool

	// filterMu guards responseFilters independently of mu so the cache can
	// be populated while the read lock is held.
	filterMu        sync.Mutex
	responseFilters map[*mock.Template]mock.ResponseFilter
}

// NewHandler returns a handler serving the given configuration. A nil
// configuration is replaced by an empty one.
func NewHandler(cfg *mock.Configuration) *Handler {
	if cfg == nil {
		cfg = mock.New()
	}
	return &Handler{
		cfg:             cfg,
		log:             logging.Nop(),
		responseFilters: make(map[*mock.Template]mock.ResponseFilter),
	}
}

// SetLogger sets the handler logger and propagates it to the
// configuration.
func (h *Handler) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = log
	h.cfg.SetLogger(log)
}

// SetRecording enables recording fallback responses into the catalog via
// the configured transformation helper.
func (h *Handler) SetRecording(record bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record = record
}

// Configuration returns the served configuration. The value is shared with
// in-flight requests: reading it is fine, mutation must go through Update.
func (h *Handler) Configuration() *mock.Configuration {
	return h.cfg
}

// Update runs fn on the configuration under the exclusive lock, so catalog
// and settings mutation cannot race with in-flight matching. Cached
// response filter resolutions are dropped, so a changed responseFilter
// setting takes effect on the next request.
func (h *Handler) Update(fn func(*mock.Configuration)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.cfg)
	h.filterMu.Lock()
	h.responseFilters = make(map[*mock.Template]mock.ResponseFilter)
	h.filterMu.Unlock()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := r.URL.RequestURI()

	h.mu.RLock()
	template := h.cfg.FindTemplate(r.Method, url, r.Header)
	var response *mock.Response
	var eff *mock.Settings
	if template != nil {
		response = h.pickResponse(template)
		eff = mock.ResolveSettings(h.cfg, template, response)
	}
	defaults := h.cfg.DefaultHeaders().Map()
	tokens := h.cfg.TokenHelper()
	fallback := h.cfg.FallbackBaseURL()
	h.mu.RUnlock()

	if template == nil || response == nil {
		if fallback != "" {
			h.forward(w, r, fallback)
			return
		}
		h.log.Debug("no template matched", "method", r.Method, "url", url)
		http.Error(w, "no mock configured for request", http.StatusNotFound)
		return
	}

	h.log.Debug("serving mock response", "method", r.Method, "url", url, "template", template.ID)
	h.writeResponse(w, r, response, eff, defaults, tokens)
}

// pickResponse selects one of the template's candidate responses using the
// response filter resolved from the template and configuration settings.
// The resolved filter is held per template so stateful filters (round
// robin) keep their position across requests. Called with the read lock
// held.
func (h *Handler) pickResponse(t *mock.Template) *mock.Response {
	h.filterMu.Lock()
	filter, ok := h.responseFilters[t]
	if !ok {
		filter = mock.ResolveSettings(h.cfg, t, nil).ResponseFilter()
		if filter == nil {
			filter = mock.FirstResponseFilter{}
		}
		h.responseFilters[t] = filter
	}
	h.filterMu.Unlock()
	return filter.FindResponse(t.Responses)
}

func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, response *mock.Response, eff *mock.Settings, defaults map[string][]string, tokens mock.TokenHelper) {
	// Default headers apply unless the response overrides the key.
	for key, values := range defaults {
		w.Header()[key] = values
	}
	if response.Headers != nil {
		for key, values := range response.Headers.Map() {
			w.Header()[key] = values
		}
	}

	body := response.Body
	if tokens != nil {
		body = tokens.Expand(body, r.Method, r.URL.RequestURI())
	}
	if body != "" && w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	tw := throttle.NewResponseWriter(w, eff.ThrottleByteCount(), eff.ThrottleDelay)
	tw.WriteHeader(status)
	if body != "" {
		if _, err := tw.Write([]byte(body)); err != nil {
			h.log.Debug("failed to write mock response", "error", err)
		}
	}
}

// forward relays the request to the fallback base URL and copies the real
// response back, optionally recording it into the catalog.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, base string) {
	h.mu.RLock()
	follow := h.cfg.Settings().FollowRedirects()
	transform := h.cfg.TransformationHelper()
	record := h.record
	h.mu.RUnlock()

	target := strings.TrimRight(base, "/") + r.URL.RequestURI()
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		h.log.Info("cannot build fallback request", "target", target, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()

	client := &http.Client{}
	if !follow {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		h.log.Info("fallback request failed", "target", target, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.Info("cannot read fallback response", "target", target, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	h.log.Debug("served fallback response", "target", target, "status", resp.StatusCode)

	for key, values := range resp.Header {
		if isHopByHop(key) {
			continue
		}
		w.Header()[key] = values
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	if record && transform != nil {
		h.recordResponse(r, transform.Transform(resp.StatusCode, resp.Header, body))
	}
}

// hopByHopHeaders are scoped to a single connection (RFC 9110 section 7.6.1)
// and must not be copied from an upstream response.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func isHopByHop(key string) bool {
	canonical := http.CanonicalHeaderKey(key)
	for _, name := range hopByHopHeaders {
		if canonical == name {
			return true
		}
	}
	return false
}

// recordResponse adds the transformed real response to the catalog so
// subsequent identical requests are served from the mock context.
func (h *Handler) recordResponse(r *http.Request, response *mock.Response) {
	if response == nil {
		return
	}
	template := &mock.Template{
		Method:    r.Method,
		URL:       r.URL.RequestURI(),
		Responses: []*mock.Response{response},
	}
	h.mu.Lock()
	h.cfg.AddTemplate(template)
	h.mu.Unlock()
	h.log.Debug("recorded fallback response", "method", template.Method, "url", template.URL)
}
