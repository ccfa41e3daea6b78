package serve

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/echsylon/atlantis/pkg/mock"
	_ "github.com/echsylon/atlantis/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingConfiguration() *mock.Configuration {
	headers := mock.NewHeaders()
	headers.Set("Content-Type", "text/plain")
	return mock.NewBuilder().
		AddTemplate(&mock.Template{
			Method: "GET",
			URL:    "/ping",
			Responses: []*mock.Response{
				{StatusCode: 200, Headers: headers, Body: "pong"},
			},
		}).
		Build()
}

func TestServeMatchedTemplate(t *testing.T) {
	h := NewHandler(pingConfiguration())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
}

func TestServeNoMatchWithoutFallbackIs404(t *testing.T) {
	h := NewHandler(pingConfiguration())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no mock configured")
}

func TestServeMethodMismatchIs404(t *testing.T) {
	h := NewHandler(pingConfiguration())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeNilConfiguration(t *testing.T) {
	h := NewHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeDefaultHeadersMergedUnderResponseHeaders(t *testing.T) {
	responseHeaders := mock.NewHeaders()
	responseHeaders.Set("Content-Type", "application/json")
	cfg := mock.NewBuilder().
		SetDefaultHeader("Content-Type", "text/plain").
		SetDefaultHeader("X-Served-By", "atlantis").
		AddTemplate(&mock.Template{
			Method: "GET",
			URL:    "/data",
			Responses: []*mock.Response{
				{StatusCode: 200, Headers: responseHeaders, Body: "{}"},
			},
		}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	// The response header wins, the unrelated default survives.
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "atlantis", rec.Header().Get("X-Served-By"))
}

func TestServeStatusDefaultsTo200(t *testing.T) {
	cfg := mock.NewBuilder().
		AddTemplate(&mock.Template{
			Method:    "GET",
			URL:       "/bare",
			Responses: []*mock.Response{{Body: "ok"}},
		}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bare", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeTemplateWithoutResponsesIs404(t *testing.T) {
	cfg := mock.NewBuilder().
		AddTemplate(&mock.Template{Method: "GET", URL: "/empty"}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeExpandsTokens(t *testing.T) {
	cfg := mock.NewBuilder().
		SetDefaultSetting("tokenHelper", "token.simple").
		AddTemplate(&mock.Template{
			Method: "GET",
			URL:    "/echo",
			Responses: []*mock.Response{
				{StatusCode: 200, Body: "{{method}} {{url}}"},
			},
		}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))

	assert.Equal(t, "GET /echo", rec.Body.String())
}

func TestServeThrottledResponseArrivesComplete(t *testing.T) {
	settings := mock.NewSettings()
	settings.Set(mock.SettingThrottleByteCount, "2")
	settings.Set(mock.SettingThrottleMinDelayMillis, "1")
	settings.Set(mock.SettingThrottleMaxDelayMillis, "3")
	cfg := mock.NewBuilder().
		AddTemplate(&mock.Template{
			Method:   "GET",
			URL:      "/slow",
			Settings: settings,
			Responses: []*mock.Response{
				{StatusCode: 200, Body: "slow and steady"},
			},
		}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, "slow and steady", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestServeRoundRobinSetting(t *testing.T) {
	settings := mock.NewSettings()
	settings.Set(mock.SettingResponseFilter, mock.ResponseRoundRobin)
	cfg := mock.NewBuilder().
		AddTemplate(&mock.Template{
			Method:   "GET",
			URL:      "/cycle",
			Settings: settings,
			Responses: []*mock.Response{
				{StatusCode: 200, Body: "a"},
				{StatusCode: 200, Body: "b"},
			},
		}).
		Build()
	h := NewHandler(cfg)

	// The resolved filter is held per template, so the cycle advances
	// across requests.
	for _, want := range []string{"a", "b", "a", "b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycle", nil))
		assert.Equal(t, want, rec.Body.String())
	}

	// Update drops the cached filter, restarting the cycle.
	h.Update(func(*mock.Configuration) {})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycle", nil))
	assert.Equal(t, "a", rec.Body.String())
}

func TestServeFallbackForwardsRequest(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real/thing?q=1", r.URL.RequestURI())
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Backend", "real")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("echo:" + string(body)))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().SetFallbackBaseURL(backend.URL).Build()
	h := NewHandler(cfg)

	req := httptest.NewRequest(http.MethodPost, "/real/thing?q=1", strings.NewReader("payload"))
	req.Header.Set("X-Custom", "value")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "echo:payload", rec.Body.String())
	assert.Equal(t, "real", rec.Header().Get("X-Backend"))
}

func TestServeFallbackPrefersMatchedTemplate(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer backend.Close()

	cfg := pingConfiguration()
	mock.NewBuilderFrom(cfg).SetFallbackBaseURL(backend.URL)
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestServeFallbackUnreachableIs502(t *testing.T) {
	cfg := mock.NewBuilder().
		SetFallbackBaseURL("http://127.0.0.1:1").
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServeFallbackRedirectNotFollowedWhenDisabled(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, "/to", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("followed"))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().
		SetFallbackBaseURL(backend.URL).
		SetDefaultSetting(mock.SettingFollowRedirects, "false").
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/from", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/to", rec.Header().Get("Location"))
}

func TestServeFallbackRedirectFollowedByDefault(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, "/to", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("followed"))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().SetFallbackBaseURL(backend.URL).Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/from", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "followed", rec.Body.String())
}

func TestServeFallbackStripsHopByHopHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.Header().Set("Upgrade", "h2c")
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte("ok"))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().SetFallbackBaseURL(backend.URL).Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/real", nil))

	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Empty(t, rec.Header().Get("Keep-Alive"))
	assert.Empty(t, rec.Header().Get("Proxy-Authenticate"))
	assert.Empty(t, rec.Header().Get("Upgrade"))
	assert.Empty(t, rec.Header().Get("Connection"))
}

func TestUpdateMutatesCatalogUnderLock(t *testing.T) {
	h := NewHandler(mock.New())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	h.Update(func(cfg *mock.Configuration) {
		cfg.AddTemplate(&mock.Template{
			Method:    "GET",
			URL:       "/late",
			Responses: []*mock.Response{{StatusCode: 200, Body: "added"}},
		})
	})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "added", rec.Body.String())
}

func TestServeRecordsFallbackResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("recorded"))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().
		SetFallbackBaseURL(backend.URL).
		SetTransformationHelper(&mock.PassthroughTransformer{}).
		Build()
	h := NewHandler(cfg)
	h.SetRecording(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	templates := h.Configuration().Templates()
	require.Len(t, templates, 1)
	assert.Equal(t, "GET", templates[0].Method)
	assert.Equal(t, "/record/me", templates[0].URL)
	require.Len(t, templates[0].Responses, 1)
	assert.Equal(t, "recorded", templates[0].Responses[0].Body)

	// The recorded template now answers instead of the fallback.
	backend.Close()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record/me", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "recorded", rec.Body.String())
}

func TestServeRecordingDisabledLeavesCatalogAlone(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("transient"))
	}))
	defer backend.Close()

	cfg := mock.NewBuilder().
		SetFallbackBaseURL(backend.URL).
		SetTransformationHelper(&mock.PassthroughTransformer{}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/once", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, h.Configuration().Templates())
}

func TestServeHeaderHintedTemplates(t *testing.T) {
	hints := mock.NewHeaders()
	hints.Set("X-Env", "test")
	cfg := mock.NewBuilder().
		AddTemplate(&mock.Template{
			Method:    "GET",
			URL:       "/env",
			Responses: []*mock.Response{{StatusCode: 200, Body: "default"}},
		}).
		AddTemplate(&mock.Template{
			Method:    "GET",
			URL:       "/env",
			Headers:   hints,
			Responses: []*mock.Response{{StatusCode: 200, Body: "test env"}},
		}).
		Build()
	h := NewHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/env", nil))
	assert.Equal(t, "default", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/env", nil)
	req.Header.Set("X-Env", "test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "test env", rec.Body.String())
}
