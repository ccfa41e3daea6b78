package mock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTemplateUnmarshalJSONStringHeaders(t *testing.T) {
	data := []byte(`{
		"method": "GET",
		"url": "/ping",
		"headers": "Content-Type: text/json\nX-Env: test"
	}`)

	var tpl Template
	require.NoError(t, json.Unmarshal(data, &tpl))

	assert.Equal(t, "GET", tpl.Method)
	assert.Equal(t, "/ping", tpl.URL)
	require.NotNil(t, tpl.Headers)
	assert.Equal(t, []string{"Content-Type", "X-Env"}, tpl.Headers.Keys())
	assert.Equal(t, "text/json", tpl.Headers.Get("Content-Type"))
	assert.Equal(t, "test", tpl.Headers.Get("X-Env"))
}

func TestTemplateUnmarshalJSONListHeaders(t *testing.T) {
	data := []byte(`{
		"method": "GET",
		"url": "/ping",
		"headers": [
			{"key": "Content-Type", "value": "text/json"},
			{"key": "X-Env", "value": "test"}
		]
	}`)

	var tpl Template
	require.NoError(t, json.Unmarshal(data, &tpl))

	require.NotNil(t, tpl.Headers)
	assert.Equal(t, []string{"Content-Type", "X-Env"}, tpl.Headers.Keys())
	assert.Equal(t, "text/json", tpl.Headers.Get("Content-Type"))
}

func TestTemplateHeaderFormsAreEquivalent(t *testing.T) {
	stringForm := []byte(`{"headers": "Content-Type: text/json\nX-Foo: bar"}`)
	listForm := []byte(`{"headers": [
		{"key": "Content-Type", "value": "text/json"},
		{"key": "X-Foo", "value": "bar"}
	]}`)

	var fromString, fromList Template
	require.NoError(t, json.Unmarshal(stringForm, &fromString))
	require.NoError(t, json.Unmarshal(listForm, &fromList))

	assert.Equal(t, fromList.Headers.Keys(), fromString.Headers.Keys())
	assert.Equal(t, fromList.Headers.Map(), fromString.Headers.Map())
}

func TestTemplateUnmarshalYAMLStringHeaders(t *testing.T) {
	data := []byte(`
method: POST
url: /users
headers: |-
  Content-Type: application/json
  Authorization: Bearer abc
responses:
  - statusCode: 201
    body: created
`)

	var tpl Template
	require.NoError(t, yaml.Unmarshal(data, &tpl))

	assert.Equal(t, "POST", tpl.Method)
	require.NotNil(t, tpl.Headers)
	assert.Equal(t, "application/json", tpl.Headers.Get("Content-Type"))
	assert.Equal(t, "Bearer abc", tpl.Headers.Get("Authorization"))
	require.Len(t, tpl.Responses, 1)
	assert.Equal(t, 201, tpl.Responses[0].StatusCode)
	assert.Equal(t, "created", tpl.Responses[0].Body)
}

func TestTemplateUnmarshalYAMLListHeaders(t *testing.T) {
	data := []byte(`
method: GET
url: /ping
headers:
  - key: X-One
    value: "1"
  - key: X-Two
    value: "2"
`)

	var tpl Template
	require.NoError(t, yaml.Unmarshal(data, &tpl))
	assert.Equal(t, []string{"X-One", "X-Two"}, tpl.Headers.Keys())
}

func TestResponseUnmarshalJSONStringHeaders(t *testing.T) {
	data := []byte(`{
		"statusCode": 200,
		"phrase": "OK",
		"headers": "Content-Type: text/plain",
		"body": "pong",
		"settings": {"throttleByteCount": "4"}
	}`)

	var r Response
	require.NoError(t, json.Unmarshal(data, &r))

	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "OK", r.Phrase)
	assert.Equal(t, "text/plain", r.Headers.Get("Content-Type"))
	assert.Equal(t, "pong", r.Body)
	assert.Equal(t, int64(4), r.Settings.ThrottleByteCount())
}

func TestTemplateHeaderMapNeverNil(t *testing.T) {
	var tpl Template
	m := tpl.HeaderMap()
	require.NotNil(t, m)
	assert.Empty(t, m)
}

func TestTemplateMarshalRoundTrip(t *testing.T) {
	h := NewHeaders()
	h.Set("X-Env", "test")
	in := &Template{
		ID:      "t1",
		Method:  "GET",
		URL:     "/ping",
		Headers: h,
		Responses: []*Response{
			{StatusCode: 200, Body: "pong"},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Template
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Method, out.Method)
	assert.Equal(t, in.URL, out.URL)
	assert.Equal(t, in.Headers.Map(), out.Headers.Map())
	require.Len(t, out.Responses, 1)
	assert.Equal(t, 200, out.Responses[0].StatusCode)
	assert.Equal(t, "pong", out.Responses[0].Body)
}
