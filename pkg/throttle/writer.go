// Package throttle paces HTTP response writes to reproduce the configured
// network characteristics of a mocked server: bodies are written in chunks
// of at most throttleByteCount bytes with a randomized delay before each
// chunk.
package throttle

import (
	"net/http"
	"time"
)

// DelayFunc returns the delay to apply before the next chunk. It is called
// once per chunk so the delay can be re-derived (randomized) per write.
type DelayFunc func() time.Duration

// ResponseWriter wraps an http.ResponseWriter and throttles body writes.
// A nil delay function or a non-positive chunk size disables the
// corresponding behavior.
type ResponseWriter struct {
	w     http.ResponseWriter
	chunk int64
	delay DelayFunc
}

// NewResponseWriter returns a throttling wrapper around w writing at most
// chunk bytes at a time, sleeping delay() before each chunk.
func NewResponseWriter(w http.ResponseWriter, chunk int64, delay DelayFunc) *ResponseWriter {
	return &ResponseWriter{w: w, chunk: chunk, delay: delay}
}

// Header returns the header map of the underlying writer.
func (t *ResponseWriter) Header() http.Header {
	return t.w.Header()
}

// WriteHeader writes the status code.
func (t *ResponseWriter) WriteHeader(statusCode int) {
	t.w.WriteHeader(statusCode)
}

// Write writes p in paced chunks, flushing between chunks when the
// underlying writer supports it.
func (t *ResponseWriter) Write(p []byte) (int, error) {
	if t.chunk <= 0 {
		t.sleep()
		return t.w.Write(p)
	}

	total := 0
	for len(p) > 0 {
		size := t.chunk
		if size > int64(len(p)) {
			size = int64(len(p))
		}

		t.sleep()
		n, err := t.w.Write(p[:size])
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]

		if f, ok := t.w.(http.Flusher); ok {
			f.Flush()
		}
	}
	return total, nil
}

func (t *ResponseWriter) sleep() {
	if t.delay == nil {
		return
	}
	if d := t.delay(); d > 0 {
		time.Sleep(d)
	}
}

// Flush flushes the underlying writer if it supports flushing.
func (t *ResponseWriter) Flush() {
	if f, ok := t.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter.
func (t *ResponseWriter) Unwrap() http.ResponseWriter {
	return t.w
}
