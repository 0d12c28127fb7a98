package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// responseRecorder wraps http.ResponseWriter to capture the status
// code, the total byte count, and a bounded prefix of the body.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
	size       int64
	prefix     []byte
	prefixMax  int
}

// newResponseRecorder creates a new response recorder. prefixMax
// bounds the captured body prefix; zero disables body capture.
func newResponseRecorder(w http.ResponseWriter, prefixMax int) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK, // Default to 200
		prefixMax:      prefixMax,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called if not already done, counts the
// bytes, and retains at most prefixMax of them.
func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	if remaining := rw.prefixMax - len(rw.prefix); remaining > 0 && n > 0 {
		chunk := b[:n]
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		rw.prefix = append(rw.prefix, chunk...)
	}
	return n, err
}

// Flush forwards to the underlying writer when it supports streaming.
func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack forwards to the underlying writer for websocket upgrades.
func (rw *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}
