package middleware

import (
	"io"
	"net/http"
)

// bodyRecorder tees a bounded prefix of a request body as the handler
// reads it. The handler still sees the full body; only the first
// prefixMax bytes are retained.
type bodyRecorder struct {
	rc        io.ReadCloser
	prefix    []byte
	prefixMax int
}

func newBodyRecorder(rc io.ReadCloser, prefixMax int) *bodyRecorder {
	return &bodyRecorder{rc: rc, prefixMax: prefixMax}
}

func (b *bodyRecorder) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if remaining := b.prefixMax - len(b.prefix); remaining > 0 && n > 0 {
		chunk := p[:n]
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		b.prefix = append(b.prefix, chunk...)
	}
	return n, err
}

func (b *bodyRecorder) Close() error {
	return b.rc.Close()
}

// recordRequestBody swaps the request body for a recording tee and
// returns the recorder. A nil or http.NoBody body yields nil.
func recordRequestBody(r *http.Request, prefixMax int) *bodyRecorder {
	if prefixMax <= 0 || r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	br := newBodyRecorder(r.Body, prefixMax)
	r.Body = br
	return br
}
