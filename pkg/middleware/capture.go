package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"apilens/lens-go/pkg/client"
	"apilens/lens-go/pkg/record"
)

// DefaultMaxPayloadBytes bounds the captured request and response body
// prefixes when Options does not set a limit.
const DefaultMaxPayloadBytes = 8192

// Options configures the capture middleware.
type Options struct {
	// Consumer resolves a consumer identity from the incoming request.
	// Optional; handlers can also call SetConsumer directly.
	Consumer ConsumerResolver

	// CapturePayloads enables retention of bounded request and
	// response body prefixes on each record.
	CapturePayloads bool

	// MaxPayloadBytes bounds each captured body prefix. Zero means
	// DefaultMaxPayloadBytes.
	MaxPayloadBytes int

	// Logger receives middleware bookkeeping failures. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Capture instruments an http.Handler and forwards one record per
// request to the given client. OPTIONS requests pass through
// unobserved. The handler chain is never blocked and never fails on
// account of capture bookkeeping.
//
// Example usage:
//
//	handler = middleware.Capture(lens, handler, middleware.Options{})
func Capture(c *client.Client, next http.Handler, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "lens.middleware")

	payloadMax := 0
	if opts.CapturePayloads {
		payloadMax = opts.MaxPayloadBytes
		if payloadMax <= 0 {
			payloadMax = DefaultMaxPayloadBytes
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS preflight traffic is noise, not API usage.
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		ctx, holder := withConsumerHolder(r.Context())
		r = r.WithContext(ctx)

		if opts.Consumer != nil {
			if consumer := opts.Consumer(r); !consumer.IsZero() {
				holder.set(consumer)
			}
		}

		body := recordRequestBody(r, payloadMax)
		rw := newResponseRecorder(w, payloadMax)

		defer func() {
			// A bookkeeping panic must not take the response down.
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("request capture failed", "panic", rec)
				}
			}()

			in := record.Input{
				Timestamp:      startTime,
				Method:         r.Method,
				Path:           r.URL.Path,
				StatusCode:     rw.statusCode,
				ResponseTimeMS: float64(time.Since(startTime)) / float64(time.Millisecond),
				RequestSize:    requestSize(r, body),
				ResponseSize:   responseSize(rw),
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
				Consumer:       holder.get(),
			}
			if body != nil {
				in.RequestPayload = string(body.prefix)
			}
			if payloadMax > 0 {
				in.ResponsePayload = string(rw.prefix)
			}
			c.Capture(in)
		}()

		next.ServeHTTP(rw, r)
	})
}

// requestSize prefers the declared Content-Length, falling back to the
// bytes actually observed by the body tee.
func requestSize(r *http.Request, body *bodyRecorder) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	if body != nil {
		return int64(len(body.prefix))
	}
	return 0
}

// responseSize prefers an explicit Content-Length header over the
// counted bytes, matching what the client on the wire saw.
func responseSize(rw *responseRecorder) int64 {
	if cl := rw.Header().Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return rw.size
}

// clientIP resolves the caller address: first X-Forwarded-For entry,
// then X-Real-Ip, then the connection remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
