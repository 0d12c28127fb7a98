// Package fiberware adapts lens request capture to gofiber/fiber v2
// applications. It mirrors the net/http middleware: one record per
// request, OPTIONS traffic skipped, bookkeeping that never fails the
// handler chain.
package fiberware

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"apilens/lens-go/pkg/client"
	"apilens/lens-go/pkg/middleware"
	"apilens/lens-go/pkg/record"
)

const consumerLocal = "lens.consumer"

// ConsumerResolver derives a consumer identity from a fiber context.
type ConsumerResolver func(c *fiber.Ctx) record.Consumer

// Options configures the fiber capture middleware.
type Options struct {
	// Consumer resolves a consumer identity from the request.
	// Optional; handlers can also call SetConsumer.
	Consumer ConsumerResolver

	// CapturePayloads enables retention of bounded request and
	// response body prefixes on each record.
	CapturePayloads bool

	// MaxPayloadBytes bounds each captured body prefix. Zero means
	// middleware.DefaultMaxPayloadBytes.
	MaxPayloadBytes int

	// Logger receives middleware bookkeeping failures. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// SetConsumer attaches a consumer identity to the current request.
func SetConsumer(c *fiber.Ctx, consumer record.Consumer) {
	c.Locals(consumerLocal, consumer)
}

// SetConsumerID is a shorthand for SetConsumer with only an identifier.
func SetConsumerID(c *fiber.Ctx, id string) {
	SetConsumer(c, record.Identify(id))
}

func consumerFrom(c *fiber.Ctx) record.Consumer {
	consumer, _ := c.Locals(consumerLocal).(record.Consumer)
	return consumer
}

// New returns a fiber middleware that forwards one record per request
// to the given client.
//
// Example usage:
//
//	app.Use(fiberware.New(lens, fiberware.Options{}))
func New(lens *client.Client, opts Options) fiber.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "lens.fiberware")

	payloadMax := 0
	if opts.CapturePayloads {
		payloadMax = opts.MaxPayloadBytes
		if payloadMax <= 0 {
			payloadMax = middleware.DefaultMaxPayloadBytes
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		startTime := time.Now()
		if opts.Consumer != nil {
			if consumer := opts.Consumer(c); !consumer.IsZero() {
				SetConsumer(c, consumer)
			}
		}

		err := c.Next()

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("request capture failed", "panic", rec)
				}
			}()

			status := c.Response().StatusCode()
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			} else if err != nil && status < 400 {
				status = fiber.StatusInternalServerError
			}

			in := record.Input{
				Timestamp:      startTime,
				Method:         c.Method(),
				Path:           c.Path(),
				StatusCode:     status,
				ResponseTimeMS: float64(time.Since(startTime)) / float64(time.Millisecond),
				RequestSize:    int64(len(c.Body())),
				ResponseSize:   int64(len(c.Response().Body())),
				IPAddress:      clientIP(c),
				UserAgent:      c.Get(fiber.HeaderUserAgent),
				Consumer:       consumerFrom(c),
			}
			if payloadMax > 0 {
				in.RequestPayload = string(boundedPrefix(c.Body(), payloadMax))
				in.ResponsePayload = string(boundedPrefix(c.Response().Body(), payloadMax))
			}
			lens.Capture(in)
		}()

		return err
	}
}

// clientIP resolves the caller address: first X-Forwarded-For entry,
// then X-Real-Ip, then the transport peer. Fiber's c.IP() returns the
// peer address unless the app configures ProxyHeader, so the headers
// are read explicitly.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := c.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	return c.IP()
}

func boundedPrefix(b []byte, max int) []byte {
	if len(b) > max {
		return b[:max]
	}
	return b
}
