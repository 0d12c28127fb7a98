package tracing

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"apilens/lens-go/pkg/client"
	"apilens/lens-go/pkg/record"
)

// Attribute fallback chains. Newer semantic convention keys come
// first, the deprecated spellings after, so instrumentation of any
// vintage maps onto the same record fields.
var (
	methodKeys       = []attribute.Key{"http.request.method", "http.method"}
	pathKeys         = []attribute.Key{"http.route", "url.path", "http.target"}
	statusKeys       = []attribute.Key{"http.response.status_code", "http.status_code"}
	requestSizeKeys  = []attribute.Key{"http.request.body.size", "http.request_content_length", "http.request_content_length_uncompressed"}
	responseSizeKeys = []attribute.Key{"http.response.body.size", "http.response_content_length", "http.response_content_length_uncompressed"}
	clientIPKeys     = []attribute.Key{"client.address", "http.client_ip", "net.peer.ip"}
	userAgentKeys    = []attribute.Key{"user_agent.original", "http.user_agent"}
)

// Options configures the span exporter. The zero value captures user
// agents but not client addresses.
type Options struct {
	// Environment overrides the client environment on exported
	// records.
	Environment string

	// CaptureClientIP copies the client address attribute onto the
	// record. Off by default; span attributes may carry addresses the
	// deployment does not want to ship.
	CaptureClientIP bool

	// OmitUserAgent drops the user agent attribute from records.
	OmitUserAgent bool
}

// Exporter converts finished SERVER and CONSUMER spans into lens
// records and feeds them to a client. It implements
// sdktrace.SpanExporter.
type Exporter struct {
	client     *client.Client
	opts       Options
	ingestPath string
}

// NewExporter creates an exporter backed by the given client.
func NewExporter(c *client.Client, opts Options) *Exporter {
	e := &Exporter{client: c, opts: opts}
	if u, err := url.Parse(c.Endpoint()); err == nil {
		e.ingestPath = u.Path
	}
	return e
}

// ExportSpans converts a batch of spans into capture inputs. Spans
// that are not server-side HTTP work, and spans for the ingest
// endpoint itself, are skipped. The method never reports failure:
// capture is lossy by contract and must not disturb the trace
// pipeline.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	inputs := make([]record.Input, 0, len(spans))

	for _, span := range spans {
		kind := span.SpanKind()
		if kind != trace.SpanKindServer && kind != trace.SpanKindConsumer {
			continue
		}

		attrs := indexAttributes(span.Attributes())
		path := record.NormalizePath(stripOrigin(pickString(attrs, pathKeys, "/")))
		if e.isIngestPath(path) {
			// An instrumented transport would loop forever otherwise.
			continue
		}

		inputs = append(inputs, e.spanInput(span, attrs, path))
	}

	if len(inputs) > 0 {
		e.client.CaptureMany(inputs)
	}
	return nil
}

func (e *Exporter) spanInput(span sdktrace.ReadOnlySpan, attrs map[attribute.Key]attribute.Value, path string) record.Input {
	duration := span.EndTime().Sub(span.StartTime())
	if duration < 0 {
		duration = 0
	}

	in := record.Input{
		Timestamp:      span.StartTime(),
		Environment:    e.opts.Environment,
		Method:         pickString(attrs, methodKeys, "GET"),
		Path:           path,
		StatusCode:     int(pickInt(attrs, statusKeys)),
		ResponseTimeMS: float64(duration) / float64(time.Millisecond),
		RequestSize:    pickInt(attrs, requestSizeKeys),
		ResponseSize:   pickInt(attrs, responseSizeKeys),
	}
	if e.opts.CaptureClientIP {
		in.IPAddress = pickString(attrs, clientIPKeys, "")
	}
	if !e.opts.OmitUserAgent {
		in.UserAgent = pickString(attrs, userAgentKeys, "")
	}
	return in
}

func (e *Exporter) isIngestPath(path string) bool {
	return e.ingestPath != "" && path == e.ingestPath
}

// Shutdown drains the client queue. The spans already exported must
// not be lost to process exit.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.client.FlushAll()
	return nil
}

func indexAttributes(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func pickString(attrs map[attribute.Key]attribute.Value, keys []attribute.Key, fallback string) string {
	for _, key := range keys {
		if v, ok := attrs[key]; ok {
			if s := strings.TrimSpace(v.Emit()); s != "" {
				return s
			}
		}
	}
	return fallback
}

func pickInt(attrs map[attribute.Key]attribute.Value, keys []attribute.Key) int64 {
	for _, key := range keys {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		switch v.Type() {
		case attribute.INT64:
			return v.AsInt64()
		case attribute.FLOAT64:
			return int64(v.AsFloat64())
		case attribute.STRING:
			if n, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// stripOrigin reduces an absolute URL attribute to its path component.
func stripOrigin(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// InstallExporter wires the exporter into a tracer provider. With a
// nil provider it builds one, registers it globally, and configures
// W3C trace context propagation the way a fresh service would.
func InstallExporter(c *client.Client, serviceName string, provider *sdktrace.TracerProvider, opts Options) (*sdktrace.TracerProvider, error) {
	exporter := NewExporter(c, opts)

	if provider != nil {
		provider.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
		return provider, nil
	}

	environment := opts.Environment
	if environment == "" {
		environment = c.Environment()
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	return provider, nil
}
