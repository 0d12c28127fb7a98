package record

import (
	"strings"
	"time"
)

// DefaultEnvironment is used when neither the capture input nor the client
// configuration names an environment.
const DefaultEnvironment = "production"

// Input is a loose capture observation. Any subset of fields may be set;
// Normalize fills in the rest. Zero values never cause an error.
type Input struct {
	Timestamp       time.Time
	Environment     string
	Method          string
	Path            string
	StatusCode      int
	ResponseTimeMS  float64
	RequestSize     int64
	ResponseSize    int64
	IPAddress       string
	UserAgent       string
	Consumer        Consumer
	RequestPayload  string
	ResponsePayload string
}

// Defaults carries per-client fallbacks applied during normalization.
type Defaults struct {
	// Environment is used when the input does not name one.
	Environment string

	// Now supplies the current time for inputs with a zero timestamp.
	// A nil Now falls back to time.Now.
	Now func() time.Time
}

// Normalize converts a capture input into a complete Record. It never fails:
// missing or out-of-range values degrade to the documented defaults.
func Normalize(in Input, defaults Defaults) Record {
	ts := in.Timestamp
	if ts.IsZero() {
		if defaults.Now != nil {
			ts = defaults.Now()
		} else {
			ts = time.Now()
		}
	}

	env := in.Environment
	if env == "" {
		env = defaults.Environment
	}
	if env == "" {
		env = DefaultEnvironment
	}

	return Record{
		Timestamp:       ts.UTC(),
		Environment:     env,
		Method:          NormalizeMethod(in.Method),
		Path:            NormalizePath(in.Path),
		StatusCode:      clampInt(in.StatusCode),
		ResponseTimeMS:  clampFloat(in.ResponseTimeMS),
		RequestSize:     clampInt64(in.RequestSize),
		ResponseSize:    clampInt64(in.ResponseSize),
		IPAddress:       strings.TrimSpace(in.IPAddress),
		UserAgent:       strings.TrimSpace(in.UserAgent),
		ConsumerID:      in.Consumer.ID,
		ConsumerName:    in.Consumer.Name,
		ConsumerGroup:   in.Consumer.Group,
		RequestPayload:  in.RequestPayload,
		ResponsePayload: in.ResponsePayload,
	}
}

// NormalizeMethod upper-cases an HTTP method, defaulting to "GET" when the
// raw value is blank.
func NormalizeMethod(raw string) string {
	method := strings.TrimSpace(raw)
	if method == "" {
		return "GET"
	}
	return strings.ToUpper(method)
}

// NormalizePath strips any query string and guarantees a leading "/".
// Blank input becomes "/".
func NormalizePath(raw string) string {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampInt64(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
