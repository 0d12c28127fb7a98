package record

import (
	"encoding/json"
	"time"
)

// Record is one normalized observation of a single HTTP request/response
// pair. Build records through Normalize rather than by hand so the
// defaulting rules always apply.
type Record struct {
	// Timestamp is the instant the request was observed, in UTC.
	Timestamp time.Time

	// Environment is the deployment environment the record was captured in
	// (for example "production" or "staging").
	Environment string

	// Method is the upper-cased HTTP method.
	Method string

	// Path is the route path, always beginning with "/".
	Path string

	// StatusCode is the response status, 0 when unknown.
	StatusCode int

	// ResponseTimeMS is the wall-clock duration of the request in
	// milliseconds.
	ResponseTimeMS float64

	// RequestSize and ResponseSize are best-effort byte counts: the declared
	// Content-Length when present, else the bytes actually observed.
	RequestSize  int64
	ResponseSize int64

	// IPAddress is the client address, empty if unavailable.
	IPAddress string

	// UserAgent is the caller's User-Agent header, empty if unavailable.
	UserAgent string

	// ConsumerID, ConsumerName and ConsumerGroup identify the authenticated
	// caller of the monitored API. All three are empty when the host
	// application never annotated a consumer.
	ConsumerID    string
	ConsumerName  string
	ConsumerGroup string

	// RequestPayload and ResponsePayload hold bounded body snapshots, empty
	// when body capture is disabled.
	RequestPayload  string
	ResponsePayload string
}

// Consumer identifies the caller of the monitored API, as distinct from the
// operator running the SDK. A consumer known only by identifier is built with
// Identify.
type Consumer struct {
	ID    string
	Name  string
	Group string
}

// Identify builds a Consumer from a bare identifier with empty name and
// group.
func Identify(id string) Consumer {
	return Consumer{ID: id}
}

// IsZero reports whether the consumer carries no identity at all.
func (c Consumer) IsZero() bool {
	return c.ID == "" && c.Name == "" && c.Group == ""
}

// wireRecord is the JSON shape accepted by the ingest endpoint.
type wireRecord struct {
	Timestamp       string  `json:"timestamp"`
	Environment     string  `json:"environment"`
	Method          string  `json:"method"`
	Path            string  `json:"path"`
	StatusCode      int     `json:"status_code"`
	ResponseTimeMS  float64 `json:"response_time_ms"`
	RequestSize     int64   `json:"request_size"`
	ResponseSize    int64   `json:"response_size"`
	IPAddress       string  `json:"ip_address"`
	UserAgent       string  `json:"user_agent"`
	ConsumerID      string  `json:"consumer_id"`
	ConsumerName    string  `json:"consumer_name"`
	ConsumerGroup   string  `json:"consumer_group"`
	RequestPayload  string  `json:"request_payload"`
	ResponsePayload string  `json:"response_payload"`
}

// MarshalJSON renders the record in the ingest wire format. The timestamp is
// always emitted in UTC with a "Z" suffix.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339Nano),
		Environment:     r.Environment,
		Method:          r.Method,
		Path:            r.Path,
		StatusCode:      r.StatusCode,
		ResponseTimeMS:  r.ResponseTimeMS,
		RequestSize:     r.RequestSize,
		ResponseSize:    r.ResponseSize,
		IPAddress:       r.IPAddress,
		UserAgent:       r.UserAgent,
		ConsumerID:      r.ConsumerID,
		ConsumerName:    r.ConsumerName,
		ConsumerGroup:   r.ConsumerGroup,
		RequestPayload:  r.RequestPayload,
		ResponsePayload: r.ResponsePayload,
	})
}

// UnmarshalJSON parses the ingest wire format back into a record. It is the
// inverse of MarshalJSON and exists mainly for test doubles that inspect
// submitted batches.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		ts = time.Time{}
	}

	*r = Record{
		Timestamp:       ts,
		Environment:     w.Environment,
		Method:          w.Method,
		Path:            w.Path,
		StatusCode:      w.StatusCode,
		ResponseTimeMS:  w.ResponseTimeMS,
		RequestSize:     w.RequestSize,
		ResponseSize:    w.ResponseSize,
		IPAddress:       w.IPAddress,
		UserAgent:       w.UserAgent,
		ConsumerID:      w.ConsumerID,
		ConsumerName:    w.ConsumerName,
		ConsumerGroup:   w.ConsumerGroup,
		RequestPayload:  w.RequestPayload,
		ResponsePayload: w.ResponsePayload,
	}
	return nil
}
