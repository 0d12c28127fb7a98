package middleware

import (
	"net/http"

	"apilens/lens-go/pkg/record"
)

// ConsumerResolver derives a consumer identity from an incoming
// request, typically from an auth token or API key header. Returning a
// zero Consumer leaves the request anonymous. Handlers can still
// override the resolved identity with SetConsumer.
type ConsumerResolver func(r *http.Request) record.Consumer
