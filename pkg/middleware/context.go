package middleware

import (
	"context"
	"net/http"
	"sync"

	"apilens/lens-go/pkg/record"
)

type contextKey int

const consumerKey contextKey = iota

// consumerHolder carries the consumer identity for a single request.
// Handlers run after the middleware, so the holder is installed up
// front and mutated in place by SetConsumer / SetConsumerID.
type consumerHolder struct {
	mu       sync.Mutex
	consumer record.Consumer
}

func (h *consumerHolder) set(c record.Consumer) {
	h.mu.Lock()
	h.consumer = c
	h.mu.Unlock()
}

func (h *consumerHolder) get() record.Consumer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consumer
}

func withConsumerHolder(ctx context.Context) (context.Context, *consumerHolder) {
	h := &consumerHolder{}
	return context.WithValue(ctx, consumerKey, h), h
}

func holderFrom(ctx context.Context) *consumerHolder {
	h, _ := ctx.Value(consumerKey).(*consumerHolder)
	return h
}

// SetConsumer attaches a consumer identity to the current request. It
// has no effect when the request did not pass through the middleware.
func SetConsumer(r *http.Request, c record.Consumer) {
	if h := holderFrom(r.Context()); h != nil {
		h.set(c)
	}
}

// SetConsumerID is a shorthand for SetConsumer with only an identifier.
func SetConsumerID(r *http.Request, id string) {
	SetConsumer(r, record.Identify(id))
}

// ConsumerFrom returns the consumer identity attached to the request,
// or a zero Consumer when none was set.
func ConsumerFrom(r *http.Request) record.Consumer {
	if h := holderFrom(r.Context()); h != nil {
		return h.get()
	}
	return record.Consumer{}
}
