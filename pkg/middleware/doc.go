// Package middleware provides net/http instrumentation that observes
// request/response traffic and forwards one record per request to a
// lens client. The middleware never blocks the handler chain and never
// lets its own bookkeeping break a response.
package middleware
