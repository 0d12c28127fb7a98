package client

import "sync"

var (
	// defaultClient holds the process-wide shared instance, if the
	// application registered one.
	defaultClient *Client

	// defaultMu protects access to defaultClient.
	defaultMu sync.RWMutex
)

// SetDefault registers c as the process-wide shared client. Passing nil
// clears the registration. New never calls SetDefault; sharing an instance
// is an explicit application decision.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = c
}

// Default returns the registered shared client, or nil when none was
// registered. For testing, prefer constructing explicit instances over the
// shared registration.
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

// MustDefault returns the registered shared client and panics when none was
// registered. Use it only on code paths that run after application startup
// has completed registration.
func MustDefault() *Client {
	c := Default()
	if c == nil {
		panic("lens client not registered: call client.SetDefault first")
	}
	return c
}
