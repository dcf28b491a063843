package egress

import (
	"context"
	"io"
	"net/http"
)

// AllowlistedClient wraps net/http.Client and gates every outbound request
// through a Guard before it is sent. Used by the chat-upstream proxy and
// cloud-sync collaborators described in §6 of the design notes.
type AllowlistedClient struct {
	inner *http.Client
	guard *Guard
}

// NewAllowlistedClient wraps client (or http.DefaultClient if nil) with guard.
func NewAllowlistedClient(client *http.Client, guard *Guard) *AllowlistedClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &AllowlistedClient{inner: client, guard: guard}
}

// Do checks req.URL.String() against the guard before delegating to the
// wrapped client.
func (c *AllowlistedClient) Do(req *http.Request) (*http.Response, error) {
	if _, err := c.guard.EnsureAllowed(req.URL.String()); err != nil {
		return nil, err
	}
	return c.inner.Do(req)
}

// Get issues a GET request to url after guard validation.
func (c *AllowlistedClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post issues a POST request to url after guard validation.
func (c *AllowlistedClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}
