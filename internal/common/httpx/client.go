package httpx

import (
	"context"
	"net/http"
	"time"
)

// Client is a thin timeout-bounded wrapper over net/http shared by the
// backend and geocoder clients.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithUserAgent builds a client that stamps every request with the
// given User-Agent. Public geocoders reject requests without one.
func NewClientWithUserAgent(timeout time.Duration, userAgent string) *Client {
	c := NewClient(timeout)
	c.userAgent = userAgent
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}
